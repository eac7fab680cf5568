// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hdpath parses and formats hierarchical deterministic key paths.
//
// The textual form is "m" followed by zero or more "/"-separated unsigned
// indexes below 2^31, each optionally suffixed with ' (or h) to mark the
// segment as hardened, e.g. m/84'/0'/3'/0/7.
package hdpath

import (
	"strconv"
	"strings"

	"github.com/decred/keyvault/errors"
)

// HardenedKeyStart is added to the index of hardened segments when deriving.
const HardenedKeyStart = 0x80000000

// MaxIndex is the largest index a segment may carry, hardened or not.
const MaxIndex = HardenedKeyStart - 1

// Segment is one derivation step.
type Segment struct {
	Index    uint32
	Hardened bool
}

// H returns a hardened segment.
func H(index uint32) Segment { return Segment{Index: index, Hardened: true} }

// N returns a non-hardened segment.
func N(index uint32) Segment { return Segment{Index: index} }

// Child returns the BIP32 child number of the segment.
func (s Segment) Child() uint32 {
	if s.Hardened {
		return s.Index + HardenedKeyStart
	}
	return s.Index
}

func (s Segment) String() string {
	if s.Hardened {
		return strconv.FormatUint(uint64(s.Index), 10) + "'"
	}
	return strconv.FormatUint(uint64(s.Index), 10)
}

// Path is an ordered sequence of derivation segments starting at the master
// key.  The empty path refers to the master key itself.
type Path []Segment

// Parse parses the textual form of a path.
func Parse(text string) (Path, error) {
	const op errors.Op = "hdpath.Parse"
	if text == "" {
		return nil, errors.E(op, errors.InvalidPath, "empty path")
	}
	parts := strings.Split(text, "/")
	if parts[0] != "m" && parts[0] != "M" {
		return nil, errors.E(op, errors.InvalidPath, errors.Field(text),
			`path must start with "m"`)
	}
	path := make(Path, 0, len(parts)-1)
	for i, part := range parts[1:] {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, errors.E(op, errors.InvalidPath, errors.Field(text),
				errors.Errorf("segment %d: %v", i+1, err))
		}
		path = append(path, seg)
	}
	return path, nil
}

func parseSegment(s string) (Segment, error) {
	var seg Segment
	if strings.HasSuffix(s, "'") || strings.HasSuffix(s, "h") || strings.HasSuffix(s, "H") {
		seg.Hardened = true
		s = s[:len(s)-1]
	}
	if s == "" {
		return seg, errors.New("missing index")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return seg, errors.Errorf("%q is not a number", s)
		}
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v > MaxIndex {
		return seg, errors.Errorf("index %s out of range", s)
	}
	seg.Index = uint32(v)
	return seg, nil
}

// String formats the path in its textual form.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

// Children returns the BIP32 child numbers of every segment.
func (p Path) Children() []uint32 {
	c := make([]uint32, len(p))
	for i, seg := range p {
		c[i] = seg.Child()
	}
	return c
}

// HasHardened reports whether any segment is hardened.
func (p Path) HasHardened() bool {
	for _, seg := range p {
		if seg.Hardened {
			return true
		}
	}
	return false
}

// AccountPath is the account level path m/purpose'/coin'/account'.
type AccountPath struct {
	Purpose  uint32
	CoinType uint32
	Account  uint32
}

// NewAccountPath validates the segments of an account path.  Every index must
// fit the hardened domain.
func NewAccountPath(purpose, coinType, account uint32) (AccountPath, error) {
	const op errors.Op = "hdpath.NewAccountPath"
	switch {
	case purpose > MaxIndex:
		return AccountPath{}, errors.E(op, errors.InvalidPath, errors.Field("purpose"))
	case coinType > MaxIndex:
		return AccountPath{}, errors.E(op, errors.InvalidPath, errors.Field("coin_type"))
	case account > MaxIndex:
		return AccountPath{}, errors.E(op, errors.InvalidPath, errors.Field("account"),
			errors.Errorf("account %d exceeds hardened index domain", account))
	}
	return AccountPath{Purpose: purpose, CoinType: coinType, Account: account}, nil
}

// ParseAccount parses a three segment path with all segments hardened.
func ParseAccount(text string) (AccountPath, error) {
	const op errors.Op = "hdpath.ParseAccount"
	p, err := Parse(text)
	if err != nil {
		return AccountPath{}, errors.E(op, err)
	}
	if len(p) != 3 {
		return AccountPath{}, errors.E(op, errors.InvalidPath, errors.Field(text),
			"account path must have 3 segments")
	}
	for _, seg := range p {
		if !seg.Hardened {
			return AccountPath{}, errors.E(op, errors.InvalidPath, errors.Field(text),
				"account path segments must be hardened")
		}
	}
	return AccountPath{Purpose: p[0].Index, CoinType: p[1].Index, Account: p[2].Index}, nil
}

// Path returns the path of the account key.
func (a AccountPath) Path() Path {
	return Path{H(a.Purpose), H(a.CoinType), H(a.Account)}
}

func (a AccountPath) String() string { return a.Path().String() }

// Address returns the full path of an address key in this account.
func (a AccountPath) Address(change, index uint32) StandardPath {
	return StandardPath{AccountPath: a, Change: change, Index: index}
}

// StandardPath is the five segment path
// m/purpose'/coin'/account'/change/index.
type StandardPath struct {
	AccountPath
	Change uint32
	Index  uint32
}

// ParseStandard parses a five segment path.  The first three segments must be
// hardened and the last two must not be.
func ParseStandard(text string) (StandardPath, error) {
	const op errors.Op = "hdpath.ParseStandard"
	p, err := Parse(text)
	if err != nil {
		return StandardPath{}, errors.E(op, err)
	}
	if len(p) != 5 {
		return StandardPath{}, errors.E(op, errors.InvalidPath, errors.Field(text),
			"standard path must have 5 segments")
	}
	if !p[0].Hardened || !p[1].Hardened || !p[2].Hardened || p[3].Hardened || p[4].Hardened {
		return StandardPath{}, errors.E(op, errors.InvalidPath, errors.Field(text),
			"standard path must be m/purpose'/coin'/account'/change/index")
	}
	return StandardPath{
		AccountPath: AccountPath{Purpose: p[0].Index, CoinType: p[1].Index, Account: p[2].Index},
		Change:      p[3].Index,
		Index:       p[4].Index,
	}, nil
}

// Path returns the full path.
func (s StandardPath) Path() Path {
	return append(s.AccountPath.Path(), N(s.Change), N(s.Index))
}

func (s StandardPath) String() string { return s.Path().String() }
