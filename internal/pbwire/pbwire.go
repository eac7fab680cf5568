// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pbwire contains helpers shared by the hand-written protobuf codecs
// of persisted records.
package pbwire

import (
	"github.com/decred/keyvault/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field is a single decoded protobuf field.  Varint holds the value of varint
// and fixed width fields, Bytes the value of length-delimited fields.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// Message is a decoded protobuf message indexed by field number.  When a
// field is repeated on the wire, all occurrences are kept in order.
type Message map[protowire.Number][]Field

// Parse decodes the top level fields of a protobuf message.  Unknown field
// numbers are kept so that callers may ignore them.
func Parse(b []byte) (Message, error) {
	const op errors.Op = "pbwire.Parse"
	m := make(Message)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.E(op, errors.InvalidFieldValue, protowire.ParseError(n))
		}
		b = b[n:]
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.Varint = uint64(v)
		case protowire.Fixed64Type:
			f.Varint, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, errors.E(op, errors.InvalidFieldValue, protowire.ParseError(n))
		}
		b = b[n:]
		m[num] = append(m[num], f)
	}
	return m, nil
}

// Has reports whether the field was present on the wire.
func (m Message) Has(num protowire.Number) bool {
	return len(m[num]) > 0
}

// Uint returns the last value of a scalar field, or zero.
func (m Message) Uint(num protowire.Number) uint64 {
	fs := m[num]
	if len(fs) == 0 {
		return 0
	}
	return fs[len(fs)-1].Varint
}

// Bytes returns the last value of a length-delimited field, or nil.
func (m Message) Bytes(num protowire.Number) []byte {
	fs := m[num]
	if len(fs) == 0 {
		return nil
	}
	return fs[len(fs)-1].Bytes
}

// Text returns the last value of a string field.
func (m Message) Text(num protowire.Number) string {
	return string(m.Bytes(num))
}

// Repeated returns the values of every occurrence of a length-delimited field.
func (m Message) Repeated(num protowire.Number) [][]byte {
	fs := m[num]
	out := make([][]byte, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Bytes)
	}
	return out
}

// AppendUint appends a varint field.  Zero values are omitted as proto3 does.
func AppendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBytes appends a length-delimited field, omitting empty values.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString appends a string field, omitting empty values.
func AppendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// AppendMessage appends an embedded message.  Unlike AppendBytes, an empty
// message is still written so that its presence is recorded.
func AppendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}
