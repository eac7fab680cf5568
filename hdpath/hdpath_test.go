// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hdpath

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/decred/keyvault/errors"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		path Path
		ok   bool
	}{
		{"m", Path{}, true},
		{"m/84'/0'/3'", Path{H(84), H(0), H(3)}, true},
		{"m/44h/60h/0h/0/1", Path{H(44), H(60), H(0), N(0), N(1)}, true},
		{"m/2147483647'", Path{H(MaxIndex)}, true},
		{"", nil, false},
		{"84'/0'/3'", nil, false},
		{"m/84'/0'/x'", nil, false},
		{"m/84'//3'", nil, false},
		{"m/84'/0'/3'/", nil, false},
		{"m/2147483648", nil, false},
		{"m/4294967296", nil, false},
		{"m/-1", nil, false},
		{"m/+1", nil, false},
		{"m/'", nil, false},
	}
	for _, test := range tests {
		p, err := Parse(test.text)
		if !test.ok {
			if !errors.Is(errors.InvalidPath, err) {
				t.Errorf("Parse(%q): expected InvalidPath, got %v", test.text, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", test.text, err)
			continue
		}
		if !reflect.DeepEqual(p, test.path) {
			t.Errorf("Parse(%q) = %v, want %v", test.text, p, test.path)
		}
	}
}

func TestParseAccount(t *testing.T) {
	a, err := ParseAccount("m/84'/0'/3'")
	if err != nil {
		t.Fatal(err)
	}
	if a != (AccountPath{Purpose: 84, CoinType: 0, Account: 3}) {
		t.Fatalf("unexpected account path %+v", a)
	}
	if a.String() != "m/84'/0'/3'" {
		t.Fatalf("String() = %s", a)
	}

	for _, text := range []string{"m/84'/0'", "m/84'/0'/3", "m/84'/0'/3'/0/0", "m/84'/0'/x'"} {
		if _, err := ParseAccount(text); !errors.Is(errors.InvalidPath, err) {
			t.Errorf("ParseAccount(%q): %v", text, err)
		}
	}
}

func TestParseStandard(t *testing.T) {
	s, err := ParseStandard("m/44'/60'/0'/0/5")
	if err != nil {
		t.Fatal(err)
	}
	want := AccountPath{Purpose: 44, CoinType: 60}.Address(0, 5)
	if s != want {
		t.Fatalf("got %+v want %+v", s, want)
	}
	if _, err := ParseStandard("m/44'/60'/0'/0'/5"); !errors.Is(errors.InvalidPath, err) {
		t.Fatalf("hardened change accepted: %v", err)
	}
}

func TestNewAccountPath(t *testing.T) {
	if _, err := NewAccountPath(84, 0, MaxIndex); err != nil {
		t.Fatal(err)
	}
	_, err := NewAccountPath(84, 0, HardenedKeyStart)
	if !errors.Is(errors.InvalidPath, err) || errors.FieldOf(err) != "account" {
		t.Fatalf("out of range account: %v", err)
	}
}

func TestChildren(t *testing.T) {
	p := Path{H(84), N(7)}
	c := p.Children()
	if c[0] != HardenedKeyStart+84 || c[1] != 7 {
		t.Fatalf("children %v", c)
	}
	if !p.HasHardened() || (Path{N(1)}).HasHardened() {
		t.Fatal("HasHardened")
	}
}

func TestFormatParseProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "len")
		p := make(Path, n)
		for i := range p {
			p[i] = Segment{
				Index:    rapid.Uint32Range(0, MaxIndex).Draw(t, fmt.Sprintf("index%d", i)),
				Hardened: rapid.Bool().Draw(t, fmt.Sprintf("hardened%d", i)),
			}
		}
		got, err := Parse(p.String())
		if err != nil {
			t.Fatalf("Parse(%s): %v", p, err)
		}
		if !reflect.DeepEqual(got, p) {
			t.Fatalf("Parse(%s) = %v", p, got)
		}
	})
}
