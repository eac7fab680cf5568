// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cfgutil

import (
	"github.com/decred/keyvault/blockchain"
)

// ChainFlag contains a blockchain.ID and implements the flags.Marshaler and
// Unmarshaler interfaces so it can be used as a config struct field.
type ChainFlag struct {
	blockchain.ID
}

// NewChainFlag creates a ChainFlag with a default chain.
func NewChainFlag(defaultValue blockchain.ID) *ChainFlag {
	return &ChainFlag{defaultValue}
}

// MarshalFlag satisfies the flags.Marshaler interface.
func (c *ChainFlag) MarshalFlag() (string, error) {
	return c.ID.String(), nil
}

// UnmarshalFlag satisfies the flags.Unmarshaler interface.
func (c *ChainFlag) UnmarshalFlag(value string) error {
	id, err := blockchain.Parse(value)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}
