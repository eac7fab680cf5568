// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const abandon = "abandon abandon abandon abandon abandon abandon " +
	"abandon abandon abandon abandon abandon about"

func reader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestPassPrompt(t *testing.T) {
	pass, err := PassPrompt(reader("\n  secret \nother\nsecret\nsecret\n"), "pass", true)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), pass)

	pass, err = PassPrompt(reader("once"), "pass", false)
	require.NoError(t, err)
	require.Equal(t, []byte("once"), pass)

	_, err = PassPrompt(reader(""), "pass", false)
	require.Error(t, err)
}

func TestMnemonicPassword(t *testing.T) {
	pw, err := MnemonicPassword(reader("\n"))
	require.NoError(t, err)
	require.Empty(t, pw)

	pw, err = MnemonicPassword(reader("maybe\ny\nTREZOR\n"))
	require.NoError(t, err)
	require.Equal(t, "TREZOR", pw)
}

func TestMnemonicRestore(t *testing.T) {
	input := "yes\nabandon abandon\n\n" +
		"abandon abandon abandon abandon abandon abandon\n" +
		"abandon   abandon abandon abandon abandon about\n\n"
	m, imported, err := Mnemonic(reader(input))
	require.NoError(t, err)
	require.True(t, imported)
	require.Equal(t, abandon, m)
}

func TestCollapseSpace(t *testing.T) {
	require.Equal(t, "a b c", collapseSpace("a \t b\n\nc"))
	require.Equal(t, "", collapseSpace(""))
}
