// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package prompt

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/decred/keyvault/walletseed"
	"golang.org/x/term"
)

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use.  The function will repeat the prompt to the
// user until they enter a valid response.
func promptList(reader *bufio.Reader, prefix string, validResponses []string, defaultEntry string) (string, error) {
	// Setup the prompt according to the parameters.
	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	// Prompt the user until one of the valid responses is given.
	for {
		fmt.Print(prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// promptListBool prompts the user for a boolean (yes/no) with the given prefix.
// The function will repeat the prompt to the user until they enter a valid
// response.
func promptListBool(reader *bufio.Reader, prefix string, defaultEntry string) (bool, error) {
	// Setup the valid responses.
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// stdin is the reader returned by StdinReader.
var stdin *bufio.Reader

// StdinReader returns the reader of standard input.  Secrets read through it
// are not echoed when standard input is a terminal.
func StdinReader() *bufio.Reader {
	if stdin == nil {
		stdin = bufio.NewReader(os.Stdin)
	}
	return stdin
}

// readSecret reads one line, without echo when reading a terminal.
func readSecret(reader *bufio.Reader) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if reader == stdin && term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Print("\n")
		return b, err
	}
	b, err := reader.ReadBytes('\n')
	if stderrors.Is(err, io.EOF) && len(b) > 0 {
		err = nil
	}
	return b, err
}

// PassPrompt prompts the user for a passphrase with the given prefix.  The
// function will ask the user to confirm the passphrase and will repeat the
// prompts until they enter a matching response.
func PassPrompt(reader *bufio.Reader, prefix string, confirm bool) ([]byte, error) {
	// Prompt the user until they enter a passphrase.
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Print(prompt)
		pass, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		pass = bytes.TrimSpace(pass)
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Print("Confirm passphrase: ")
		confirm, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		confirm = bytes.TrimSpace(confirm)
		if !bytes.Equal(pass, confirm) {
			fmt.Println("The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// SeedPassphrase prompts for the passphrase that encrypts a new seed.
func SeedPassphrase(reader *bufio.Reader) ([]byte, error) {
	return PassPrompt(reader, "Enter the passphrase to encrypt the seed with", true)
}

// MnemonicPassword asks whether the mnemonic is protected by a BIP39
// password and prompts for it.  An empty string is returned otherwise.
func MnemonicPassword(reader *bufio.Reader) (string, error) {
	usePass, err := promptListBool(reader, "Is the mnemonic protected by "+
		"an additional BIP39 password?", "no")
	if err != nil || !usePass {
		return "", err
	}
	pass, err := PassPrompt(reader, "Enter the BIP39 password", false)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

// Mnemonic prompts the user whether they want to restore an existing
// mnemonic.  When the user answers no, a mnemonic is generated and displayed
// until the user confirms it was stored.  When the user answers yes, the user
// is prompted for it.  All prompts are repeated until the user enters a valid
// response.  The bool returned indicates if the mnemonic was entered by the
// user.
func Mnemonic(reader *bufio.Reader) (mnemonic string, imported bool, err error) {
	useUserSeed, err := promptListBool(reader, "Do you have an "+
		"existing mnemonic you want to use?", "no")
	if err != nil {
		return "", false, err
	}
	if !useUserSeed {
		mnemonic, err := walletseed.GenerateMnemonic(walletseed.DefaultEntropyBits)
		if err != nil {
			return "", false, err
		}

		fmt.Println("Your seed mnemonic is:")
		words := strings.Fields(mnemonic)
		for i, w := range words {
			fmt.Printf("%v ", w)
			if (i+1)%6 == 0 {
				fmt.Printf("\n")
			}
		}
		fmt.Println("\n\nIMPORTANT: Keep the mnemonic in a safe place as you\n" +
			"will NOT be able to restore your keys without it.")

		for {
			fmt.Print(`Once you have stored the mnemonic in a safe ` +
				`and secure location, enter "OK" to continue: `)
			confirmSeed, err := reader.ReadString('\n')
			if err != nil {
				return "", false, err
			}
			confirmSeed = strings.TrimSpace(confirmSeed)
			confirmSeed = strings.Trim(confirmSeed, `"`)
			if strings.EqualFold("OK", confirmSeed) {
				break
			}
		}

		return mnemonic, false, nil
	}

	for {
		fmt.Print("Enter the existing mnemonic " +
			"(follow the words with an additional blank line): ")

		var words string
		for {
			line, err := reader.ReadString('\n')
			if err != nil && !stderrors.Is(err, io.EOF) {
				return "", false, err
			}
			line = strings.TrimSpace(line)
			if line == "" {
				break
			}
			words += " " + line
			if err != nil {
				break
			}
		}
		mnemonic := collapseSpace(strings.TrimSpace(words))
		if mnemonic == "" {
			return "", false, io.ErrUnexpectedEOF
		}
		if err := walletseed.ValidateMnemonic(mnemonic); err != nil {
			fmt.Printf("Input error: %v\n", err)
			continue
		}
		return mnemonic, true, nil
	}
}

// collapseSpace takes a string and replaces any repeated areas of whitespace
// with a single space character.
func collapseSpace(in string) string {
	var b strings.Builder
	whiteSpace := false
	for _, c := range in {
		if unicode.IsSpace(c) {
			if !whiteSpace {
				b.WriteByte(' ')
			}
			whiteSpace = true
		} else {
			b.WriteRune(c)
			whiteSpace = false
		}
	}
	return b.String()
}
