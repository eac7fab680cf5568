// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

// timestampLayout is ISO 8601 with ':' replaced by '-'.
const timestampLayout = "2006-01-02T15-04-05"

// Filename returns the UTC--<timestamp>Z--<uuid> name of a keyfile created
// at the clock's current time.
func Filename(clk clock.Clock, id uuid.UUID) string {
	return fmt.Sprintf("UTC--%sZ--%s", clk.Now().UTC().Format(timestampLayout), id)
}

// Dir is a directory of keyfiles.
type Dir struct {
	path  string
	clock clock.Clock
}

// OpenDir returns the keyfile directory at path.  The directory must exist.
// A nil clk uses the system clock.
func OpenDir(path string, clk clock.Clock) (*Dir, error) {
	const op errors.Op = "keystore.OpenDir"
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.E(op, errors.StorageUnavailable, errors.Field(path), err)
	}
	if !fi.IsDir() {
		return nil, errors.E(op, errors.StorageUnavailable, errors.Field(path), "not a directory")
	}
	if clk == nil {
		clk = clock.NewDefaultClock()
	}
	return &Dir{path: path, clock: clk}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

func (d *Dir) write(name string, kf *KeyFile) error {
	b, err := json.Marshal(kf)
	if err != nil {
		return err
	}
	return storage.WriteFileAtomic(name, b, 0600)
}

// Flush writes kf as a new file and returns its path.
func (d *Dir) Flush(kf *KeyFile) (string, error) {
	const op errors.Op = "keystore.Flush"
	name := filepath.Join(d.path, Filename(d.clock, kf.ID))
	if err := d.write(name, kf); err != nil {
		return "", errors.E(op, err)
	}
	log.Debugf("Wrote keyfile %s", filepath.Base(name))
	return name, nil
}

// files returns the paths of all regular files in the directory.
func (d *Dir) files() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.StorageUnavailable, errors.Field(d.path), err)
		}
		return nil, errors.E(errors.IO, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(d.path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// peekAddress extracts the address of a keyfile without decoding the rest.
func peekAddress(b []byte) (common.Address, bool) {
	var v struct {
		Address string `json:"address"`
	}
	if json.Unmarshal(b, &v) != nil {
		return common.Address{}, false
	}
	addr, err := parseAddress(v.Address)
	return addr, err == nil
}

// SearchByAddress finds the keyfile of addr.  Files that cannot be read or
// carry another address are skipped.  The matching file must decode.
func (d *Dir) SearchByAddress(addr common.Address) (string, *KeyFile, error) {
	const op errors.Op = "keystore.SearchByAddress"
	files, err := d.files()
	if err != nil {
		return "", nil, errors.E(op, err)
	}
	for _, name := range files {
		b, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		if a, ok := peekAddress(b); !ok || a != addr {
			continue
		}
		kf, err := Decode(b)
		if err != nil {
			return "", nil, errors.E(op, errors.Field(filepath.Base(name)), err)
		}
		return name, kf, nil
	}
	return "", nil, errors.E(op, errors.NotExist, errors.Field(addr.Hex()))
}

// Account is a listed keyfile.
type Account struct {
	Name    string
	Address common.Address
}

// ListAddresses lists the keyfiles of the directory.  Hidden keyfiles are
// included only when showHidden is set.  Files that do not decode are
// skipped.
func (d *Dir) ListAddresses(showHidden bool) ([]Account, error) {
	const op errors.Op = "keystore.ListAddresses"
	files, err := d.files()
	if err != nil {
		return nil, errors.E(op, err)
	}
	var accounts []Account
	for _, name := range files {
		b, err := os.ReadFile(name)
		if err != nil {
			continue
		}
		kf, err := Decode(b)
		if err != nil {
			log.Infof("Invalid keyfile %s: %v", filepath.Base(name), err)
			continue
		}
		if kf.IsVisible() || showHidden {
			accounts = append(accounts, Account{Name: kf.Name, Address: kf.Address})
		}
	}
	return accounts, nil
}

func (d *Dir) setVisible(op errors.Op, addr common.Address, visible bool) error {
	name, kf, err := d.SearchByAddress(addr)
	if err != nil {
		return errors.E(op, err)
	}
	kf.Visible = &visible
	if err := d.write(name, kf); err != nil {
		return errors.E(op, err)
	}
	return nil
}

// Hide excludes the keyfile of addr from default listings.
func (d *Dir) Hide(addr common.Address) error {
	return d.setVisible("keystore.Hide", addr, false)
}

// Unhide includes the keyfile of addr in default listings.
func (d *Dir) Unhide(addr common.Address) error {
	return d.setVisible("keystore.Unhide", addr, true)
}
