// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"os"
	"path/filepath"

	"github.com/decred/keyvault/errors"
)

// WriteFileAtomic replaces name with data.  The data is written to a
// temporary file in the same directory, synced and closed before being
// renamed over name, so a reader sees either the old or the new contents.
func WriteFileAtomic(name string, data []byte, perm os.FileMode) error {
	const op errors.Op = "storage.WriteFileAtomic"
	dir, base := filepath.Split(name)
	if dir == "" {
		dir = "."
	}
	if err := checkDir(dir); err != nil {
		return errors.E(op, err)
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return errors.E(op, errors.IO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.E(op, errors.IO, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return errors.E(op, errors.IO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.E(op, errors.IO, err)
	}
	// Some platforms cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return errors.E(op, errors.IO, err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		return errors.E(op, errors.IO, err)
	}
	return nil
}

// checkDir fails with StorageUnavailable unless dir is an existing directory.
func checkDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return errors.E(errors.StorageUnavailable, errors.Field(dir), err)
	}
	if !fi.IsDir() {
		return errors.E(errors.StorageUnavailable, errors.Field(dir), "not a directory")
	}
	return nil
}
