// Copyright (c) 2017-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	_ "embed"
	"os"
	"path/filepath"
)

//go:embed sample-keyvault.conf
var sampleKeyvaultConf string

// createDefaultConfigFile writes the commented example config to path.  An
// existing file is never overwritten.
func createDefaultConfigFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(sampleKeyvaultConf); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
