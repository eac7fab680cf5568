// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/ledger"
	"github.com/decred/keyvault/internal/loggers"
	"github.com/decred/keyvault/keystore"
	"github.com/decred/keyvault/storage"
	"github.com/decred/keyvault/vault"
)

var log = loggers.MainLog

// Initialize package-global logger variables.
func init() {
	vault.UseLogger(loggers.VaultLog)
	storage.UseLogger(loggers.StorageLog)
	hwkey.UseLogger(loggers.HardwareLog)
	ledger.UseLogger(loggers.LedgerLog)
	keystore.UseLogger(loggers.KeystoreLog)
}

// fatalf logs a message, flushes the logger, and finally exit the process with
// a non-zero return code.
func fatalf(format string, args ...interface{}) {
	log.Errorf(format, args...)
	if err := loggers.CloseLogRotator(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log rotator: %v\n", err)
	}
	os.Exit(1)
}
