// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package vault

import (
	"context"
	"crypto/ecdsa"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Consumer is the view of the vault used by signing and RPC front ends.
type Consumer interface {
	// DecryptKeyfile returns the private key of an Ethereum address held
	// as a legacy keyfile or an imported key.
	DecryptKeyfile(addr common.Address, passphrase []byte) (*ecdsa.PrivateKey, error)

	// ProvisionEntry adds a seed derived entry to a wallet.
	ProvisionEntry(ctx context.Context, req *ProvisionRequest) (uint32, error)

	// ResolveSigner returns the signer of a wallet entry.
	ResolveSigner(ctx context.Context, walletID uuid.UUID, entryID uint32, password []byte) (*Signer, error)
}

var _ Consumer = (*Vault)(nil)

// ProvisionRequest describes a seed derived entry.  Path is an account path
// for Bitcoin chains and a full address path for Ethereum chains.
type ProvisionRequest struct {
	WalletID   uuid.UUID
	SeedID     uuid.UUID
	Blockchain blockchain.ID
	Path       string

	// Address is the expected address of Ethereum entries.
	Address *common.Address

	Options AddEntryOptions
}

// ProvisionEntry dispatches req to the provisioning workflow of its chain.
func (v *Vault) ProvisionEntry(ctx context.Context, req *ProvisionRequest) (uint32, error) {
	const op errors.Op = "vault.ProvisionEntry"
	if !req.Blockchain.Valid() {
		return 0, errors.E(op, errors.IncorrectBlockchain, errors.Field(req.Blockchain.String()))
	}
	switch req.Blockchain.Type() {
	case blockchain.FamilyBitcoin:
		account, err := hdpath.ParseAccount(req.Path)
		if err != nil {
			return 0, errors.E(op, err)
		}
		id, err := v.AddBitcoinEntry(req.WalletID).SeedHD(ctx, req.SeedID, account,
			req.Blockchain, &req.Options)
		if err != nil {
			return 0, errors.E(op, err)
		}
		return id, nil
	case blockchain.FamilyEthereum:
		path, err := hdpath.ParseStandard(req.Path)
		if err != nil {
			return 0, errors.E(op, err)
		}
		id, err := v.AddEthereumEntry(req.WalletID).SeedHD(ctx, req.SeedID, path,
			req.Blockchain, req.Address, &req.Options)
		if err != nil {
			return 0, errors.E(op, err)
		}
		return id, nil
	}
	return 0, errors.E(op, errors.IncorrectBlockchain, errors.Field(req.Blockchain.String()))
}

// DecryptKeyfile searches the keyfile directory, then the imported keys, for
// addr and decrypts the key found.  A missing keyfile directory is not an
// error when an imported key matches.
func (v *Vault) DecryptKeyfile(addr common.Address, passphrase []byte) (*ecdsa.PrivateKey, error) {
	const op errors.Op = "vault.DecryptKeyfile"
	dir, dirErr := v.keystore()
	if dirErr == nil {
		_, kf, err := dir.SearchByAddress(addr)
		switch {
		case err == nil:
			key, err := kf.DecryptKey(passphrase)
			if err != nil {
				return nil, errors.E(op, err)
			}
			return key, nil
		case !errors.Is(errors.NotExist, err):
			return nil, errors.E(op, err)
		}
	}

	holders, err := v.keys.List()
	if err != nil {
		return nil, errors.E(op, err)
	}
	for _, h := range holders {
		if h.Pk.Address == nil || *h.Pk.Address != addr {
			continue
		}
		raw, err := h.Pk.Key.Decrypt(passphrase)
		if err != nil {
			return nil, errors.E(op, err)
		}
		key, err := crypto.ToECDSA(raw)
		zero(raw)
		if err != nil {
			return nil, errors.E(op, errors.InvalidData, errors.Field("key"), err)
		}
		return key, nil
	}
	if dirErr != nil {
		return nil, errors.E(op, dirErr)
	}
	return nil, errors.E(op, errors.NotExist, errors.Field(addr.Hex()))
}

// Keyfiles lists the legacy keyfiles.
func (v *Vault) Keyfiles(showHidden bool) ([]keystore.Account, error) {
	const op errors.Op = "vault.Keyfiles"
	dir, err := v.keystore()
	if err != nil {
		return nil, errors.E(op, err)
	}
	accounts, err := dir.ListAddresses(showHidden)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return accounts, nil
}

// ExportKeyfile writes an Ethereum key as a new legacy keyfile and returns
// its path.
func (v *Vault) ExportKeyfile(key *ecdsa.PrivateKey, passphrase []byte, name string) (string, error) {
	const op errors.Op = "vault.ExportKeyfile"
	dir, err := v.keystore()
	if err != nil {
		return "", errors.E(op, err)
	}
	kf, err := keystore.NewKeyFile(key, passphrase, v.enc)
	if err != nil {
		return "", errors.E(op, err)
	}
	kf.Name = name
	path, err := dir.Flush(kf)
	if err != nil {
		return "", errors.E(op, err)
	}
	return path, nil
}
