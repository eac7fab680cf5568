// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package records

import (
	"math"
	"time"

	"github.com/decred/keyvault/errors"
	"github.com/google/uuid"
)

// Wallet groups entries.  EntrySeq is always greater than every entry id ever
// issued, and every seed derived entry has its (seed, account) pair in
// Reserved.
type Wallet struct {
	ID        uuid.UUID
	Label     string
	Entries   []WalletEntry
	EntrySeq  uint32
	Reserved  []ReservedPath
	CreatedAt time.Time
}

// ReservedPath records that an account of a seed is used by the wallet.
type ReservedPath struct {
	SeedID    uuid.UUID
	AccountID uint32
}

// NextEntryID returns the id the next added entry receives.  It is
// math.MaxUint32 once the ids of the wallet are exhausted.
func (w *Wallet) NextEntryID() uint32 {
	next := w.EntrySeq
	for i := range w.Entries {
		switch id := w.Entries[i].ID; {
		case id == math.MaxUint32:
			return math.MaxUint32
		case id >= next:
			next = id + 1
		}
	}
	return next
}

// AddEntry appends e with the next entry id and advances EntrySeq.  Seed
// derived entries reserve their account.  The largest id is math.MaxUint32-1
// since EntrySeq must stay above every issued id.
func (w *Wallet) AddEntry(e WalletEntry) (uint32, error) {
	e.ID = w.NextEntryID()
	if e.ID == math.MaxUint32 {
		return 0, errors.E(errors.Op("records.AddEntry"), errors.Invalid,
			errors.Field("entry_seq"), "wallet entry ids exhausted")
	}
	w.Entries = append(w.Entries, e)
	w.EntrySeq = e.ID + 1
	if hd, ok := e.Key.(*SeedHD); ok {
		w.Reserve(hd.SeedID, hd.Path.Account)
	}
	return e.ID, nil
}

// Entry returns the entry with the given id.
func (w *Wallet) Entry(id uint32) (*WalletEntry, error) {
	for i := range w.Entries {
		if w.Entries[i].ID == id {
			return &w.Entries[i], nil
		}
	}
	return nil, errors.E(errors.Op("records.Entry"), errors.NotExist,
		errors.Field("entry"), errors.Errorf("entry %d", id))
}

// RemoveEntry deletes an entry.  EntrySeq is unchanged so the id is never
// reissued.  Reservations are kept.
func (w *Wallet) RemoveEntry(id uint32) error {
	for i := range w.Entries {
		if w.Entries[i].ID == id {
			w.Entries = append(w.Entries[:i], w.Entries[i+1:]...)
			return nil
		}
	}
	return errors.E(errors.Op("records.RemoveEntry"), errors.NotExist,
		errors.Field("entry"), errors.Errorf("entry %d", id))
}

// Reserve adds the (seed, account) pair unless already present.
func (w *Wallet) Reserve(seedID uuid.UUID, account uint32) {
	if w.IsReserved(seedID, account) {
		return
	}
	w.Reserved = append(w.Reserved, ReservedPath{SeedID: seedID, AccountID: account})
}

// IsReserved reports whether an entry of the wallet already uses the account.
func (w *Wallet) IsReserved(seedID uuid.UUID, account uint32) bool {
	for _, r := range w.Reserved {
		if r.SeedID == seedID && r.AccountID == account {
			return true
		}
	}
	return false
}

// Validate checks the wallet invariants.
func (w *Wallet) Validate() error {
	const op errors.Op = "records.Wallet.Validate"
	seen := make(map[uint32]struct{}, len(w.Entries))
	for i := range w.Entries {
		e := &w.Entries[i]
		if _, dup := seen[e.ID]; dup {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("entries"),
				errors.Errorf("duplicate entry id %d", e.ID))
		}
		seen[e.ID] = struct{}{}
		if e.ID >= w.EntrySeq {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("entry_seq"),
				errors.Errorf("entry id %d not below entry_seq %d", e.ID, w.EntrySeq))
		}
		if hd, ok := e.Key.(*SeedHD); ok && !w.IsReserved(hd.SeedID, hd.Path.Account) {
			return errors.E(op, errors.InvalidFieldValue, errors.Field("reserved"),
				errors.Errorf("entry %d account %d of seed %v is not reserved",
					e.ID, hd.Path.Account, hd.SeedID))
		}
	}
	return nil
}
