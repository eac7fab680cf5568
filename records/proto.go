// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package records

import (
	"time"

	"github.com/decred/keyvault/blockchain"
	"github.com/decred/keyvault/encrypted"
	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hdkey"
	"github.com/decred/keyvault/hdpath"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/internal/pbwire"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// FileVersion is the only supported envelope version.
const FileVersion = 1

// FileType identifies the record carried by an envelope.
type FileType uint64

// Record types.
const (
	FileTypePrivateKey FileType = 1
	FileTypeSeed       FileType = 2
	FileTypeWallet     FileType = 3
)

func (t FileType) String() string {
	switch t {
	case FileTypePrivateKey:
		return "private key"
	case FileTypeSeed:
		return "seed"
	case FileTypeWallet:
		return "wallet"
	}
	return "unknown"
}

// Envelope:
//
//	message File {
//	    uint32 version = 1;
//	    FileType type = 2;
//	    bytes payload = 3;
//	}
func wrap(t FileType, payload []byte) []byte {
	var b []byte
	b = pbwire.AppendUint(b, 1, FileVersion)
	b = pbwire.AppendUint(b, 2, uint64(t))
	return pbwire.AppendMessage(b, 3, payload)
}

func unwrap(op errors.Op, t FileType, b []byte) ([]byte, error) {
	m, err := pbwire.Parse(b)
	if err != nil {
		return nil, errors.E(op, errors.Field("file"), err)
	}
	if v := m.Uint(1); v != FileVersion {
		return nil, errors.E(op, errors.UnsupportedVersion, errors.Field("version"),
			errors.Errorf("record version %d", v))
	}
	if got := FileType(m.Uint(2)); got != t {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("type"),
			errors.Errorf("expected %v record, found %v", t, got))
	}
	if !m.Has(3) {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("payload"))
	}
	return m.Bytes(3), nil
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	if t.IsZero() {
		return b
	}
	return pbwire.AppendUint(b, num, uint64(t.UnixMilli()))
}

func decodeTime(m pbwire.Message, num protowire.Number) time.Time {
	if !m.Has(num) {
		return time.Time{}
	}
	return time.UnixMilli(int64(m.Uint(num))).UTC()
}

func decodeUUID(op errors.Op, field string, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, errors.E(op, errors.FieldIsEmpty, errors.Field(field))
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.E(op, errors.InvalidFieldValue, errors.Field(field), err)
	}
	return id, nil
}

// EncodePrivateKey encodes a private key record.
//
//	message PrivateKey {
//	    string id = 1;
//	    EthereumPrivateKey ethereum = 2;  // { EthereumPK3 pk = 1; }
//	    uint64 created_at = 3;
//	}
//	message EthereumPK3 {
//	    string address = 1;
//	    Encrypted value = 2;
//	}
func EncodePrivateKey(pk *PrivateKeyHolder) ([]byte, error) {
	const op errors.Op = "records.EncodePrivateKey"
	if pk.Pk.Key == nil {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("encrypted"))
	}
	value, err := pk.Pk.Key.AppendProto(nil)
	if err != nil {
		return nil, errors.E(op, err)
	}
	var pk3 []byte
	if pk.Pk.Address != nil {
		pk3 = pbwire.AppendString(pk3, 1, pk.Pk.Address.Hex())
	}
	pk3 = pbwire.AppendMessage(pk3, 2, value)
	eth := pbwire.AppendMessage(nil, 1, pk3)

	var b []byte
	b = pbwire.AppendString(b, 1, pk.ID.String())
	b = pbwire.AppendMessage(b, 2, eth)
	b = appendTime(b, 3, pk.CreatedAt)
	return wrap(FileTypePrivateKey, b), nil
}

// DecodePrivateKey decodes a private key record.
func DecodePrivateKey(b []byte) (*PrivateKeyHolder, error) {
	const op errors.Op = "records.DecodePrivateKey"
	payload, err := unwrap(op, FileTypePrivateKey, b)
	if err != nil {
		return nil, err
	}
	m, err := pbwire.Parse(payload)
	if err != nil {
		return nil, errors.E(op, errors.Field("private_key"), err)
	}
	if !m.Has(2) {
		return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("pk"),
			"no supported key type")
	}
	eth, err := pbwire.Parse(m.Bytes(2))
	if err != nil {
		return nil, errors.E(op, errors.Field("ethereum"), err)
	}
	if !eth.Has(1) {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("pk"))
	}
	pk3, err := pbwire.Parse(eth.Bytes(1))
	if err != nil {
		return nil, errors.E(op, errors.Field("pk"), err)
	}
	if !pk3.Has(2) {
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("encrypted"))
	}
	key, err := encrypted.DecodeProto(pk3.Bytes(2))
	if err != nil {
		return nil, errors.E(op, err)
	}
	holder := &PrivateKeyHolder{
		Pk:        EthereumPk3Key{Key: key},
		CreatedAt: decodeTime(m, 3),
	}
	// A malformed cached address is dropped; it can be recomputed from the key.
	if s := pk3.Text(1); common.IsHexAddress(s) {
		a := common.HexToAddress(s)
		holder.Pk.Address = &a
	}
	holder.ID, err = decodeUUID(op, "id", m.Text(1))
	if err != nil {
		return nil, err
	}
	return holder, nil
}

// EncodeSeed encodes a seed record.
//
//	message Seed {
//	    string id = 1;
//	    string label = 2;
//	    oneof source {
//	        Encrypted bytes = 3;
//	        LedgerSource ledger = 4;  // { repeated bytes fingerprints = 1; }
//	    }
//	    uint64 created_at = 5;
//	}
func EncodeSeed(s *Seed) ([]byte, error) {
	const op errors.Op = "records.EncodeSeed"
	var b []byte
	b = pbwire.AppendString(b, 1, s.ID.String())
	b = pbwire.AppendString(b, 2, s.Label)
	switch src := s.Source.(type) {
	case *BytesSource:
		if src.Encrypted == nil {
			return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("bytes"))
		}
		enc, err := src.Encrypted.AppendProto(nil)
		if err != nil {
			return nil, errors.E(op, err)
		}
		b = pbwire.AppendMessage(b, 3, enc)
	case *HardwareSource:
		var l []byte
		for _, fp := range src.Fingerprints {
			l = pbwire.AppendMessage(l, 1, fp[:])
		}
		b = pbwire.AppendMessage(b, 4, l)
	default:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("source"))
	}
	b = appendTime(b, 5, s.CreatedAt)
	return wrap(FileTypeSeed, b), nil
}

// DecodeSeed decodes a seed record.
func DecodeSeed(b []byte) (*Seed, error) {
	const op errors.Op = "records.DecodeSeed"
	payload, err := unwrap(op, FileTypeSeed, b)
	if err != nil {
		return nil, err
	}
	m, err := pbwire.Parse(payload)
	if err != nil {
		return nil, errors.E(op, errors.Field("seed"), err)
	}
	s := &Seed{Label: m.Text(2), CreatedAt: decodeTime(m, 5)}
	if s.ID, err = decodeUUID(op, "id", m.Text(1)); err != nil {
		return nil, err
	}
	switch {
	case m.Has(3):
		enc, err := encrypted.DecodeProto(m.Bytes(3))
		if err != nil {
			return nil, errors.E(op, err)
		}
		s.Source = &BytesSource{Encrypted: enc}
	case m.Has(4):
		l, err := pbwire.Parse(m.Bytes(4))
		if err != nil {
			return nil, errors.E(op, errors.Field("ledger"), err)
		}
		src := &HardwareSource{}
		for _, raw := range l.Repeated(1) {
			var fp hwkey.Fingerprint
			if len(raw) != len(fp) {
				return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("fingerprints"))
			}
			copy(fp[:], raw)
			src.Fingerprints = append(src.Fingerprints, fp)
		}
		s.Source = src
	default:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("source"))
	}
	return s, nil
}

// EncodeWallet encodes a wallet record.
//
//	message Wallet {
//	    string id = 1;
//	    string label = 2;
//	    repeated WalletEntry entries = 3;
//	    uint32 entry_seq = 4;
//	    repeated Reserved reserved = 5;  // { string seed_id = 1; uint32 account_id = 2; }
//	    uint64 created_at = 6;
//	}
func EncodeWallet(w *Wallet) ([]byte, error) {
	const op errors.Op = "records.EncodeWallet"
	if err := w.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	var b []byte
	b = pbwire.AppendString(b, 1, w.ID.String())
	b = pbwire.AppendString(b, 2, w.Label)
	for i := range w.Entries {
		e, err := encodeEntry(&w.Entries[i])
		if err != nil {
			return nil, errors.E(op, err)
		}
		b = pbwire.AppendMessage(b, 3, e)
	}
	b = pbwire.AppendUint(b, 4, uint64(w.EntrySeq))
	for _, r := range w.Reserved {
		var rb []byte
		rb = pbwire.AppendString(rb, 1, r.SeedID.String())
		rb = pbwire.AppendUint(rb, 2, uint64(r.AccountID))
		b = pbwire.AppendMessage(b, 5, rb)
	}
	b = appendTime(b, 6, w.CreatedAt)
	return wrap(FileTypeWallet, b), nil
}

// DecodeWallet decodes a wallet record and checks its invariants.
func DecodeWallet(b []byte) (*Wallet, error) {
	const op errors.Op = "records.DecodeWallet"
	payload, err := unwrap(op, FileTypeWallet, b)
	if err != nil {
		return nil, err
	}
	m, err := pbwire.Parse(payload)
	if err != nil {
		return nil, errors.E(op, errors.Field("wallet"), err)
	}
	w := &Wallet{
		Label:     m.Text(2),
		EntrySeq:  uint32(m.Uint(4)),
		CreatedAt: decodeTime(m, 6),
	}
	if w.ID, err = decodeUUID(op, "id", m.Text(1)); err != nil {
		return nil, err
	}
	for _, raw := range m.Repeated(3) {
		e, err := decodeEntry(raw)
		if err != nil {
			return nil, errors.E(op, err)
		}
		w.Entries = append(w.Entries, *e)
	}
	for _, raw := range m.Repeated(5) {
		r, err := pbwire.Parse(raw)
		if err != nil {
			return nil, errors.E(op, errors.Field("reserved"), err)
		}
		seedID, err := decodeUUID(op, "reserved.seed_id", r.Text(1))
		if err != nil {
			return nil, err
		}
		w.Reserved = append(w.Reserved, ReservedPath{SeedID: seedID, AccountID: uint32(r.Uint(2))})
	}
	if err := w.Validate(); err != nil {
		return nil, errors.E(op, err)
	}
	return w, nil
}

//	message WalletEntry {
//	    uint32 id = 1;
//	    uint32 blockchain = 2;
//	    string label = 3;
//	    oneof key {
//	        SeedHD seed_hd = 4;        // { string seed_id = 1; string hd_path = 2; }
//	        HardwareKey hardware = 5;  // { bytes fingerprint = 1; string hd_path = 2; }
//	        string pk_id = 6;
//	    }
//	    oneof address {
//	        string plain = 7;
//	        XPub xpub = 8;             // { string value = 1; AddressType type = 2; }
//	    }
//	    uint64 created_at = 9;
//	}
func encodeEntry(e *WalletEntry) ([]byte, error) {
	const op errors.Op = "records.encodeEntry"
	var b []byte
	b = pbwire.AppendUint(b, 1, uint64(e.ID))
	b = pbwire.AppendUint(b, 2, uint64(e.Blockchain))
	b = pbwire.AppendString(b, 3, e.Label)
	switch k := e.Key.(type) {
	case *SeedHD:
		var kb []byte
		kb = pbwire.AppendString(kb, 1, k.SeedID.String())
		kb = pbwire.AppendString(kb, 2, k.Path.String())
		b = pbwire.AppendMessage(b, 4, kb)
	case *HardwareKey:
		var kb []byte
		kb = pbwire.AppendBytes(kb, 1, k.Fingerprint[:])
		kb = pbwire.AppendString(kb, 2, k.Path.String())
		b = pbwire.AppendMessage(b, 5, kb)
	case *EthereumPk3:
		b = pbwire.AppendString(b, 6, k.KeyID.String())
	default:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("key"))
	}
	switch a := e.Address.(type) {
	case *PlainAddress:
		b = pbwire.AppendString(b, 7, a.Value)
	case *ExtendedPub:
		var ab []byte
		ab = pbwire.AppendString(ab, 1, a.XPub.String())
		ab = pbwire.AppendUint(ab, 2, uint64(a.XPub.AddressType)+1)
		b = pbwire.AppendMessage(b, 8, ab)
	case nil:
	default:
		return nil, errors.E(op, errors.Bug, "unhandled address type")
	}
	b = appendTime(b, 9, e.CreatedAt)
	return b, nil
}

func decodeEntry(raw []byte) (*WalletEntry, error) {
	const op errors.Op = "records.decodeEntry"
	m, err := pbwire.Parse(raw)
	if err != nil {
		return nil, errors.E(op, errors.Field("entries"), err)
	}
	chain, err := blockchain.FromUint32(uint32(m.Uint(2)))
	if err != nil {
		return nil, errors.E(op, errors.InvalidFieldValue, err)
	}
	e := &WalletEntry{
		ID:         uint32(m.Uint(1)),
		Blockchain: chain,
		Label:      m.Text(3),
		CreatedAt:  decodeTime(m, 9),
	}

	switch {
	case m.Has(4):
		k, err := pbwire.Parse(m.Bytes(4))
		if err != nil {
			return nil, errors.E(op, errors.Field("seed_hd"), err)
		}
		seedID, err := decodeUUID(op, "seed_id", k.Text(1))
		if err != nil {
			return nil, err
		}
		path, err := hdpath.ParseStandard(k.Text(2))
		if err != nil {
			return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("hd_path"), err)
		}
		e.Key = &SeedHD{SeedID: seedID, Path: path}
	case m.Has(5):
		k, err := pbwire.Parse(m.Bytes(5))
		if err != nil {
			return nil, errors.E(op, errors.Field("hardware"), err)
		}
		hk := &HardwareKey{}
		if fp := k.Bytes(1); len(fp) != len(hk.Fingerprint) {
			return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("fingerprint"))
		}
		copy(hk.Fingerprint[:], k.Bytes(1))
		if hk.Path, err = hdpath.ParseStandard(k.Text(2)); err != nil {
			return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("hd_path"), err)
		}
		e.Key = hk
	case m.Has(6):
		keyID, err := decodeUUID(op, "pk_id", m.Text(6))
		if err != nil {
			return nil, err
		}
		e.Key = &EthereumPk3{KeyID: keyID}
	default:
		return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("key"))
	}

	switch {
	case m.Has(7):
		e.Address = &PlainAddress{Value: m.Text(7)}
	case m.Has(8):
		a, err := pbwire.Parse(m.Bytes(8))
		if err != nil {
			return nil, errors.E(op, errors.Field("xpub"), err)
		}
		xpub, err := hdkey.ParseXPub(a.Text(1))
		if err != nil {
			return nil, errors.E(op, err)
		}
		typ := a.Uint(2)
		if typ == 0 {
			return nil, errors.E(op, errors.FieldIsEmpty, errors.Field("xpub.type"))
		}
		if xpub.AddressType != hdkey.AddressType(typ-1) {
			return nil, errors.E(op, errors.InvalidFieldValue, errors.Field("xpub.type"))
		}
		e.Address = &ExtendedPub{XPub: xpub}
	}
	return e, nil
}
