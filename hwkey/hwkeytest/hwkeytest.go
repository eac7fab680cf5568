// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hwkeytest provides scripted devices for tests of code using hwkey.
package hwkeytest

import (
	"encoding/binary"
	"sync"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/decred/keyvault/hwkey/apdu"
)

// Handler answers a complete command, reassembled from its frames.  The
// returned bytes are the response payload; sw is appended as status word.
type Handler func(cmd *apdu.Command) (resp []byte, sw uint16)

// Length returns the full payload length of the command whose first frame is
// first, or -1 when the length is not known from that frame.
type Length func(first *apdu.Command) int

// Device is a scripted hwkey.Device.  Frames of a command are reassembled
// before the handler runs: every frame whose header matches a continuation of
// the previous frame is buffered and answered with 0x9000.
//
// A command is complete once Length bytes have arrived.  Without a known
// length, the first frame shorter than a full chunk completes it.
type Device struct {
	Handler        Handler
	ContinuationP1 byte
	Length         Length

	// Gate, when non-nil, is received from before every frame is answered.
	Gate chan struct{}

	mu       sync.Mutex
	frames   [][]byte
	commands []*apdu.Command
	pending  *apdu.Command
	want     int
	closed   bool
	fail     error
	inFlight int
	maxSeen  int
}

// NewDevice returns a device answering with h.
func NewDevice(h Handler) *Device {
	return &Device{Handler: h, ContinuationP1: hwkey.DefaultContinuationP1}
}

// Fail makes every following exchange return err.
func (d *Device) Fail(err error) {
	d.mu.Lock()
	d.fail = err
	d.mu.Unlock()
}

// Exchange implements hwkey.Device.  A frame with more than 255 payload bytes
// or with an invalid lc is rejected with a CommError.
func (d *Device) Exchange(frame []byte) ([]byte, error) {
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.maxSeen {
		d.maxSeen = d.inFlight
	}
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight--
		d.mu.Unlock()
	}()

	if d.Gate != nil {
		<-d.Gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	const op errors.Op = "hwkeytest.Exchange"
	if d.closed {
		return nil, errors.E(op, errors.Unavailable, "device closed")
	}
	if d.fail != nil {
		return nil, d.fail
	}
	d.frames = append(d.frames, append([]byte(nil), frame...))
	f, err := apdu.ParseFrame(frame)
	if err != nil {
		return nil, err
	}
	if p := d.pending; p != nil && f.CLA == p.CLA && f.INS == p.INS &&
		f.P2 == p.P2 && f.P1 == d.ContinuationP1 {
		p.Data = append(p.Data, f.Data...)
	} else {
		d.pending = &apdu.Command{CLA: f.CLA, INS: f.INS, P1: f.P1, P2: f.P2,
			Data: append([]byte(nil), f.Data...)}
		d.want = -1
		if d.Length != nil {
			d.want = d.Length(d.pending)
		}
	}
	if d.want >= 0 {
		if len(d.pending.Data) < d.want {
			return []byte{0x90, 0x00}, nil
		}
	} else if len(f.Data) == apdu.MaxChunk {
		return []byte{0x90, 0x00}, nil
	}
	cmd := d.pending
	d.pending = nil
	d.commands = append(d.commands, cmd)
	resp, sw := d.Handler(cmd)
	out := make([]byte, len(resp)+2)
	copy(out, resp)
	binary.BigEndian.PutUint16(out[len(resp):], sw)
	return out, nil
}

// Close implements hwkey.Device.
func (d *Device) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Frames returns every frame written so far.
func (d *Device) Frames() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([][]byte(nil), d.frames...)
}

// Commands returns every reassembled command answered so far.
func (d *Device) Commands() []*apdu.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*apdu.Command(nil), d.commands...)
}

// MaxInFlight returns the largest number of concurrent exchanges observed.
func (d *Device) MaxInFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxSeen
}

// Manager is a hwkey.Manager over a fixed set of scripted devices.
type Manager struct {
	mu      sync.Mutex
	infos   []hwkey.DeviceInfo
	devices map[string]*Device
	opens   int

	// OpenGate, when non-nil, is received from before Open returns.
	OpenGate chan struct{}
}

// NewManager returns a manager with no devices.
func NewManager() *Manager {
	return &Manager{devices: make(map[string]*Device)}
}

// Attach connects d under id.
func (m *Manager) Attach(id string, d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, hwkey.DeviceInfo{ID: id, Manufacturer: "Test", Product: "Scripted"})
	m.devices[id] = d
}

// Detach disconnects the device with the given id.
func (m *Manager) Detach(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, info := range m.infos {
		if info.ID == id {
			m.infos = append(m.infos[:i], m.infos[i+1:]...)
			break
		}
	}
	delete(m.devices, id)
}

// Opens returns how many times Open succeeded.
func (m *Manager) Opens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens
}

// ListConnected implements hwkey.Manager.
func (m *Manager) ListConnected() ([]hwkey.DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]hwkey.DeviceInfo(nil), m.infos...), nil
}

// Open implements hwkey.Manager.
func (m *Manager) Open(info hwkey.DeviceInfo) (hwkey.Device, error) {
	if m.OpenGate != nil {
		<-m.OpenGate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devices[info.ID]
	if !ok {
		return nil, errors.E(errors.Op("hwkeytest.Open"), errors.Unavailable,
			errors.Errorf("no device %q", info.ID))
	}
	m.opens++
	d.mu.Lock()
	d.closed = false
	d.mu.Unlock()
	return d, nil
}
