// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hwkey provides a transport to hardware signing devices.
//
// A Connector opens devices through a Manager and hands out reference counted
// Handles.  A Handle serializes requests so that at most one request is in
// flight on a device at any time; commands split into several frames are held
// for the duration of all their frames.
package hwkey

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey/apdu"
	"golang.org/x/sync/semaphore"
)

// FingerprintLen is the length of a device fingerprint.
const FingerprintLen = 4

// Fingerprint identifies the master key of a device.  It is the first four
// bytes of hash160 of the compressed master public key.
type Fingerprint [FingerprintLen]byte

// String returns the hex encoding of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes a hex encoded fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != FingerprintLen {
		return fp, errors.E(errors.Op("hwkey.ParseFingerprint"),
			errors.InvalidFieldValue, errors.Field("fingerprint"),
			errors.Errorf("%q", s))
	}
	copy(fp[:], b)
	return fp, nil
}

// DeviceInfo describes a connected device.
type DeviceInfo struct {
	ID           string
	Manufacturer string
	Product      string
}

// Device is an opened device.  Exchange writes one frame and returns the raw
// response including the status word.  Implementations need not be safe for
// concurrent use.
type Device interface {
	Exchange(frame []byte) ([]byte, error)
	Close() error
}

// Manager discovers and opens devices.
type Manager interface {
	ListConnected() ([]DeviceInfo, error)
	Open(info DeviceInfo) (Device, error)
}

// Policy controls what a request does when the device is busy.
type Policy int

const (
	// Wait blocks until the device is free or the context is done.
	Wait Policy = iota

	// FailFast returns a DeviceBusy error immediately.
	FailFast
)

// Options configure a Connector.
type Options struct {
	Policy Policy

	// Chunk is the payload size of a single frame.  Zero selects
	// apdu.MaxChunk.
	Chunk int

	// ContinuationP1 is the P1 value of continuation frames.
	ContinuationP1 byte
}

// DefaultContinuationP1 is the continuation marker used by common signer
// applications.
const DefaultContinuationP1 = 0x80

// DefaultOptions returns options with the Wait policy and 255 byte chunks.
func DefaultOptions() *Options {
	return &Options{
		Policy:         Wait,
		Chunk:          apdu.MaxChunk,
		ContinuationP1: DefaultContinuationP1,
	}
}

// Connector opens devices and shares open handles between callers.
type Connector struct {
	mgr  Manager
	opts Options

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewConnector returns a Connector using mgr.  A nil opts selects
// DefaultOptions.
func NewConnector(mgr Manager, opts *Options) *Connector {
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.Chunk == 0 {
		o.Chunk = apdu.MaxChunk
	}
	return &Connector{
		mgr:     mgr,
		opts:    o,
		handles: make(map[string]*Handle),
	}
}

// List returns the connected devices.
func (c *Connector) List(ctx context.Context) ([]DeviceInfo, error) {
	const op errors.Op = "hwkey.List"
	type result struct {
		infos []DeviceInfo
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		infos, err := c.mgr.ListConnected()
		ch <- result{infos, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, errors.E(op, errors.CommError, r.err)
		}
		return r.infos, nil
	case <-ctx.Done():
		return nil, errors.E(op, errors.Unavailable, ctx.Err())
	}
}

// Connect returns a handle to the first connected device.  It fails with
// Unavailable if there is none or if ctx is done first.  The handle must be
// closed by the caller.
func (c *Connector) Connect(ctx context.Context) (*Handle, error) {
	const op errors.Op = "hwkey.Connect"
	infos, err := c.List(ctx)
	if err != nil {
		return nil, errors.E(op, err)
	}
	if len(infos) == 0 {
		return nil, errors.E(op, errors.Unavailable, "no device connected")
	}
	return c.Open(ctx, infos[0])
}

// Open returns a handle to the device described by info.
func (c *Connector) Open(ctx context.Context, info DeviceInfo) (*Handle, error) {
	const op errors.Op = "hwkey.Open"

	c.mu.Lock()
	if h, ok := c.handles[info.ID]; ok {
		h.refs++
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	type result struct {
		dev Device
		err error
	}
	ch := make(chan result)
	abandoned := make(chan struct{})
	go func() {
		dev, err := c.mgr.Open(info)
		select {
		case ch <- result{dev, err}:
		case <-abandoned:
			if err == nil {
				dev.Close()
			}
		}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		close(abandoned)
		return nil, errors.E(op, errors.Unavailable, ctx.Err())
	}
	if r.err != nil {
		return nil, errors.E(op, errors.Unavailable, r.err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.handles[info.ID]; ok {
		// Lost a race with a concurrent open of the same device.
		r.dev.Close()
		h.refs++
		return h, nil
	}
	h := &Handle{
		conn: c,
		info: info,
		dev:  r.dev,
		sem:  semaphore.NewWeighted(1),
		refs: 1,
	}
	c.handles[info.ID] = h
	log.Debugf("Opened device %s (%s)", info.ID, info.Product)
	return h, nil
}

func (c *Connector) release(h *Handle) error {
	c.mu.Lock()
	h.refs--
	if h.refs > 0 {
		c.mu.Unlock()
		return nil
	}
	if c.handles[h.info.ID] == h {
		delete(c.handles, h.info.ID)
	}
	c.mu.Unlock()

	// Wait for any in flight request before closing the device.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer h.sem.Release(1)
	log.Debugf("Closed device %s", h.info.ID)
	return h.dev.Close()
}

// Handle is a shared reference to an open device.
type Handle struct {
	conn *Connector
	info DeviceInfo
	dev  Device
	sem  *semaphore.Weighted
	refs int // protected by conn.mu
}

// Info describes the device.
func (h *Handle) Info() DeviceInfo {
	return h.info
}

// Close releases the reference.  The device is closed once the last
// reference is released.
func (h *Handle) Close() error {
	return h.conn.release(h)
}

// Result is the outcome of a request.  Data is the raw response of the last
// frame, including the status word.
type Result struct {
	Data []byte
	Err  error
}

// Send submits a single frame.  The returned channel receives exactly one
// Result and is then closed.
func (h *Handle) Send(ctx context.Context, frame []byte) <-chan Result {
	return h.submit(ctx, errors.Op("hwkey.Send"), [][]byte{frame})
}

func (h *Handle) acquire(ctx context.Context, op errors.Op) error {
	if h.conn.opts.Policy == FailFast {
		if !h.sem.TryAcquire(1) {
			return errors.E(op, errors.DeviceBusy, "request in flight")
		}
		return nil
	}
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return errors.E(op, errors.DeviceBusy, err)
	}
	return nil
}

// submit runs frames in order with the device held.  Every frame but the last
// must succeed at the status word level.
func (h *Handle) submit(ctx context.Context, op errors.Op, frames [][]byte) <-chan Result {
	ch := make(chan Result, 1)
	if err := h.acquire(ctx, op); err != nil {
		ch <- Result{Err: err}
		close(ch)
		return ch
	}
	go func() {
		defer close(ch)
		defer h.sem.Release(1)
		var raw []byte
		for i, frame := range frames {
			var err error
			raw, err = h.dev.Exchange(frame)
			if err != nil {
				ch <- Result{Err: errors.E(op, errors.CommError, err)}
				return
			}
			log.Tracef("Device %s: frame %d/%d wrote %d bytes, read %d",
				h.info.ID, i+1, len(frames), len(frame), len(raw))
			if i < len(frames)-1 {
				if _, err := apdu.Check(raw); err != nil {
					ch <- Result{Err: errors.E(op, err)}
					return
				}
			}
		}
		ch <- Result{Data: raw}
	}()
	return ch
}

// Exchange frames cmd, sends all frames and returns the response payload of
// the final frame.  A non-success status word is mapped to an error.  If ctx
// is done before the response arrives the request is abandoned; the device
// stays held until the in flight frame completes.
func (h *Handle) Exchange(ctx context.Context, cmd *apdu.Command) ([]byte, error) {
	const op errors.Op = "hwkey.Exchange"
	frames, err := cmd.Frames(h.conn.opts.Chunk, h.conn.opts.ContinuationP1)
	if err != nil {
		return nil, errors.E(op, err)
	}
	select {
	case r := <-h.submit(ctx, op, frames):
		if r.Err != nil {
			return nil, r.Err
		}
		data, err := apdu.Check(r.Data)
		if err != nil {
			return nil, errors.E(op, err)
		}
		return data, nil
	case <-ctx.Done():
		return nil, errors.E(op, errors.Unavailable, ctx.Err())
	}
}
