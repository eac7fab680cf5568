// Copyright (c) 2024 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package usbhid is an hwkey.Manager for Ledger devices attached over USB
// HID.
package usbhid

import (
	"io"

	"github.com/decred/keyvault/errors"
	"github.com/decred/keyvault/hwkey"
	"github.com/karalabe/usb"
)

// LedgerVendorID is the USB vendor id of Ledger devices.
const LedgerVendorID = 0x2c97

// Ledger devices expose their APDU endpoint on this usage page, or on
// interface zero when the platform does not report usage pages.
const ledgerUsagePage = 0xffa0

// Manager enumerates Ledger devices.
type Manager struct{}

// Supported reports whether USB access is available on this platform.
func Supported() bool {
	return usb.Supported()
}

func (Manager) enumerate() ([]usb.DeviceInfo, error) {
	infos, err := usb.Enumerate(LedgerVendorID, 0)
	if err != nil {
		return nil, errors.E(errors.Op("usbhid.enumerate"), errors.Unavailable, err)
	}
	var out []usb.DeviceInfo
	for _, info := range infos {
		if info.UsagePage == ledgerUsagePage || info.Interface == 0 {
			out = append(out, info)
		}
	}
	return out, nil
}

// ListConnected implements hwkey.Manager.
func (m Manager) ListConnected() ([]hwkey.DeviceInfo, error) {
	infos, err := m.enumerate()
	if err != nil {
		return nil, err
	}
	devices := make([]hwkey.DeviceInfo, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, hwkey.DeviceInfo{
			ID:           info.Path,
			Manufacturer: info.Manufacturer,
			Product:      info.Product,
		})
	}
	return devices, nil
}

// Open implements hwkey.Manager.
func (m Manager) Open(info hwkey.DeviceInfo) (hwkey.Device, error) {
	const op errors.Op = "usbhid.Open"
	infos, err := m.enumerate()
	if err != nil {
		return nil, errors.E(op, err)
	}
	for _, i := range infos {
		if i.Path != info.ID {
			continue
		}
		dev, err := i.Open()
		if err != nil {
			return nil, errors.E(op, errors.Unavailable, err)
		}
		return NewDevice(dev), nil
	}
	return nil, errors.E(op, errors.Unavailable, errors.Errorf("device %q not connected", info.ID))
}

// Device wraps frames in HID packets.
type Device struct {
	rw io.ReadWriteCloser
}

// NewDevice returns a Device over an open HID connection.
func NewDevice(rw io.ReadWriteCloser) *Device {
	return &Device{rw: rw}
}

// Exchange implements hwkey.Device.
func (d *Device) Exchange(frame []byte) ([]byte, error) {
	const op errors.Op = "usbhid.Exchange"
	for _, p := range Wrap(frame) {
		if _, err := d.rw.Write(p); err != nil {
			return nil, errors.E(op, errors.CommError, err)
		}
	}
	resp, err := Unwrap(d.rw)
	if err != nil {
		return nil, errors.E(op, err)
	}
	return resp, nil
}

// Close implements hwkey.Device.
func (d *Device) Close() error {
	return d.rw.Close()
}
