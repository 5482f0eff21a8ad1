//go:build !linux

package evdev

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("evdev: input devices are only supported on linux")

// Device is an open input device node. Outside linux the node is still
// readable (recorded event dumps work) but ioctls are unavailable.
type Device struct {
	f    *os.File
	path string
}

func Open(path string, grab bool) (*Device, error) {
	if grab {
		return nil, errUnsupported
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Device{f: f, path: path}, nil
}

func (d *Device) Path() string { return d.path }

func (d *Device) Read(p []byte) (int, error) { return d.f.Read(p) }

func (d *Device) Close() error { return d.f.Close() }

func (d *Device) AbsInfo(absCode int) (AbsInfo, error) { return AbsInfo{}, errUnsupported }

func (d *Device) Ranges() map[string]AbsInfo { return nil }
