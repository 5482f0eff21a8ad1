//go:build linux

package evdev

// Device node plumbing:
// - ioctl helpers to read ABS axis ranges and optionally EVIOCGRAB
// - the Device handle handed to sessions

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir uint32, typ uint32, nr uint32, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

func evioCGAbs(absCode int) uintptr {
	// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
	return ioc(iocRead, uint32('E'), uint32(0x40+absCode), uint32(unsafe.Sizeof(AbsInfo{})))
}

func evioCGrab() uintptr {
	// EVIOCGRAB = _IOW('E', 0x90, int)
	return ioc(iocWrite, uint32('E'), uint32(0x90), uint32(unsafe.Sizeof(int32(0))))
}

// Device is an open input device node.
type Device struct {
	f       *os.File
	path    string
	grabbed bool
}

// Open opens the device node at path for reading. With grab set the device
// is taken exclusively (EVIOCGRAB) so no other reader sees its events.
func Open(path string, grab bool) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input device: %w", err)
	}
	d := &Device{f: f, path: path}
	if grab {
		if err := d.setGrab(1); err != nil {
			f.Close()
			return nil, fmt.Errorf("grab %s: %w", path, err)
		}
		d.grabbed = true
	}
	return d, nil
}

func (d *Device) Path() string { return d.path }

func (d *Device) Read(p []byte) (int, error) { return d.f.Read(p) }

// Close releases the grab (if any) and closes the node. Closing unblocks a
// pending Read.
func (d *Device) Close() error {
	if d.grabbed {
		_ = d.setGrab(0)
		d.grabbed = false
	}
	return d.f.Close()
}

func (d *Device) setGrab(v int32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), evioCGrab(), uintptr(unsafe.Pointer(&v)))
	if errno != 0 {
		return errno
	}
	return nil
}

// AbsInfo reads the range of one ABS axis.
func (d *Device) AbsInfo(absCode int) (AbsInfo, error) {
	var info AbsInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.f.Fd(), evioCGAbs(absCode), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return AbsInfo{}, errno
	}
	return info, nil
}

// Ranges reads the ranges of every axis the classifier knows. Axes the
// device does not report are left out.
func (d *Device) Ranges() map[string]AbsInfo {
	out := make(map[string]AbsInfo, len(axisNames))
	for code, name := range axisNames {
		if info, err := d.AbsInfo(code); err == nil {
			out[name] = info
		}
	}
	return out
}
