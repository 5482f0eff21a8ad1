package evdev

// Input device listing.
//
// On reMarkable the pen digitizer shows up as one of /dev/input/eventX. The
// relay is always told which node to read; this listing only helps pick it
// by hand.

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// ProcDevicesPath is the kernel's input device table.
const ProcDevicesPath = "/proc/bus/input/devices"

// DeviceInfo is one block of /proc/bus/input/devices.
type DeviceInfo struct {
	Name     string
	Handlers []string
}

// EventNode returns the /dev/input/eventN path of the device, or "" if it
// has no event handler.
func (d DeviceInfo) EventNode() string {
	for _, h := range d.Handlers {
		if strings.HasPrefix(h, "event") {
			return "/dev/input/" + h
		}
	}
	return ""
}

// ListDevices reads the system input device table.
func ListDevices() ([]DeviceInfo, error) {
	f, err := os.Open(ProcDevicesPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseDevices(f)
}

// ParseDevices parses the /proc/bus/input/devices format. Blocks are
// separated by blank lines; only the N: and H: lines are used.
func ParseDevices(r io.Reader) ([]DeviceInfo, error) {
	var (
		out  []DeviceInfo
		info DeviceInfo
	)
	flush := func() {
		if info.Name != "" || len(info.Handlers) > 0 {
			out = append(out, info)
		}
		info = DeviceInfo{}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == "":
			flush()
		case strings.HasPrefix(line, "N: Name="):
			parts := strings.SplitN(line, "=", 2)
			info.Name = strings.Trim(parts[1], " \"")
		case strings.HasPrefix(line, "H: Handlers="):
			parts := strings.SplitN(line, "=", 2)
			info.Handlers = strings.Fields(parts[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return out, nil
}
