package idevice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/apex/log"
)

// Device is one entry from `usbmux list`. Records live for the duration of a
// single directory query; nothing is cached across operations.
type Device struct {
	UniqueDeviceID string `json:"UniqueDeviceID"`
	DeviceName     string `json:"DeviceName"`
	ConnectionType string `json:"ConnectionType"`
}

// Directory enumerates attached devices and resolves user-supplied
// identifiers to UDIDs.
type Directory struct {
	runner CommandRunner
}

func NewDirectory(runner CommandRunner) *Directory {
	return &Directory{runner: runner}
}

// ListDevices returns the currently attached devices in the order usbmux
// reports them. Any failure (tool missing, non-zero exit, malformed output)
// yields an empty list: callers cannot distinguish "no devices" from "could
// not ask", and must treat both as nothing attached.
func (d *Directory) ListDevices(ctx context.Context) []Device {
	out, err := d.runner.Run(ctx, 30*time.Second, "usbmux", "list", "--no-color", "-o", "json")
	if err != nil {
		log.WithError(err).Debug("device enumeration failed")
		return nil
	}

	var devices []Device
	if err := json.Unmarshal([]byte(out), &devices); err != nil {
		log.WithError(err).Debug("malformed device list")
		return nil
	}
	return devices
}

// Resolve maps an identifier to a UDID. An empty identifier selects the
// first attached device. A non-empty identifier must exactly match either a
// UDID or a device name (case-sensitive).
func (d *Directory) Resolve(ctx context.Context, identifier string) (string, bool) {
	devices := d.ListDevices(ctx)
	if len(devices) == 0 {
		return "", false
	}

	if identifier == "" {
		return devices[0].UniqueDeviceID, true
	}

	for _, dev := range devices {
		if dev.UniqueDeviceID == identifier || dev.DeviceName == identifier {
			return dev.UniqueDeviceID, true
		}
	}
	return "", false
}
