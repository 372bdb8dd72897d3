package idevice

import (
	"encoding/json"
	"fmt"
)

// LockdownInfo is the subset of `lockdown info` output that device_info
// reports. Missing keys stay at their zero value and render as "Unknown";
// pointer fields distinguish absent from present.
type LockdownInfo struct {
	DeviceName             string `json:"DeviceName"`
	ProductType            string `json:"ProductType"`
	HardwareModel          string `json:"HardwareModel"`
	ProductVersion         string `json:"ProductVersion"`
	BuildVersion           string `json:"BuildVersion"`
	UniqueDeviceID         string `json:"UniqueDeviceID"`
	SerialNumber           string `json:"SerialNumber"`
	WiFiAddress            string `json:"WiFiAddress"`
	BluetoothAddress       string `json:"BluetoothAddress"`
	DeviceClass            string `json:"DeviceClass"`
	CPUArchitecture        string `json:"CPUArchitecture"`
	Supports5GStandalone   *bool  `json:"Supports5GStandalone"`
	BatteryCurrentCapacity *int   `json:"BatteryCurrentCapacity"`
}

func ParseLockdownInfo(data string) (*LockdownInfo, error) {
	var info LockdownInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AppInfo is the per-app metadata from `apps list`, keyed by bundle ID in
// the payload.
type AppInfo struct {
	CFBundleDisplayName        string `json:"CFBundleDisplayName"`
	CFBundleName               string `json:"CFBundleName"`
	CFBundleShortVersionString string `json:"CFBundleShortVersionString"`
}

// Name falls back display name -> short name -> bundle ID.
func (a AppInfo) Name(bundleID string) string {
	if a.CFBundleDisplayName != "" {
		return a.CFBundleDisplayName
	}
	if a.CFBundleName != "" {
		return a.CFBundleName
	}
	return bundleID
}

func ParseAppList(data string) (map[string]AppInfo, error) {
	var apps map[string]AppInfo
	if err := json.Unmarshal([]byte(data), &apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// orUnknown renders an optional string field with the device_info placeholder.
func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// FormatLockdownInfo renders the fixed device_info report.
func FormatLockdownInfo(info *LockdownInfo) string {
	supports5G := "Unknown"
	if info.Supports5GStandalone != nil {
		supports5G = fmt.Sprintf("%t", *info.Supports5GStandalone)
	}

	report := fmt.Sprintf(`Device: %s
Model: %s (%s)
iOS Version: %s (Build %s)
UDID: %s
Serial: %s
WiFi MAC: %s
Bluetooth MAC: %s

Device Class: %s
CPU: %s
Supports 5G: %s`,
		orUnknown(info.DeviceName),
		orUnknown(info.ProductType), info.HardwareModel,
		orUnknown(info.ProductVersion), info.BuildVersion,
		orUnknown(info.UniqueDeviceID),
		orUnknown(info.SerialNumber),
		orUnknown(info.WiFiAddress),
		orUnknown(info.BluetoothAddress),
		orUnknown(info.DeviceClass),
		orUnknown(info.CPUArchitecture),
		supports5G,
	)

	if info.BatteryCurrentCapacity != nil {
		report += fmt.Sprintf("\nBattery: %d%%", *info.BatteryCurrentCapacity)
	}
	return report
}
