package idevice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLockdownInfoBatteryPresence(t *testing.T) {
	info, err := ParseLockdownInfo(`{"DeviceName": "Kai's iPhone", "BatteryCurrentCapacity": 87}`)
	require.NoError(t, err)
	require.NotNil(t, info.BatteryCurrentCapacity)
	assert.Equal(t, 87, *info.BatteryCurrentCapacity)

	info, err = ParseLockdownInfo(`{"DeviceName": "Kai's iPhone"}`)
	require.NoError(t, err)
	assert.Nil(t, info.BatteryCurrentCapacity)
}

func TestFormatLockdownInfoPlaceholders(t *testing.T) {
	info, err := ParseLockdownInfo(`{"DeviceName": "Kai's iPhone", "ProductVersion": "17.4"}`)
	require.NoError(t, err)

	report := FormatLockdownInfo(info)
	assert.Contains(t, report, "Device: Kai's iPhone")
	assert.Contains(t, report, "iOS Version: 17.4")
	assert.Contains(t, report, "UDID: Unknown")
	assert.Contains(t, report, "Serial: Unknown")
	assert.Contains(t, report, "Supports 5G: Unknown")
	assert.NotContains(t, report, "Battery:")
}

func TestFormatLockdownInfoBatteryLine(t *testing.T) {
	info, err := ParseLockdownInfo(`{"BatteryCurrentCapacity": 42, "Supports5GStandalone": true}`)
	require.NoError(t, err)

	report := FormatLockdownInfo(info)
	assert.Contains(t, report, "Battery: 42%")
	assert.Contains(t, report, "Supports 5G: true")
}

func TestAppInfoNameFallback(t *testing.T) {
	assert.Equal(t, "Camera", AppInfo{CFBundleDisplayName: "Camera", CFBundleName: "camera-short"}.Name("com.apple.camera"))
	assert.Equal(t, "camera-short", AppInfo{CFBundleName: "camera-short"}.Name("com.apple.camera"))
	assert.Equal(t, "com.apple.camera", AppInfo{}.Name("com.apple.camera"))
}

func TestParseAppListMalformed(t *testing.T) {
	_, err := ParseAppList("not json")
	assert.Error(t, err)
}
