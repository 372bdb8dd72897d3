package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/idevicekit/idevice-mcp/internal/idevice"
)

const (
	commandTimeout    = 30 * time.Second
	screenshotTimeout = 60 * time.Second
	appListTimeout    = 60 * time.Second

	noDeviceText = "No device found. Connect an iOS device and try again."
)

func (s *Server) handleListDevices(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	devices := s.directory.ListDevices(ctx)

	if len(devices) == 0 {
		return mcplib.NewToolResultText("No iOS devices connected.\n\nMake sure:\n" +
			"1. Your device is connected via USB\n" +
			"2. You've trusted the computer on your device\n" +
			"3. pymobiledevice3 is installed: pip install pymobiledevice3"), nil
	}

	lines := []string{fmt.Sprintf("Found %d connected device(s):\n", len(devices))}
	for i, device := range devices {
		lines = append(lines,
			fmt.Sprintf("%d. %s", i+1, orUnknownField(device.DeviceName)),
			fmt.Sprintf("   UDID: %s", orUnknownField(device.UniqueDeviceID)),
			fmt.Sprintf("   Connection: %s", orUnknownField(device.ConnectionType)),
			"",
		)
	}
	return mcplib.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) handleDeviceInfo(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	udid, ok := s.directory.Resolve(ctx, request.GetString("device_id", ""))
	if !ok {
		return mcplib.NewToolResultText(noDeviceText), nil
	}

	out, err := s.runner.Run(ctx, commandTimeout, "lockdown", "info", "--udid", udid, "-o", "json")
	if err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf("Failed to get device info: %s", err)), nil
	}

	info, err := idevice.ParseLockdownInfo(out)
	if err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf("Failed to parse device info: %s", out)), nil
	}

	return mcplib.NewToolResultText(idevice.FormatLockdownInfo(info)), nil
}

func (s *Server) handleScreenshot(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	udid, ok := s.directory.Resolve(ctx, request.GetString("device_id", ""))
	if !ok {
		return mcplib.NewToolResultText(noDeviceText), nil
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("idevice-screenshot-%s.png", uuid.NewString()))
	defer os.Remove(tmpPath)

	_, err := s.runner.Run(ctx, screenshotTimeout, "developer", "dvt", "screenshot", tmpPath, "--udid", udid)
	if err != nil {
		// The DVT variant needs a mounted developer image; fall back to the
		// plain screenshot service once before giving up.
		if _, retryErr := s.runner.Run(ctx, screenshotTimeout, "developer", "screenshot", tmpPath, "--udid", udid); retryErr != nil {
			return mcplib.NewToolResultText(fmt.Sprintf(
				"Failed to take screenshot: %s\n\nNote: Screenshots require Developer Mode to be enabled on iOS 16+ devices.", err)), nil
		}
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return mcplib.NewToolResultText("Screenshot file was not created."), nil
	}

	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.NewImageContent(base64.StdEncoding.EncodeToString(data), "image/png"),
			mcplib.NewTextContent(fmt.Sprintf("Screenshot captured at %s", time.Now().Format("15:04:05"))),
		},
	}, nil
}

func (s *Server) handleGetLogs(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	udid, ok := s.directory.Resolve(ctx, request.GetString("device_id", ""))
	if !ok {
		return mcplib.NewToolResultText(noDeviceText), nil
	}

	duration := time.Duration(request.GetInt("duration_seconds", int(s.defaultLogDuration.Seconds()))) * time.Second
	duration = idevice.ClampDuration(duration)
	filter := request.GetString("filter", "")

	lines, total, err := s.syslog.Capture(ctx, idevice.SyslogOptions{
		UDID:     udid,
		Duration: duration,
		Filter:   filter,
	})
	if err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf("Failed to capture logs: %s", err)), nil
	}

	if len(lines) == 0 {
		msg := fmt.Sprintf("No logs captured in %d seconds.", int(duration.Seconds()))
		if filter != "" {
			msg += fmt.Sprintf(" (filter: '%s')", filter)
		}
		return mcplib.NewToolResultText(msg), nil
	}

	var header string
	if total > idevice.MaxLogLines {
		header = fmt.Sprintf("Showing last %d of %d log lines:\n\n", idevice.MaxLogLines, total)
	} else {
		header = fmt.Sprintf("Captured %d log lines:\n\n", len(lines))
	}
	return mcplib.NewToolResultText(header + strings.Join(lines, "\n")), nil
}

func (s *Server) handleListApps(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	udid, ok := s.directory.Resolve(ctx, request.GetString("device_id", ""))
	if !ok {
		return mcplib.NewToolResultText(noDeviceText), nil
	}

	out, err := s.runner.Run(ctx, appListTimeout, "apps", "list", "--udid", udid, "-o", "json")
	if err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf("Failed to list apps: %s", err)), nil
	}

	apps, err := idevice.ParseAppList(out)
	if err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf("Failed to parse app list: %s", out)), nil
	}

	filter := strings.ToLower(request.GetString("filter", ""))

	bundleIDs := make([]string, 0, len(apps))
	for bundleID := range apps {
		bundleIDs = append(bundleIDs, bundleID)
	}
	sort.Strings(bundleIDs)

	var lines []string
	count := 0
	for _, bundleID := range bundleIDs {
		app := apps[bundleID]
		name := app.Name(bundleID)

		if filter != "" && !strings.Contains(strings.ToLower(name+" "+bundleID), filter) {
			continue
		}

		count++
		lines = append(lines, fmt.Sprintf("• %s", name), fmt.Sprintf("  Bundle ID: %s", bundleID))
		if app.CFBundleShortVersionString != "" {
			lines = append(lines, fmt.Sprintf("  Version: %s", app.CFBundleShortVersionString))
		}
		lines = append(lines, "")
	}

	if count == 0 {
		if filter != "" {
			return mcplib.NewToolResultText(fmt.Sprintf("No apps found matching '%s'.", request.GetString("filter", ""))), nil
		}
		return mcplib.NewToolResultText("No apps found."), nil
	}

	header := fmt.Sprintf("Found %d app(s)", count)
	if filter != "" {
		header += fmt.Sprintf(" matching '%s'", request.GetString("filter", ""))
	}
	header += ":\n\n"

	return mcplib.NewToolResultText(header + strings.Join(lines, "\n")), nil
}

func (s *Server) handleLaunchApp(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	bundleID, err := request.RequireString("bundle_id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	udid, ok := s.directory.Resolve(ctx, request.GetString("device_id", ""))
	if !ok {
		return mcplib.NewToolResultText(noDeviceText), nil
	}

	if _, err := s.runner.Run(ctx, commandTimeout, "developer", "dvt", "launch", bundleID, "--udid", udid); err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf(
			"Failed to launch %s: %s\n\nMake sure the app is installed and Developer Mode is enabled.", bundleID, err)), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("Launched %s", bundleID)), nil
}

func (s *Server) handleKillApp(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	bundleID, err := request.RequireString("bundle_id")
	if err != nil {
		return mcplib.NewToolResultError(err.Error()), nil
	}

	udid, ok := s.directory.Resolve(ctx, request.GetString("device_id", ""))
	if !ok {
		return mcplib.NewToolResultText(noDeviceText), nil
	}

	if _, err := s.runner.Run(ctx, commandTimeout, "developer", "dvt", "kill", bundleID, "--udid", udid); err != nil {
		return mcplib.NewToolResultText(fmt.Sprintf("Failed to kill %s: %s", bundleID, err)), nil
	}
	return mcplib.NewToolResultText(fmt.Sprintf("Killed %s", bundleID)), nil
}

func orUnknownField(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
