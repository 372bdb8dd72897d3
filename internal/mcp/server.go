package mcp

import (
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/idevicekit/idevice-mcp/internal/idevice"
)

const serverName = "idevice-mcp"

// Server exposes the device-management tool set over MCP. The transport
// (stdio or HTTP+SSE) is chosen by the caller; one Server value backs both.
type Server struct {
	mcp       *server.MCPServer
	runner    idevice.CommandRunner
	directory *idevice.Directory
	syslog    idevice.SyslogCapturer

	defaultLogDuration time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithDefaultLogDuration sets the get_logs capture window used when the
// caller does not pass duration_seconds.
func WithDefaultLogDuration(d time.Duration) Option {
	return func(s *Server) {
		s.defaultLogDuration = d
	}
}

func NewServer(version string, runner idevice.CommandRunner, syslog idevice.SyslogCapturer, opts ...Option) *Server {
	s := &Server{
		runner:             runner,
		directory:          idevice.NewDirectory(runner),
		syslog:             syslog,
		defaultLogDuration: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()

	return s
}

// ServeStdio runs the local pipe binding. Blocks until the client closes the
// session or the process is signalled.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcplib.NewTool("list_devices",
		mcplib.WithDescription("List all connected iOS devices. Returns device names, UDIDs, and connection info."),
	), s.handleListDevices)

	s.mcp.AddTool(mcplib.NewTool("device_info",
		mcplib.WithDescription("Get detailed information about a connected iOS device including model, iOS version, battery, storage, etc."),
		mcplib.WithString("device_id",
			mcplib.Description("Device UDID or name. If not provided, uses the first connected device."),
		),
	), s.handleDeviceInfo)

	s.mcp.AddTool(mcplib.NewTool("screenshot",
		mcplib.WithDescription("Take a screenshot of the iOS device screen. Returns the image that can be viewed directly."),
		mcplib.WithString("device_id",
			mcplib.Description("Device UDID or name. If not provided, uses the first connected device."),
		),
	), s.handleScreenshot)

	s.mcp.AddTool(mcplib.NewTool("get_logs",
		mcplib.WithDescription("Get recent system logs from the iOS device. Useful for debugging app crashes and issues."),
		mcplib.WithString("device_id",
			mcplib.Description("Device UDID or name. If not provided, uses the first connected device."),
		),
		mcplib.WithNumber("duration_seconds",
			mcplib.Description("How many seconds of logs to capture. Default is 5 seconds."),
			mcplib.DefaultNumber(5),
		),
		mcplib.WithString("filter",
			mcplib.Description("Optional text filter to only show logs containing this string."),
		),
	), s.handleGetLogs)

	s.mcp.AddTool(mcplib.NewTool("list_apps",
		mcplib.WithDescription("List all installed applications on the iOS device."),
		mcplib.WithString("device_id",
			mcplib.Description("Device UDID or name. If not provided, uses the first connected device."),
		),
		mcplib.WithString("filter",
			mcplib.Description("Optional filter to search for specific apps by name or bundle ID."),
		),
	), s.handleListApps)

	s.mcp.AddTool(mcplib.NewTool("launch_app",
		mcplib.WithDescription("Launch an application on the iOS device by its bundle ID."),
		mcplib.WithString("bundle_id",
			mcplib.Required(),
			mcplib.Description("The bundle identifier of the app to launch (e.g., 'com.example.myapp')."),
		),
		mcplib.WithString("device_id",
			mcplib.Description("Device UDID or name. If not provided, uses the first connected device."),
		),
	), s.handleLaunchApp)

	s.mcp.AddTool(mcplib.NewTool("kill_app",
		mcplib.WithDescription("Force quit an application on the iOS device."),
		mcplib.WithString("bundle_id",
			mcplib.Required(),
			mcplib.Description("The bundle identifier of the app to kill."),
		),
		mcplib.WithString("device_id",
			mcplib.Description("Device UDID or name. If not provided, uses the first connected device."),
		),
	), s.handleKillApp)
}
