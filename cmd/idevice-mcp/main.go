package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/spf13/cobra"

	"github.com/idevicekit/idevice-mcp/internal/config"
	"github.com/idevicekit/idevice-mcp/internal/idevice"
	"github.com/idevicekit/idevice-mcp/internal/mcp"
)

var (
	// Version is set at build time
	Version = "dev"

	httpMode   bool
	httpHost   string
	httpPort   int
	authToken  string
	configPath string
	toolVector string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "idevice-mcp",
	Short: "MCP server for managing iOS devices over USB",
	Long: `idevice-mcp exposes iOS device management (screenshots, logs, device
info, app management) as MCP tools. Device communication is delegated to the
pymobiledevice3 CLI; make sure it is installed and the device is trusted.

Transports:
  stdio (default)               # For local Claude Desktop/Code integration
  --http                        # HTTP+SSE with bearer-token auth, for
                                # remote access (e.g. through an ngrok tunnel)

Examples:
  idevice-mcp                   # stdio transport
  idevice-mcp --http            # HTTP on :8080, token printed to stderr
  idevice-mcp --http -p 9000 --token s3cret`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVar(&httpMode, "http", false, "Run in HTTP mode instead of stdio (for remote access)")
	rootCmd.Flags().StringVar(&httpHost, "host", "", "Host to bind the HTTP server to")
	rootCmd.Flags().IntVarP(&httpPort, "port", "p", 0, "Port for the HTTP server (default: 8080)")
	rootCmd.Flags().StringVar(&authToken, "token", "", "Auth token for HTTP mode (auto-generated if not provided)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to TOML config file")
	rootCmd.Flags().StringVar(&toolVector, "pymobiledevice3", "", "pymobiledevice3 invocation command (space-separated)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")

	rootCmd.Version = Version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err.Error())
	}
}

func run(cmd *cobra.Command, args []string) error {
	// All logging goes to stderr; stdout belongs to the stdio transport.
	log.SetHandler(cli.New(os.Stderr))
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlags(cmd, cfg)
	if cfg.Verbose {
		log.SetLevel(log.DebugLevel)
	}

	runner := idevice.NewToolRunner(cfg.Tool)
	syslog := idevice.NewSyslogCapture(cfg.Tool)
	srv := mcp.NewServer(Version, runner, syslog,
		mcp.WithDefaultLogDuration(time.Duration(cfg.LogDurationSeconds)*time.Second),
	)

	if !httpMode {
		return srv.ServeStdio()
	}
	return runHTTP(srv, cfg)
}

// applyFlags overlays CLI flags onto the file config; flags win when set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Host = httpHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = httpPort
	}
	if cmd.Flags().Changed("token") {
		cfg.Token = authToken
	}
	if cmd.Flags().Changed("pymobiledevice3") {
		cfg.Tool = strings.Fields(toolVector)
	}
	if verbose {
		cfg.Verbose = true
	}
}

func runHTTP(srv *mcp.Server, cfg *config.Config) error {
	token := cfg.Token
	if token == "" {
		var err error
		token, err = mcp.GenerateToken()
		if err != nil {
			return fmt.Errorf("failed to generate auth token: %w", err)
		}
	}

	httpSrv := mcp.NewHTTPServer(srv, cfg.Host, cfg.Port, token)
	printBanner(cfg, token)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	}
}

// printBanner tells the operator where the server is and which token to use.
// Printed once, to stderr.
func printBanner(cfg *config.Config, token string) {
	divider := strings.Repeat("=", 60)
	fmt.Fprintln(os.Stderr, divider)
	fmt.Fprintln(os.Stderr, "idevice-mcp (HTTP Mode)")
	fmt.Fprintln(os.Stderr, divider)
	fmt.Fprintf(os.Stderr, "\nServer running on http://%s:%d\n", cfg.Host, cfg.Port)
	fmt.Fprintf(os.Stderr, "\nAuth Token: %s\n", token)
	fmt.Fprintf(os.Stderr, `
To expose via ngrok, run in another terminal:
  ngrok http %d

Then configure your MCP client with the public URL:

{
  "mcpServers": {
    "idevice": {
      "type": "sse",
      "url": "https://YOUR-NGROK-URL/sse",
      "headers": {
        "Authorization": "Bearer %s"
      }
    }
  }
}
`, cfg.Port, token)
	fmt.Fprintln(os.Stderr, divider)
}
