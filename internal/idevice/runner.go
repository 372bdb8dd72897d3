package idevice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/apex/log"
)

// DefaultTool is the invocation vector for the pymobiledevice3 CLI.
var DefaultTool = []string{"python3", "-m", "pymobiledevice3"}

const installHint = "pymobiledevice3 not found. Install with: pip install pymobiledevice3"

// CommandRunner executes one pymobiledevice3 invocation and returns its
// stdout. Every failure mode is encoded in the returned error: a non-zero
// exit carries the tool's stderr (or stdout if stderr is empty), a timeout
// says how long it waited, and a missing binary yields an install hint.
type CommandRunner interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) (string, error)
}

// ToolRunner runs the pymobiledevice3 CLI as a subprocess.
type ToolRunner struct {
	tool []string
}

func NewToolRunner(tool []string) *ToolRunner {
	if len(tool) == 0 {
		tool = DefaultTool
	}
	return &ToolRunner{tool: tool}
}

func (r *ToolRunner) Run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := append(append([]string{}, r.tool...), args...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.WithField("args", strings.Join(args, " ")).Debug("running pymobiledevice3")

	err := cmd.Run()
	if err == nil {
		return stdout.String(), nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("command timed out after %d seconds", int(timeout.Seconds()))
	}
	if errors.Is(err, exec.ErrNotFound) {
		return "", errors.New(installHint)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out := strings.TrimSpace(stderr.String())
		if out == "" {
			out = strings.TrimSpace(stdout.String())
		}
		if out == "" {
			out = err.Error()
		}
		return "", errors.New(out)
	}
	return "", err
}
