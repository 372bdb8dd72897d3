package idevice

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/apex/log"
)

const (
	// MinLogDuration and MaxLogDuration bound one syslog capture.
	MinLogDuration = 1 * time.Second
	MaxLogDuration = 30 * time.Second

	// MaxLogLines caps the returned buffer at the most recent lines.
	MaxLogLines = 100

	// termGrace is how long a syslog child gets to exit after SIGTERM
	// before it is killed.
	termGrace = 2 * time.Second
)

// ClampDuration clamps a requested capture duration to [MinLogDuration,
// MaxLogDuration].
func ClampDuration(d time.Duration) time.Duration {
	if d < MinLogDuration {
		return MinLogDuration
	}
	if d > MaxLogDuration {
		return MaxLogDuration
	}
	return d
}

// SyslogOptions configures one bounded capture of the live device syslog.
type SyslogOptions struct {
	UDID string
	// Duration is clamped to [MinLogDuration, MaxLogDuration] before the
	// child is spawned.
	Duration time.Duration
	// Filter keeps a line iff it is empty or a case-insensitive substring
	// of the line.
	Filter string
}

// SyslogCapturer runs one bounded live-syslog capture.
type SyslogCapturer interface {
	Capture(ctx context.Context, opts SyslogOptions) (lines []string, total int, err error)
}

// SyslogCapture streams `pymobiledevice3 syslog live` for a bounded
// duration. The child process is owned by the capture call and is always
// terminated before Capture returns, on every exit path.
type SyslogCapture struct {
	tool []string
}

func NewSyslogCapture(tool []string) *SyslogCapture {
	if len(tool) == 0 {
		tool = DefaultTool
	}
	return &SyslogCapture{tool: tool}
}

// Capture collects syslog lines until the clamped duration elapses or the
// child exits on its own. It returns the retained lines in capture order
// (capped at the most recent MaxLogLines) and the total number of lines that
// passed the filter.
func (c *SyslogCapture) Capture(ctx context.Context, opts SyslogOptions) ([]string, int, error) {
	duration := ClampDuration(opts.Duration)
	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	argv := append(append([]string{}, c.tool...), "syslog", "live", "--udid", opts.UDID, "--no-color")
	cmd := exec.Command(argv[0], argv[1:]...)
	// stderr is discarded: the child's diagnostics are not log lines, and
	// an unread pipe could block a chatty child.
	cmd.Stderr = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, 0, err
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, 0, errors.New(installHint)
		}
		return nil, 0, err
	}
	defer c.terminate(cmd)

	log.WithFields(log.Fields{
		"udid":     opts.UDID,
		"duration": duration.String(),
	}).Debug("capturing device syslog")

	lineCh := make(chan string)
	done := make(chan struct{})
	go readLines(ctx, stdout, lineCh, done)

	filter := strings.ToLower(opts.Filter)
	var lines []string
	total := 0

	for {
		select {
		case line := <-lineCh:
			if filter != "" && !strings.Contains(strings.ToLower(line), filter) {
				continue
			}
			total++
			lines = append(lines, line)
			if len(lines) > MaxLogLines {
				lines = lines[1:]
			}
		case <-done:
			// Child closed its stdout (exited on its own).
			return lines, total, nil
		case <-ctx.Done():
			return lines, total, nil
		}
	}
}

// readLines feeds the child's stdout to lineCh a line at a time and closes
// done at EOF. Sends are abandoned once ctx is cancelled so the goroutine
// never outlives the capture.
func readLines(ctx context.Context, r io.Reader, lineCh chan<- string, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case lineCh <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

// terminate asks the child to exit and kills it if it has not within
// termGrace. Runs unconditionally via defer, so a spawned child never
// outlives its capture call.
func (c *SyslogCapture) terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()

	select {
	case <-waited:
	case <-time.After(termGrace):
		log.WithField("pid", cmd.Process.Pid).Debug("syslog child ignored SIGTERM, killing")
		_ = cmd.Process.Kill()
		<-waited
	}
}
