package idevice

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptCapture builds a SyslogCapture whose "tool" is a shell script. The
// capture appends its usual syslog args, which land in the script's ignored
// positional parameters.
func scriptCapture(script string) *SyslogCapture {
	return NewSyslogCapture([]string{"sh", "-c", script, "syslog"})
}

func TestClampDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, MinLogDuration},
		{-5 * time.Second, MinLogDuration},
		{1 * time.Second, 1 * time.Second},
		{15 * time.Second, 15 * time.Second},
		{30 * time.Second, 30 * time.Second},
		{31 * time.Second, MaxLogDuration},
		{5 * time.Minute, MaxLogDuration},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampDuration(tt.in), "clamp(%s)", tt.in)
	}
}

func TestCaptureFilterIsCaseInsensitive(t *testing.T) {
	script := `
echo "Alpha ERROR one"
echo "alpha error two"
echo "beta noise"
echo "more noise"
exec sleep 30`
	c := scriptCapture(script)

	lines, total, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 1 * time.Second,
		Filter:   "ERROR",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"Alpha ERROR one", "alpha error two"}, lines)
}

func TestCaptureNoFilterKeepsEverything(t *testing.T) {
	script := `
echo "one"
echo "two"
echo "three"
exec sleep 30`
	c := scriptCapture(script)

	lines, total, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 1 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestCaptureReturnsWhenChildExits(t *testing.T) {
	c := scriptCapture(`echo "only line"`)

	start := time.Now()
	lines, total, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 10 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"only line"}, lines)
	assert.Less(t, time.Since(start), 5*time.Second, "capture should end with the child, not the deadline")
}

func TestCaptureRespectsDeadline(t *testing.T) {
	// A child that floods forever: the deadline is the only way out.
	c := scriptCapture(`while true; do echo "tick"; done`)

	start := time.Now()
	lines, total, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 1 * time.Second,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Greater(t, total, MaxLogLines)
	assert.Len(t, lines, MaxLogLines)
	// Deadline plus termination grace plus scheduling slack.
	assert.Less(t, elapsed, 1*time.Second+termGrace+2*time.Second)
}

func TestCaptureCapsBufferAtMostRecentLines(t *testing.T) {
	script := `
i=1
while [ $i -le 150 ]; do
  echo "line $i"
  i=$((i+1))
done`
	c := scriptCapture(script)

	lines, total, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 150, total)
	require.Len(t, lines, MaxLogLines)
	assert.Equal(t, "line 51", lines[0])
	assert.Equal(t, "line 150", lines[MaxLogLines-1])
}

func TestCaptureClampsDuration(t *testing.T) {
	c := scriptCapture(`exec sleep 60`)

	start := time.Now()
	lines, total, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 50 * time.Millisecond, // below the minimum
	})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, lines)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, MinLogDuration)
	assert.Less(t, elapsed, MinLogDuration+termGrace+2*time.Second)
}

func TestCaptureSpawnFailure(t *testing.T) {
	c := NewSyslogCapture([]string{"idevice-mcp-no-such-binary"})

	_, _, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "test",
		Duration: 1 * time.Second,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pymobiledevice3 not found")
}

func TestCapturePassesSyslogArgs(t *testing.T) {
	// The script echoes its positional parameters back, so the captured
	// "log lines" are the argument vector the child was spawned with.
	c := scriptCapture(`for a in "$@"; do echo "$a"; done`)

	lines, _, err := c.Capture(context.Background(), SyslogOptions{
		UDID:     "UDID-42",
		Duration: 1 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"syslog", "live", "--udid", "UDID-42", "--no-color"}, lines)
}

func TestCaptureBufferNeverExceedsCapMidStream(t *testing.T) {
	// Flood then verify the invariant at the boundary: returned length is
	// min(total, MaxLogLines) for a range of emit counts.
	for _, n := range []int{1, 99, 100, 101} {
		script := fmt.Sprintf(`
i=1
while [ $i -le %d ]; do
  echo "l$i"
  i=$((i+1))
done`, n)
		lines, total, err := scriptCapture(script).Capture(context.Background(), SyslogOptions{
			UDID:     "test",
			Duration: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Equal(t, n, total)
		want := n
		if want > MaxLogLines {
			want = MaxLogLines
		}
		assert.Len(t, lines, want)
	}
}
