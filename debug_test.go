package roster

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDebugLogger_NilIsSilent verifies that every log method is safe on
// a nil logger, so callers never guard their calls.
func TestDebugLogger_NilIsSilent(t *testing.T) {
	var l *DebugLogger
	l.Log("hello %s", "world")
	l.LogRequest("GET", "http://atlas/api/v1/health", nil)
	l.LogResponse(200, "200 OK", []byte("{}"))
	l.LogError("push", os.ErrClosed)
	l.LogSync("pull", "applied=%d", 3)
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil logger: %v", err)
	}
}

// TestDebugLogger_WritesToFile verifies line format and the sync helper.
func TestDebugLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewDebugLogger(true, path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}

	l.LogSync("push", "pushed=%d applied=%d", 2, 2)
	l.LogError("pull", os.ErrDeadlineExceeded)
	if err := l.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "[ROSTER DEBUG] SYNC [push]: pushed=2 applied=2") {
		t.Errorf("missing formatted sync line:\n%s", out)
	}
	if !strings.Contains(out, "ERROR [pull]:") {
		t.Errorf("missing error line:\n%s", out)
	}
}

// TestDebugLogger_Disabled verifies a disabled logger writes nothing.
func TestDebugLogger_Disabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	l, err := NewDebugLogger(false, path)
	if err != nil {
		t.Fatalf("NewDebugLogger failed: %v", err)
	}
	l.Log("should not appear")
	l.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("disabled logger should not create the log file")
	}
}

// TestElide verifies large bodies are truncated with a byte count.
func TestElide(t *testing.T) {
	small := []byte(`{"ok":true}`)
	if elide(small) != string(small) {
		t.Errorf("small body should pass through unchanged")
	}

	big := make([]byte, maxLoggedBody+100)
	for i := range big {
		big[i] = 'x'
	}
	out := elide(big)
	if len(out) >= len(big) {
		t.Errorf("large body was not truncated: %d bytes", len(out))
	}
	if !strings.Contains(out, "bytes total]") {
		t.Errorf("truncated body should report its full size: %q", out[len(out)-40:])
	}
}
