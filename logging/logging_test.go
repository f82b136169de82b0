package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerGating(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewLogger(&stdout, &stderr)

	logger.Info("hidden %d", 1)
	logger.Debug("hidden %d", 2)
	logger.Trace("chain", "hidden %d", 3)
	logger.Profile("hidden %d", 4)
	if stdout.Len() != 0 || stderr.Len() != 0 {
		t.Fatalf("expected gated levels to stay silent, got stdout=%q stderr=%q", stdout.String(), stderr.String())
	}

	logger.Warn("careful %s", "now")
	if !strings.Contains(stderr.String(), "careful now") {
		t.Fatalf("expected warning on stderr, got %q", stderr.String())
	}

	logger.EnableInfo()
	logger.Info("visible %d", 1)
	if !strings.Contains(stdout.String(), "visible 1") {
		t.Fatalf("expected info on stdout, got %q", stdout.String())
	}
}

func TestLoggerTraceSubsystems(t *testing.T) {
	var stderr bytes.Buffer
	logger := NewLogger(&bytes.Buffer{}, &stderr)

	logger.EnableTrace("index, diffile")
	logger.Trace("chain", "not traced")
	logger.Trace("diffile", "traced %s", "record")
	out := stderr.String()
	if strings.Contains(out, "not traced") {
		t.Errorf("unexpected trace for disabled subsystem: %q", out)
	}
	if !strings.Contains(out, "diffile: traced record") {
		t.Errorf("expected trace for enabled subsystem, got %q", out)
	}

	stderr.Reset()
	logger.EnableTrace("all")
	logger.Trace("chain", "everything")
	if !strings.Contains(stderr.String(), "chain: everything") {
		t.Errorf("expected 'all' to enable every subsystem, got %q", stderr.String())
	}
}
