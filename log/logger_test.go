package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestSetLevelFiltersBackend(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(os.Stdout)

	logger := New("logtest")

	SetLevel(Warning)
	logger.Info("suppressed entry")
	logger.Error("emitted entry")

	out := buf.String()
	if strings.Contains(out, "suppressed entry") {
		t.Fatal("expected info output to be filtered at the warning level")
	}
	if !strings.Contains(out, "emitted entry") {
		t.Fatal("expected error output to pass the warning level")
	}

	SetLevel(Debug)
	logger.Info("verbose entry")
	if !strings.Contains(buf.String(), "verbose entry") {
		t.Fatal("expected info output to pass the debug level")
	}
}
