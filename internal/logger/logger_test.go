package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNew_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, false)

	l.Debug("hidden")
	l.Info("pages extracted", "pages", 3)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log line is not a single JSON object: %q", buf.String())
	}
	if entry["msg"] != "pages extracted" || entry["pages"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestHelpersWithoutInit(t *testing.T) {
	saved := Logger
	Logger = nil
	defer func() { Logger = saved }()

	// must not panic before InitLogger
	Info("x")
	Warn("x")
	Error("x")
	Debug("x")
}
