package logging_test

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/omochice/threadchat/internal/logging"
)

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.Setup("warn", false, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	log.Info().Msg("hidden")
	log.Warn().Str("thread", "t1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"thread":"t1"`) || !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestSetup_InvalidLevel(t *testing.T) {
	if _, err := logging.Setup("loud", false, io.Discard); err == nil {
		t.Error("Setup() expected error for unknown level")
	}
}

func TestSetup_Pretty(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.Setup("", true, &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	log.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("pretty output is JSON: %s", buf.String())
	}
}

func TestOpenFile(t *testing.T) {
	w, closeFn, err := logging.OpenFile("")
	if err != nil || w != io.Discard {
		t.Fatalf("OpenFile(\"\") = %v, %v", w, err)
	}
	_ = closeFn()

	path := filepath.Join(t.TempDir(), "client.log")
	w, closeFn, err = logging.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	_, _ = io.WriteString(w, "line\n")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "line\n" {
		t.Errorf("file = %q", data)
	}
}
