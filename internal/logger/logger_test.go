package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFieldsAreEncoded(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, zerolog.InfoLevel)
	log.Info("fetched",
		String("symbol", "ACME"),
		Int("rows", 3),
		Int64("volume", 50000),
		Bool("resumed", true),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("boom")),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if got["message"] != "fetched" || got["level"] != "info" {
		t.Errorf("unexpected envelope: %v", got)
	}
	if got["symbol"] != "ACME" || got["rows"] != float64(3) || got["took"] != float64(1500) {
		t.Errorf("unexpected fields: %v", got)
	}
	if got["error"] != "boom" {
		t.Errorf("error field: %v", got["error"])
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, zerolog.WarnLevel)
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	if strings.Count(buf.String(), "\n") != 1 || !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected only the warn line, got %q", buf.String())
	}
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, zerolog.InfoLevel).With(String("stage", "scan"))
	log.Info("done")
	if !strings.Contains(buf.String(), `"stage":"scan"`) {
		t.Errorf("missing context field: %q", buf.String())
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	log, err := New(&Config{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hello")
}
