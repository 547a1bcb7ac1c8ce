package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantErr   bool
	}{
		{"", false, false},
		{"info", false, false},
		{"debug", true, false},
		{"loud", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, closeFn, err := New(Options{Level: tt.level, Writer: &buf})
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer closeFn()

			logger.Debug().Msg("detail")
			if got := strings.Contains(buf.String(), "detail"); got != tt.wantDebug {
				t.Errorf("debug line written = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "player.log")

	logger, closeFn, err := New(Options{File: path, Console: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info().Str("song", "intro").Msg("playing")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"song":"intro"`) {
		t.Errorf("file should hold JSON lines, got %q", data)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Console: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Warn().Msg("careful")
	if strings.Contains(buf.String(), `"message"`) || !strings.Contains(buf.String(), "careful") {
		t.Errorf("console output = %q", buf.String())
	}
}
