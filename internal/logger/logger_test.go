package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func newBufferLogger(t *testing.T, level string) (*logrus.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := New(Config{Level: level, Console: &buf})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return log, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew_ConsoleJSON(t *testing.T) {
	log, buf := newBufferLogger(t, "info")

	WithOutput(log, "/photos/a.jpg", "/out/trip-1.jpg").Info("Resized file")

	entry := decodeLine(t, buf)
	if entry["message"] != "Resized file" {
		t.Errorf("Expected message field, got %v", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("Expected level info, got %v", entry["level"])
	}
	if entry[FieldSource] != "/photos/a.jpg" || entry[FieldOutput] != "/out/trip-1.jpg" {
		t.Errorf("Expected source and output fields, got %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("Expected timestamp field")
	}
}

func TestNew_Level(t *testing.T) {
	log, buf := newBufferLogger(t, "warn")
	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("Expected warn level, got %v", log.GetLevel())
	}

	WithSource(log, "a.jpg").Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected info to be filtered, got %q", buf.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestNew_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "logs", "resizer.log")

	log, err := New(Config{Level: "debug", FilePath: path, Rotation: Rotation{MaxSizeMB: 1}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	log.Debug("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file to exist: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected message in log file, got %q", string(data))
	}
}

func TestNew_FileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resizer.log")
	var buf bytes.Buffer

	log, err := New(Config{Level: "info", FilePath: path, Console: &buf})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	log.Info("both")

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "both") || !strings.Contains(buf.String(), "both") {
		t.Errorf("Expected line in file and console, got file=%q console=%q", data, buf.String())
	}
}

func TestEntryHelpers(t *testing.T) {
	tests := []struct {
		name     string
		log      func(*logrus.Logger)
		expected map[string]interface{}
	}{
		{
			name:     "sequence",
			log:      func(l *logrus.Logger) { WithSequence(l, "b.jpg", 3).Info("x") },
			expected: map[string]interface{}{FieldSource: "b.jpg", FieldSequence: float64(3)},
		},
		{
			name:     "operation",
			log:      func(l *logrus.Logger) { WithOperation(l, "batch").Info("x") },
			expected: map[string]interface{}{FieldOperation: "batch"},
		},
		{
			name:     "failure",
			log:      func(l *logrus.Logger) { WithFailure(l, "c.jpg", "decode").Info("x") },
			expected: map[string]interface{}{FieldSource: "c.jpg", FieldOperation: "decode"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger(t, "info")
			tt.log(log)
			entry := decodeLine(t, buf)
			for k, v := range tt.expected {
				if entry[k] != v {
					t.Errorf("Expected %s=%v, got %v", k, v, entry[k])
				}
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error("nothing")
	if log.Out == nil {
		t.Error("Expected non-nil output")
	}
}
