package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) Entry {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) == 0 || lines[0] == "" {
		t.Fatal("Expected log output, got none")
	}

	var entry Entry
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("Expected JSON log entry, got error: %v", err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   Level
		logFn   func(l *Logger)
		want    string
		written bool
	}{
		{"debug at debug", DEBUG, func(l *Logger) { l.Debug("m") }, "DEBUG", true},
		{"debug at info", INFO, func(l *Logger) { l.Debug("m") }, "", false},
		{"info at info", INFO, func(l *Logger) { l.Info("m") }, "INFO", true},
		{"warn at error", ERROR, func(l *Logger) { l.Warn("m") }, "", false},
		{"error at warn", WARN, func(l *Logger) { l.Error("m") }, "ERROR", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(tt.level, &buf)
			tt.logFn(l)

			if !tt.written {
				if buf.Len() != 0 {
					t.Errorf("Expected no output, got %s", buf.String())
				}
				return
			}
			if entry := decodeLast(t, &buf); entry.Level != tt.want {
				t.Errorf("Expected level %s, got %s", tt.want, entry.Level)
			}
		})
	}
}

func TestLogger_FieldsAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG, &buf).With(map[string]interface{}{"request_id": "r1"})

	l.Info("enrollment derived", map[string]interface{}{"enrollment_id": "enr1"}, map[string]interface{}{"sections": 2})

	entry := decodeLast(t, &buf)
	if entry.Message != "enrollment derived" {
		t.Errorf("Unexpected message %s", entry.Message)
	}
	if entry.Fields["request_id"] != "r1" {
		t.Errorf("Expected inherited request_id, got %v", entry.Fields["request_id"])
	}
	if entry.Fields["enrollment_id"] != "enr1" {
		t.Errorf("Expected enrollment_id field, got %v", entry.Fields["enrollment_id"])
	}
	if entry.Fields["sections"] != float64(2) {
		t.Errorf("Expected merged sections field, got %v", entry.Fields["sections"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	l := New(DEBUG, &buf)

	l.Info("checkout", map[string]interface{}{
		"stripe_secret":  "sk_test_1234567890",
		"jwt_token":      "short",
		"Authorization":  42,
		"enrollment_id":  "enr1",
		"webhook_secret": "",
	})

	entry := decodeLast(t, &buf)
	if entry.Fields["stripe_secret"] != "sk_...890" {
		t.Errorf("Expected partially masked secret, got %v", entry.Fields["stripe_secret"])
	}
	if entry.Fields["jwt_token"] != "[REDACTED]" {
		t.Errorf("Expected redacted token, got %v", entry.Fields["jwt_token"])
	}
	if entry.Fields["Authorization"] != "[REDACTED]" {
		t.Errorf("Expected redacted authorization, got %v", entry.Fields["Authorization"])
	}
	if entry.Fields["webhook_secret"] != "[REDACTED]" {
		t.Errorf("Expected redacted empty secret, got %v", entry.Fields["webhook_secret"])
	}
	if entry.Fields["enrollment_id"] != "enr1" {
		t.Errorf("Expected non-sensitive field untouched, got %v", entry.Fields["enrollment_id"])
	}
}

func TestLogger_NoFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	New(INFO, &buf).Info("plain")

	if strings.Contains(buf.String(), `"fields"`) {
		t.Errorf("Expected fields to be omitted, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		"Error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for input, want := range tests {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(DEBUG)
	defer func() {
		SetOutput(os.Stderr)
		SetLevel(WARN)
	}()

	Debug("package debug", map[string]interface{}{"k": "v"})

	entry := decodeLast(t, &buf)
	if entry.Level != "DEBUG" || entry.Message != "package debug" {
		t.Errorf("Unexpected entry %+v", entry)
	}
}
