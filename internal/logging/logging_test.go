package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
)

func TestNewLogger(t *testing.T) {
	t.Run("with custom output", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(Config{Level: InfoLevel, Output: buf})
		if logger.writer != buf {
			t.Error("Logger should use provided output writer")
		}
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := NewLogger(Config{Level: "verbose", Output: buf})
		logger.Debug("hidden", nil)
		logger.Info("shown", nil)
		if strings.Contains(buf.String(), "hidden") {
			t.Errorf("debug entry should be filtered, got: %s", buf.String())
		}
		if !strings.Contains(buf.String(), "shown") {
			t.Errorf("info entry should be written, got: %s", buf.String())
		}
	})
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		configLvl LogLevel
		logLvl    LogLevel
		shouldLog bool
	}{
		{"debug logs debug", DebugLevel, DebugLevel, true},
		{"info skips debug", InfoLevel, DebugLevel, false},
		{"info logs warn", InfoLevel, WarnLevel, true},
		{"warn skips info", WarnLevel, InfoLevel, false},
		{"warn logs error", WarnLevel, ErrorLevel, true},
		{"error skips warn", ErrorLevel, WarnLevel, false},
		{"error logs error", ErrorLevel, ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewLogger(Config{Level: tt.configLvl, Output: buf})

			logger.log(tt.logLvl, "test message", nil)

			hasOutput := buf.Len() > 0
			if hasOutput != tt.shouldLog {
				t.Errorf("shouldLog = %v, but hasOutput = %v", tt.shouldLog, hasOutput)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		" warn ":  WarnLevel,
		"error":   ErrorLevel,
		"":        InfoLevel,
		"loud":    InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestJSONFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{
		Level:  InfoLevel,
		Format: JSONFormat,
		Output: buf,
	})

	logger.Info("part rendered", map[string]interface{}{
		"bytes": 42,
		"part":  "Lid",
	})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Output is not valid JSON: %v\nOutput: %s", err, buf.String())
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want 'info'", entry["level"])
	}
	if entry["message"] != "part rendered" {
		t.Errorf("message = %v, want 'part rendered'", entry["message"])
	}
	fields, ok := entry["fields"].(map[string]interface{})
	if !ok {
		t.Fatal("fields should be a map")
	}
	if fields["bytes"] != float64(42) {
		t.Errorf("fields.bytes = %v, want 42", fields["bytes"])
	}
}

func TestHumanFormatSortsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: InfoLevel, Format: HumanFormat, Output: buf})

	logger.Warn("no export markers", map[string]interface{}{
		"script": "box.scad",
		"parts":  1,
	})

	output := buf.String()
	if !strings.Contains(output, "[warn]") {
		t.Errorf("Output should contain '[warn]', got: %s", output)
	}
	if !strings.Contains(output, "parts=1, script=box.scad") {
		t.Errorf("Output should list fields in key order, got: %s", output)
	}
}

func TestWithAddsFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: InfoLevel, Format: HumanFormat, Output: buf})

	child := logger.With(map[string]interface{}{"part": "Base"})
	child.Info("collected", map[string]interface{}{"files": 3})

	output := buf.String()
	if !strings.Contains(output, "part=Base") || !strings.Contains(output, "files=3") {
		t.Errorf("child logger should merge fields, got: %s", output)
	}

	buf.Reset()
	logger.Info("parent", nil)
	if strings.Contains(buf.String(), "part=Base") {
		t.Errorf("parent logger should not inherit child fields, got: %s", buf.String())
	}
}

func TestConcurrentWrites(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: InfoLevel, Format: JSONFormat, Output: buf})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			logger.With(map[string]interface{}{"worker": n}).Info("tick", nil)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("interleaved output: %v (%s)", err, line)
		}
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
}

func TestNopLogger(t *testing.T) {
	NewNopLogger().Error("dropped", map[string]interface{}{"k": "v"})
}

func TestEnabled(t *testing.T) {
	logger := NewLogger(Config{Level: WarnLevel, Output: &bytes.Buffer{}})
	if logger.Enabled(InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(ErrorLevel) {
		t.Error("error should be enabled at warn level")
	}

	var nilLogger *Logger
	if nilLogger.Enabled(ErrorLevel) {
		t.Error("a nil logger writes nothing")
	}
}

func TestHumanColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	buf := &bytes.Buffer{}
	NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: buf, Color: true}).Warn("careful", nil)
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Expected an ANSI colour sequence, got %q", buf.String())
	}

	buf.Reset()
	NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: buf}).Warn("careful", nil)
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("Expected plain output without Color, got %q", buf.String())
	}
}
