package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("Expected default level to be info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected default pretty to be false")
	}
	if cfg.Output == nil {
		t.Error("Expected default output")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name  string
		level string
		emit  func(zerolog.Logger, string)
	}{
		{
			name:  "info_level",
			level: "info",
			emit:  func(l zerolog.Logger, msg string) { l.Info().Msg(msg) },
		},
		{
			name:  "debug_level",
			level: "debug",
			emit:  func(l zerolog.Logger, msg string) { l.Debug().Msg(msg) },
		},
		{
			name:  "warn_level",
			level: "warn",
			emit:  func(l zerolog.Logger, msg string) { l.Warn().Msg(msg) },
		},
		{
			name:  "error_level",
			level: "error",
			emit:  func(l zerolog.Logger, msg string) { l.Error().Msg(msg) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger, "test "+tt.level+" message")

			if !strings.Contains(buf.String(), "test "+tt.level+" message") {
				t.Errorf("Expected output to contain message, got %q", buf.String())
			}
		})
	}
}

func TestSetup_UnknownLevelFallsBack(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "chatty", Output: buf})

	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("global level = %v, want info", zerolog.GlobalLevel())
	}
	if !strings.Contains(buf.String(), `unknown log level \"chatty\"`) {
		t.Errorf("expected fallback warning, got %q", buf.String())
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: "info", Pretty: true, Output: buf})

	logger.Info().Str("page", "2").Msg("pretty message")

	output := buf.String()
	if strings.HasPrefix(output, "{") {
		t.Errorf("expected console output, got JSON %q", output)
	}
	if !strings.Contains(output, "pretty message") {
		t.Errorf("expected message in output, got %q", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input     string
		expected  zerolog.Level
		expectErr bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"info", zerolog.InfoLevel, false},
		{"warn", zerolog.WarnLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"ERROR", zerolog.ErrorLevel, false},
		{"trace", zerolog.TraceLevel, false},
		{"", zerolog.InfoLevel, false},
		{"invalid", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
			if (err != nil) != tt.expectErr {
				t.Errorf("ParseLevel(%q) error = %v, expectErr %v", tt.input, err, tt.expectErr)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "info", Output: buf})

	logger := NewLogger(ComponentPager)
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"pager"`) {
		t.Errorf("Expected output to contain component, got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "warn", Output: buf})

	logger := NewLogger("test")

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at warn level")
	}
}
