package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Level = %s, want info", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Pretty = true, want JSON output by default")
	}
	if cfg.Output == nil {
		t.Error("Output = nil, want stderr")
	}
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		pretty     string
		wantLevel  LogLevel
		wantPretty bool
	}{
		{"unset", "", "", LevelInfo, false},
		{"debug pretty", "debug", "true", LevelDebug, true},
		{"invalid pretty ignored", "warn", "maybe", LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("LOG_PRETTY", tt.pretty)

			cfg := ConfigFromEnv()
			if cfg.Level != tt.wantLevel {
				t.Errorf("Level = %s, want %s", cfg.Level, tt.wantLevel)
			}
			if cfg.Pretty != tt.wantPretty {
				t.Errorf("Pretty = %v, want %v", cfg.Pretty, tt.wantPretty)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input LogLevel
		want  zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
		{"trace", zerolog.InfoLevel},
		{"panic", zerolog.InfoLevel},
		{"invalid", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSetup_Filtering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelWarn, Output: buf})
	t.Cleanup(func() { Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}}) })

	logger := NewLogger("paginator")
	logger.Debug().Msg("page cached")
	logger.Info().Msg("initial load complete")
	logger.Warn().Msg("revalidation failed")
	logger.Error().Msg("bad config")

	out := buf.String()
	for _, dropped := range []string{"page cached", "initial load complete"} {
		if strings.Contains(out, dropped) {
			t.Errorf("output contains %q below warn level", dropped)
		}
	}
	for _, kept := range []string{"revalidation failed", "bad config"} {
		if !strings.Contains(out, kept) {
			t.Errorf("output missing %q", kept)
		}
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})
	t.Cleanup(func() { Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}}) })

	logger.Info().Msg("listening")

	out := buf.String()
	if !strings.Contains(out, "listening") {
		t.Fatalf("output = %q, want message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("pretty output looks like JSON: %q", out)
	}
}

func TestWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	base := zerolog.New(buf)

	logger := WithComponent(base, "revalidator")
	logger.Info().Str("signature", "listing:op").Msg("session started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry[ComponentField] != "revalidator" {
		t.Errorf("component = %v, want revalidator", entry[ComponentField])
	}
	if entry["signature"] != "listing:op" {
		t.Errorf("signature = %v, want listing:op", entry["signature"])
	}
}

func TestNewLogger_UsesGlobalLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})
	t.Cleanup(func() { Setup(Config{Level: LevelInfo, Output: &bytes.Buffer{}}) })

	logger := NewLogger("catalog-client")
	logger.Info().Msg("ready")

	out := buf.String()
	if !strings.Contains(out, `"component":"catalog-client"`) {
		t.Errorf("output = %q, want component field", out)
	}
	if !strings.Contains(out, `"time"`) {
		t.Errorf("output = %q, want timestamp from Setup", out)
	}
}
