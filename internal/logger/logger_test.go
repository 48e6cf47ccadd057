package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	tests := []struct {
		name         string
		json         bool
		debug        bool
		wantEncoding string
		wantLevel    zapcore.Level
	}{
		{name: "console info", wantEncoding: "console", wantLevel: zapcore.InfoLevel},
		{name: "json debug", json: true, debug: true, wantEncoding: "json", wantLevel: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config(tt.json, tt.debug)
			if cfg.Encoding != tt.wantEncoding {
				t.Fatalf("encoding = %q, want %q", cfg.Encoding, tt.wantEncoding)
			}
			if cfg.Level.Level() != tt.wantLevel {
				t.Fatalf("level = %v, want %v", cfg.Level.Level(), tt.wantLevel)
			}
			if cfg.DisableStacktrace == tt.debug {
				t.Fatalf("stack traces should only be kept in debug mode")
			}
			if len(cfg.OutputPaths) != 1 || cfg.OutputPaths[0] != "stderr" {
				t.Fatalf("logs must go to stderr, got %v", cfg.OutputPaths)
			}
			if cfg.EncoderConfig.MessageKey != "step" || cfg.EncoderConfig.NameKey != "command" {
				t.Fatalf("unexpected encoder keys: %+v", cfg.EncoderConfig)
			}
		})
	}
}

func TestNewNamesCommandLogger(t *testing.T) {
	tests := []struct {
		command string
		want    string
	}{
		{command: "generate", want: "generate"},
		{command: "  ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			l, err := New(false, true, tt.command)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l.Name() != tt.want {
				t.Fatalf("Name() = %q, want %q", l.Name(), tt.want)
			}
			if !l.Core().Enabled(zapcore.DebugLevel) {
				t.Fatal("debug must be enabled")
			}
		})
	}
}
