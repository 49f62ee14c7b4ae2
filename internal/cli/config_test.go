package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/config"
)

func TestSetGetConfigValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"server.port", "9000", "9000"},
		{"server.api_key", "abc", "abc"},
		{"server.print_api_key", "false", "false"},
		{"server.max_concurrent", "4", "4"},
		{"storage.root", "/srv/drops", "/srv/drops"},
		{"storage.ttl", "30m", "30m0s"},
		{"storage.journal", "true", "true"},
		{"instagram.session_file", "/tmp/ig.txt", "/tmp/ig.txt"},
		{"instagram.browser_fallback", "1", "true"},
		{"tools.ytdlp", "/usr/local/bin/yt-dlp", "/usr/local/bin/yt-dlp"},
		{"timeouts.http", "5s", "5s"},
		{"log.level", "debug", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%q, %q) error = %v", tt.key, tt.value, err)
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error = %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSetConfigValueInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"server.port", "abc"},
		{"server.port", "-1"},
		{"storage.ttl", "soon"},
		{"storage.journal", "maybe"},
		{"no.such.key", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if err := setConfigValue(cfg, tt.key, tt.value); err == nil {
				t.Errorf("setConfigValue(%q, %q) expected error", tt.key, tt.value)
			}
		})
	}

	cfg := config.DefaultConfig()
	_ = setConfigValue(cfg, "storage.ttl", "soon")
	if cfg.Storage.TTL != time.Hour {
		t.Errorf("TTL changed to %s after invalid set", cfg.Storage.TTL)
	}
}

func TestConfigKeysSorted(t *testing.T) {
	keys := configKeys()
	if len(keys) != len(configFields) {
		t.Fatalf("configKeys() has %d keys, want %d", len(keys), len(configFields))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("keys not sorted: %q before %q", keys[i-1], keys[i])
		}
	}
	if !strings.Contains(configSetCmd.Long, "storage.ttl") {
		t.Error("set help does not list storage.ttl")
	}
}

func TestMask(t *testing.T) {
	if got := mask(""); got != "" {
		t.Errorf("mask(\"\") = %q", got)
	}
	if got := mask("secret"); got == "secret" || got == "" {
		t.Errorf("mask(\"secret\") = %q", got)
	}
}
