package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalJSON = `{
	"telegram": {"token": "123:abc", "owner_user_ids": [42], "group_log": "", "poll_timeout": "10s"},
	"logging": {"level": "INFO", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "thread_id": 0, "min_level": "WARN", "rate_per_sec": 1}},
	"eurocore": {"base_url": "https://euro.example.org", "poll_interval": "10s"}
}`

func TestParseBytesJSON(t *testing.T) {
	cfg, err := ParseBytes("config.json", []byte(minimalJSON))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Eurocore.BaseURL != "https://euro.example.org" {
		t.Fatalf("base_url = %q", cfg.Eurocore.BaseURL)
	}
	if len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("owners = %v", cfg.Telegram.OwnerUserIDs)
	}
}

func TestParseBytesYAML(t *testing.T) {
	y := `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  group_log: ""
  poll_timeout: 10s
logging:
  level: DEBUG
  console: true
  file: {enabled: false, path: ""}
  telegram: {enabled: false, thread_id: 0, min_level: WARN, rate_per_sec: 1}
eurocore:
  base_url: https://euro.example.org
  session_ttl: 12h
`
	cfg, err := ParseBytes("config.yaml", []byte(y))
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
	if cfg.Eurocore.SessionTTL != "12h" {
		t.Fatalf("session_ttl = %q", cfg.Eurocore.SessionTTL)
	}
}

func TestParseBytesRejectsUnknownFields(t *testing.T) {
	bad := strings.Replace(minimalJSON, `"eurocore"`, `"eurocoree"`, 1)
	if _, err := ParseBytes("config.json", []byte(bad)); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseBytesRejectsTrailingData(t *testing.T) {
	if _, err := ParseBytes("config.json", []byte(minimalJSON+`{"extra":1}`)); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestManagerLoadCommit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(minimalJSON), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get returns a different config than Load committed")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := ParseBytes("config.json", []byte(minimalJSON))
		if err != nil {
			t.Fatalf("ParseBytes: %v", err)
		}
		return cfg
	}

	if err := Validate(context.Background(), base()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = " " }},
		{"missing base url", func(c *Config) { c.Eurocore.BaseURL = "" }},
		{"relative base url", func(c *Config) { c.Eurocore.BaseURL = "euro.example.org/api" }},
		{"bad poll interval", func(c *Config) { c.Eurocore.PollInterval = "ten seconds" }},
		{"negative notifier workers", func(c *Config) { c.Notifier = &NotifierConfig{Workers: -1} }},
		{"unknown storage driver", func(c *Config) { c.Storage = &StorageConfig{Driver: "postgres"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := Validate(context.Background(), cfg); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}

func TestSubscribePublishDropOldest(t *testing.T) {
	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{}
	second := &Config{Telegram: TelegramConfig{Token: "x"}}
	m.publish(first)
	m.publish(second) // buffer full: oldest is dropped

	got := <-ch
	if got != second {
		t.Fatal("subscriber did not receive the latest config")
	}
}
