package app

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"eurobot/internal/config"
	"eurobot/internal/eurocore"
	"eurobot/internal/transport/telegram/router"
)

func baseConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{Token: "123:abc"},
		Eurocore: config.EurocoreConfig{BaseURL: "https://euro.example.org"},
	}
}

func TestMapEurocoreConfigDefaults(t *testing.T) {
	ccfg, poll, ttl, err := mapEurocoreConfig(baseConfig())
	if err != nil {
		t.Fatalf("mapEurocoreConfig: %v", err)
	}
	if ccfg.BaseURL != "https://euro.example.org" {
		t.Fatalf("base url = %q", ccfg.BaseURL)
	}
	if ccfg.RequestTimeout != 15*time.Second || ccfg.NationsCacheTTL != 5*time.Minute {
		t.Fatalf("client cfg = %+v", ccfg)
	}
	if poll != 10*time.Second {
		t.Fatalf("poll interval = %v", poll)
	}
	if ttl != 12*time.Hour {
		t.Fatalf("session ttl = %v", ttl)
	}
}

func TestMapEurocoreConfigRejectsSubSecondPoll(t *testing.T) {
	cfg := baseConfig()
	cfg.Eurocore.PollInterval = "100ms"
	if _, _, _, err := mapEurocoreConfig(cfg); err == nil {
		t.Fatal("sub-second poll interval accepted")
	}
}

func TestMapStorageConfig(t *testing.T) {
	cfg := baseConfig()
	if _, enabled, err := mapStorageConfig(cfg); err != nil || enabled {
		t.Fatalf("nil storage = (%v, %v)", enabled, err)
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite", Path: "/tmp/x.db", BusyTimeout: "2s"}
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil || !enabled {
		t.Fatalf("sqlite storage = (%v, %v)", enabled, err)
	}
	if sc.BusyTimeout != 2*time.Second {
		t.Fatalf("busy timeout = %v", sc.BusyTimeout)
	}

	cfg.Storage = &config.StorageConfig{Driver: "sqlite"}
	if _, _, err := mapStorageConfig(cfg); err == nil {
		t.Fatal("sqlite without path accepted")
	}
}

func TestMapNotifierConfigDefaults(t *testing.T) {
	ncfg, err := mapNotifierConfig(baseConfig())
	if err != nil {
		t.Fatalf("mapNotifierConfig: %v", err)
	}
	if !ncfg.Enabled || ncfg.Workers != 2 || ncfg.QueueSize != 512 {
		t.Fatalf("defaults = %+v", ncfg)
	}
	if ncfg.RetryBase != 500*time.Millisecond || ncfg.DedupWindow != time.Minute {
		t.Fatalf("durations = %+v", ncfg)
	}
}

func TestParseCategoryFlag(t *testing.T) {
	req := &router.Request{Flags: map[string]string{"category": "305"}}
	cat, err := parseCategoryFlag(req)
	if err != nil {
		t.Fatalf("parseCategoryFlag: %v", err)
	}
	if cat.Subcategory != 305 || cat.Name != "Bulletin: Policy" {
		t.Fatalf("category = %+v", cat)
	}

	for name, flags := range map[string]map[string]string{
		"missing": {},
		"garbage": {"category": "policy"},
		"unknown": {"category": "999"},
	} {
		req := &router.Request{Flags: flags}
		if _, err := parseCategoryFlag(req); !errors.Is(err, eurocore.ErrValidation) {
			t.Fatalf("%s: err = %v, want ErrValidation", name, err)
		}
	}
}

func TestContainsFold(t *testing.T) {
	list := []string{"Testlandia", "maxtopia"}
	if !containsFold(list, "testlandia") || !containsFold(list, "MAXTOPIA") {
		t.Fatal("case-insensitive match failed")
	}
	if containsFold(list, "frisbeeteria") {
		t.Fatal("matched absent nation")
	}
}
