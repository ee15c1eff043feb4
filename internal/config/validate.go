package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks a parsed config for values that would break services at
// apply time. It is installed as the manager's validator so a bad edit never
// replaces a working config.
func Validate(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}

	base := strings.TrimSpace(cfg.Eurocore.BaseURL)
	if base == "" {
		return fmt.Errorf("eurocore.base_url: required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("eurocore.base_url: invalid URL %q", base)
	}
	for _, f := range []struct{ path, raw string }{
		{"eurocore.poll_interval", cfg.Eurocore.PollInterval},
		{"eurocore.request_timeout", cfg.Eurocore.RequestTimeout},
		{"eurocore.session_ttl", cfg.Eurocore.SessionTTL},
		{"eurocore.nations_cache_ttl", cfg.Eurocore.NationsCacheTTL},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}

	if n := cfg.Notifier; n != nil {
		for _, f := range []struct{ path, raw string }{
			{"notifier.retry_base", n.RetryBase},
			{"notifier.retry_max_delay", n.RetryMaxDelay},
			{"notifier.dedup_window", n.DedupWindow},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
		if n.Workers < 0 || n.QueueSize < 0 || n.RatePerSec < 0 || n.RetryMax < 0 {
			return fmt.Errorf("notifier: counts must be >= 0")
		}
	}

	if s := cfg.Storage; s != nil {
		switch strings.ToLower(strings.TrimSpace(s.Driver)) {
		case "", "none", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", s.Driver)
		}
		if _, err := ParseDurationField("storage.busy_timeout", s.BusyTimeout); err != nil {
			return err
		}
	}

	return nil
}
