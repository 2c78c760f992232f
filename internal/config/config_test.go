package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseHelpersFallBackOnInvalidInput(t *testing.T) {
	if got := parseDuration("not-a-duration", 30*time.Second); got != 30*time.Second {
		t.Errorf("parseDuration fallback = %v, want 30s", got)
	}
	if got := parseDuration("45s", time.Second); got != 45*time.Second {
		t.Errorf("parseDuration = %v, want 45s", got)
	}

	if got := parseBool("yes-please", false); got {
		t.Error("parseBool should fall back to false on garbage")
	}
	if got := parseBool("true", false); !got {
		t.Error("parseBool(\"true\") = false")
	}

	if got := parseInt("3x", 5); got != 5 {
		t.Errorf("parseInt fallback = %d, want 5", got)
	}
	if got := parseInt("7", 5); got != 7 {
		t.Errorf("parseInt = %d, want 7", got)
	}

	def := decimal.NewFromInt(100000)
	if got := parseDecimal("1e", def); !got.Equal(def) {
		t.Errorf("parseDecimal fallback = %s, want %s", got, def)
	}
	if got := parseDecimal("19.99", def); !got.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("parseDecimal = %s, want 19.99", got)
	}
}

func TestParseStringSlice(t *testing.T) {
	if got := parseStringSlice(""); len(got) != 0 {
		t.Errorf("parseStringSlice(\"\") = %v, want empty", got)
	}

	got := parseStringSlice("http://a.test, http://b.test ,,http://c.test")
	want := []string{"http://a.test", "http://b.test", "http://c.test"}
	if len(got) != len(want) {
		t.Fatalf("parseStringSlice = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parseStringSlice[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadLimitDefaults(t *testing.T) {
	cfg := Load()

	if !cfg.MaxTransactionAmount.Equal(decimal.NewFromInt(100000)) {
		t.Errorf("MaxTransactionAmount = %s, want 100000", cfg.MaxTransactionAmount)
	}
	if !cfg.MaxBalance.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("MaxBalance = %s, want 1000000", cfg.MaxBalance)
	}
	if !cfg.MinBalance.IsZero() {
		t.Errorf("MinBalance = %s, want 0", cfg.MinBalance)
	}
	if cfg.AllowNegativeBalance {
		t.Error("AllowNegativeBalance should default to false")
	}
	if cfg.MonitorInterval != 30*time.Second {
		t.Errorf("MonitorInterval = %v, want 30s", cfg.MonitorInterval)
	}
	if cfg.MonitorMaxRetries != 3 {
		t.Errorf("MonitorMaxRetries = %d, want 3", cfg.MonitorMaxRetries)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("LEDGER_MAX_TX_AMOUNT", "500")
	t.Setenv("LEDGER_ALLOW_NEGATIVE", "true")
	t.Setenv("MONITOR_INTERVAL", "5s")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg := Load()

	if !cfg.MaxTransactionAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("MaxTransactionAmount = %s, want 500", cfg.MaxTransactionAmount)
	}
	if !cfg.AllowNegativeBalance {
		t.Error("AllowNegativeBalance should be true")
	}
	if cfg.MonitorInterval != 5*time.Second {
		t.Errorf("MonitorInterval = %v, want 5s", cfg.MonitorInterval)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v, want two entries", cfg.AllowedOrigins)
	}
}
