package cache_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mxn2020/prompt-verse-io/pkg/cache"
)

func TestNewDisabledIsNoop(t *testing.T) {
	c := cache.New(&cache.Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if c.Enabled() {
		t.Fatal("Enabled() = true for disabled config")
	}

	ctx := context.Background()
	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("noop cache returned a value")
	}
}

func TestNewEnabled(t *testing.T) {
	cfg := &cache.Config{Enabled: true}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	c := cache.New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !c.Enabled() {
		t.Error("Enabled() = false for enabled config")
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := cache.Memory(time.Hour)

	if _, ok, _ := c.Get(ctx, "missing"); ok {
		t.Error("Get(missing) ok = true")
	}

	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v" {
		t.Errorf("Get(k) = %q, %v, %v; want v, true, nil", got, ok, err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := cache.Memory(time.Nanosecond)

	c.Set(ctx, "k", []byte("v"))
	time.Sleep(time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("expired entry still returned")
	}
}

func TestConfigFinalizeDefaults(t *testing.T) {
	cfg := cache.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Addr != "localhost:6379" {
		t.Errorf("addr: got %s, want localhost:6379", cfg.Addr)
	}
	if cfg.TTLDuration() != 10*time.Minute {
		t.Errorf("ttl: got %v, want 10m", cfg.TTLDuration())
	}
	if cfg.Prefix != "promptverse:" {
		t.Errorf("prefix: got %s, want promptverse:", cfg.Prefix)
	}
}

func TestConfigFinalizeEnv(t *testing.T) {
	t.Setenv("TEST_CACHE_ENABLED", "true")
	t.Setenv("TEST_CACHE_ADDR", "redis:6380")
	t.Setenv("TEST_CACHE_DB", "2")
	t.Setenv("TEST_CACHE_TTL", "1m")

	cfg := cache.Config{}
	err := cfg.Finalize(&cache.Env{
		Enabled: "TEST_CACHE_ENABLED",
		Addr:    "TEST_CACHE_ADDR",
		DB:      "TEST_CACHE_DB",
		TTL:     "TEST_CACHE_TTL",
	})
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if !cfg.Enabled || cfg.Addr != "redis:6380" || cfg.DB != 2 || cfg.TTLDuration() != time.Minute {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
}

func TestConfigFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     cache.Config
		wantErr string
	}{
		{"negative db", cache.Config{DB: -1}, "invalid db"},
		{"bad ttl", cache.Config{TTL: "soon"}, "invalid ttl"},
		{"zero ttl", cache.Config{TTL: "0s"}, "invalid ttl"},
		{"bad dial timeout", cache.Config{DialTimeout: "x"}, "invalid dial_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	base := cache.Config{Addr: "base:6379", TTL: "5m"}
	base.Merge(&cache.Config{Enabled: true, TTL: "1h"})

	if !base.Enabled {
		t.Error("enabled should be true after merge")
	}
	if base.Addr != "base:6379" {
		t.Errorf("addr should remain base:6379, got %s", base.Addr)
	}
	if base.TTL != "1h" {
		t.Errorf("ttl: got %s, want 1h", base.TTL)
	}
}
