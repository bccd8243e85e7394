package config

import (
	"testing"
	"time"
)

func validConfigForTest() *Config {
	return &Config{
		Relays:        []string{"wss://relay.example/"},
		PinnedRelays:  []string{"wss://pinned.example/"},
		AccountPubkey: "ab12",
		Reconnect: ReconnectConfig{
			InitialDelay:      DefaultReconnectInitialDelay,
			MaxDelay:          DefaultReconnectMaxDelay,
			ConnectTimeout:    DefaultConnectTimeout,
			IdlePing:          DefaultIdlePing,
			ColdThreshold:     DefaultColdThreshold,
			ColdRetryInterval: DefaultColdRetryInterval,
		},
		Outbox: OutboxConfig{
			MaxFanout:         DefaultMaxFanout,
			AuthorsK:          DefaultAuthorsK,
			HintsCapPerPubkey: DefaultHintsCapPerPubkey,
		},
		UnknownIDs: UnknownIDsConfig{
			Debounce: DefaultUnknownIDsDebounce,
			Batch:    DefaultUnknownIDsBatch,
			Timeout:  DefaultUnknownIDsTimeout,
			MaxRetry: DefaultUnknownIDsMaxRetry,
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validConfigForTest()
		if err := cfg.validate(); err != nil {
			t.Fatalf("expected no error for valid config, got %v", err)
		}
	})

	t.Run("bad relay url", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Relays = append(cfg.Relays, "https://web.example")
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for non-websocket relay, got nil")
		}
	})

	t.Run("bad pinned relay url", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.PinnedRelays = []string{"relay.example"}
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for schemeless pinned relay, got nil")
		}
	})

	t.Run("non-positive initial delay", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Reconnect.InitialDelay = 0
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for zero initial delay, got nil")
		}
	})

	t.Run("max delay below initial", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Reconnect.InitialDelay = time.Minute
		cfg.Reconnect.MaxDelay = time.Second
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for max below initial, got nil")
		}
	})

	t.Run("zero cold threshold", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Reconnect.ColdThreshold = 0
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for zero cold threshold, got nil")
		}
	})

	t.Run("zero fanout", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Outbox.MaxFanout = 0
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for zero fanout, got nil")
		}
	})

	t.Run("zero batch", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.UnknownIDs.Batch = 0
		if err := cfg.validate(); err == nil {
			t.Fatal("expected validation error for zero batch, got nil")
		}
	})
}
