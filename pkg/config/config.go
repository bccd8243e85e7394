package config

import (
	"fmt"
	"strings"
	"time"

	"nostr-pool/pkg/crypto"
	"nostr-pool/pkg/protocol"
	"nostr-pool/pkg/relay"
	"nostr-pool/pkg/unknownids"
)

type Config struct {
	Relays        []string
	PinnedRelays  []string
	AccountPubkey string
	Reconnect     ReconnectConfig
	Outbox        OutboxConfig
	UnknownIDs    UnknownIDsConfig
}

type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	ConnectTimeout    time.Duration
	IdlePing          time.Duration
	ColdThreshold     int
	ColdRetryInterval time.Duration
}

type OutboxConfig struct {
	MaxFanout         int
	AuthorsK          int
	HintsCapPerPubkey int
}

type UnknownIDsConfig struct {
	Debounce time.Duration
	Batch    int
	Timeout  time.Duration
	MaxRetry int
}

// Load loads configuration from CLI flags, environment variables and an
// optional YAML file. CLI flags override environment variables, which
// override the file.
func Load() (*Config, error) {
	// Parse CLI flags
	flagSource, showHelp := parseCLIFlags()

	if showHelp {
		printUsage()
		return nil, nil // Return nil to indicate help was shown
	}

	// The file path itself resolves before the file joins the chain.
	bootstrap := NewConfigResolver(flagSource, &EnvSource{})
	filePath := bootstrap.ResolveString(KeyConfigFile, "")
	fileSource, err := NewFileSource(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	resolver := NewConfigResolver(flagSource, &EnvSource{}, fileSource)

	cfg := &Config{
		Relays:        splitRelayList(resolver.ResolveString(KeyRelays, "")),
		PinnedRelays:  splitRelayList(resolver.ResolveString(KeyPinnedRelays, "")),
		AccountPubkey: resolver.ResolveString(KeyAccountPubkey, ""),
		Reconnect: ReconnectConfig{
			InitialDelay:      resolver.ResolveDuration(KeyReconnectInitialDelay, DefaultReconnectInitialDelay),
			MaxDelay:          resolver.ResolveDuration(KeyReconnectMaxDelay, DefaultReconnectMaxDelay),
			ConnectTimeout:    resolver.ResolveDuration(KeyConnectTimeout, DefaultConnectTimeout),
			IdlePing:          resolver.ResolveDuration(KeyIdlePing, DefaultIdlePing),
			ColdThreshold:     resolver.ResolveInt(KeyColdThreshold, DefaultColdThreshold),
			ColdRetryInterval: resolver.ResolveDuration(KeyColdRetryInterval, DefaultColdRetryInterval),
		},
		Outbox: OutboxConfig{
			MaxFanout:         resolver.ResolveInt(KeyMaxFanout, DefaultMaxFanout),
			AuthorsK:          resolver.ResolveInt(KeyAuthorsK, DefaultAuthorsK),
			HintsCapPerPubkey: resolver.ResolveInt(KeyHintsCapPerPubkey, DefaultHintsCapPerPubkey),
		},
		UnknownIDs: UnknownIDsConfig{
			Debounce: resolver.ResolveDuration(KeyUnknownIDsDebounce, DefaultUnknownIDsDebounce),
			Batch:    resolver.ResolveInt(KeyUnknownIDsBatch, DefaultUnknownIDsBatch),
			Timeout:  resolver.ResolveDuration(KeyUnknownIDsTimeout, DefaultUnknownIDsTimeout),
			MaxRetry: resolver.ResolveInt(KeyUnknownIDsMaxRetry, DefaultUnknownIDsMaxRetry),
		},
	}

	if cfg.AccountPubkey != "" {
		pk, err := crypto.NormalizePubkey(cfg.AccountPubkey)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyAccountPubkey, err)
		}
		cfg.AccountPubkey = pk
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RelayOptions maps the reconnect section onto relay options.
func (c *Config) RelayOptions() relay.Options {
	opts := relay.DefaultOptions()
	opts.InitialBackoff = c.Reconnect.InitialDelay
	opts.MaxBackoff = c.Reconnect.MaxDelay
	opts.IdlePing = c.Reconnect.IdlePing
	opts.ColdThreshold = c.Reconnect.ColdThreshold
	opts.ColdRetryInterval = c.Reconnect.ColdRetryInterval
	return opts
}

// UnknownIDOptions maps the unknown-ids section onto pipeline options.
func (c *Config) UnknownIDOptions() unknownids.Options {
	return unknownids.Options{
		Debounce: c.UnknownIDs.Debounce,
		Batch:    c.UnknownIDs.Batch,
		Timeout:  c.UnknownIDs.Timeout,
		MaxRetry: c.UnknownIDs.MaxRetry,
	}
}

func splitRelayList(raw string) []string {
	if raw == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if normalized, err := protocol.NormalizeURL(part); err == nil {
			urls = append(urls, string(normalized))
		} else {
			urls = append(urls, part) // validate reports it
		}
	}
	return urls
}
