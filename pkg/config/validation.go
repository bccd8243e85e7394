package config

import (
	"fmt"

	"nostr-pool/pkg/protocol"
)

func (c *Config) validate() error {
	for _, u := range c.Relays {
		if _, err := protocol.NormalizeURL(u); err != nil {
			return fmt.Errorf("%s: %q: %w", KeyRelays, u, err)
		}
	}
	for _, u := range c.PinnedRelays {
		if _, err := protocol.NormalizeURL(u); err != nil {
			return fmt.Errorf("%s: %q: %w", KeyPinnedRelays, u, err)
		}
	}
	if c.Reconnect.InitialDelay <= 0 {
		return fmt.Errorf("%s must be positive", KeyReconnectInitialDelay)
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("%s must be at least %s", KeyReconnectMaxDelay, KeyReconnectInitialDelay)
	}
	if c.Reconnect.ColdThreshold < 1 {
		return fmt.Errorf("%s must be at least 1", KeyColdThreshold)
	}
	if c.Outbox.MaxFanout < 1 {
		return fmt.Errorf("%s must be at least 1", KeyMaxFanout)
	}
	if c.Outbox.AuthorsK < 1 {
		return fmt.Errorf("%s must be at least 1", KeyAuthorsK)
	}
	if c.UnknownIDs.Batch < 1 {
		return fmt.Errorf("%s must be at least 1", KeyUnknownIDsBatch)
	}
	if c.UnknownIDs.MaxRetry < 1 {
		return fmt.Errorf("%s must be at least 1", KeyUnknownIDsMaxRetry)
	}
	return nil
}
