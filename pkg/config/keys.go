package config

import "time"

// Configuration key constants
// These constants centralize all environment variable and configuration key names
// to eliminate magic strings and improve maintainability.

const (
	// Core pool configuration keys
	KeyRelays        = "POOL_RELAYS"
	KeyPinnedRelays  = "POOL_PINNED_RELAYS"
	KeyAccountPubkey = "POOL_ACCOUNT_PUBKEY"
	KeyConfigFile    = "POOL_CONFIG_FILE"

	// Connection lifecycle configuration keys
	KeyReconnectInitialDelay = "POOL_RECONNECT_INITIAL_DELAY"
	KeyReconnectMaxDelay     = "POOL_RECONNECT_MAX_DELAY"
	KeyConnectTimeout        = "POOL_CONNECT_TIMEOUT"
	KeyIdlePing              = "POOL_IDLE_PING"
	KeyColdThreshold         = "POOL_COLD_THRESHOLD"
	KeyColdRetryInterval     = "POOL_COLD_RETRY_INTERVAL"

	// Outbox configuration keys
	KeyMaxFanout         = "POOL_MAX_FANOUT"
	KeyAuthorsK          = "POOL_AUTHORS_K"
	KeyHintsCapPerPubkey = "POOL_HINTS_CAP_PER_PUBKEY"

	// Unknown-ids configuration keys
	KeyUnknownIDsDebounce = "POOL_UNKNOWN_IDS_DEBOUNCE"
	KeyUnknownIDsBatch    = "POOL_UNKNOWN_IDS_BATCH"
	KeyUnknownIDsTimeout  = "POOL_UNKNOWN_IDS_TIMEOUT"
	KeyUnknownIDsMaxRetry = "POOL_UNKNOWN_IDS_MAX_RETRY"
)

// Default values for configuration
const (
	// Connection lifecycle defaults
	DefaultReconnectInitialDelay = time.Second
	DefaultReconnectMaxDelay     = 30 * time.Second
	DefaultConnectTimeout        = 15 * time.Second
	DefaultIdlePing              = 30 * time.Second
	DefaultColdThreshold         = 8
	DefaultColdRetryInterval     = 5 * time.Minute

	// Outbox defaults
	DefaultMaxFanout         = 12
	DefaultAuthorsK          = 3
	DefaultHintsCapPerPubkey = 8

	// Unknown-ids defaults
	DefaultUnknownIDsDebounce = 200 * time.Millisecond
	DefaultUnknownIDsBatch    = 64
	DefaultUnknownIDsTimeout  = 30 * time.Second
	DefaultUnknownIDsMaxRetry = 3
)

// CLI flag name constants
const (
	// CLI flag names (kebab-case for command line)
	FlagRelays                = "relays"
	FlagPinnedRelays          = "pinned-relays"
	FlagAccountPubkey         = "account-pubkey"
	FlagConfigFile            = "config-file"
	FlagReconnectInitialDelay = "reconnect-initial-delay"
	FlagReconnectMaxDelay     = "reconnect-max-delay"
	FlagConnectTimeout        = "connect-timeout"
	FlagIdlePing              = "idle-ping"
	FlagColdThreshold         = "cold-threshold"
	FlagColdRetryInterval     = "cold-retry-interval"
	FlagMaxFanout             = "max-fanout"
	FlagAuthorsK              = "authors-k"
	FlagHintsCapPerPubkey     = "hints-cap-per-pubkey"
	FlagUnknownIDsDebounce    = "unknown-ids-debounce"
	FlagUnknownIDsBatch       = "unknown-ids-batch"
	FlagUnknownIDsTimeout     = "unknown-ids-timeout"
	FlagUnknownIDsMaxRetry    = "unknown-ids-max-retry"
	FlagHelp                  = "help"
)

// Help message constants
const (
	AppName        = "Nostr Pool"
	AppDescription = "Client-side relay pool and subscription coordinator"
	UsageFormat    = "poold [OPTIONS]"

	// Help descriptions
	HelpRelays                = "Comma-separated relay URLs to open at startup"
	HelpPinnedRelays          = "Comma-separated relay URLs exempt from cold exclusion"
	HelpAccountPubkey         = "Active account pubkey (hex)"
	HelpConfigFile            = "Path to an optional YAML config file"
	HelpReconnectInitialDelay = "First reconnect backoff interval"
	HelpReconnectMaxDelay     = "Reconnect backoff ceiling"
	HelpConnectTimeout        = "WebSocket handshake deadline"
	HelpIdlePing              = "Inbound-silence interval before a ping is sent"
	HelpColdThreshold         = "Consecutive handshake failures before a relay goes cold"
	HelpColdRetryInterval     = "Retry cadence for cold relays"
	HelpMaxFanout             = "Cap on relays targeted per subscription"
	HelpAuthorsK              = "Relays taken per author from the outbox index"
	HelpHintsCapPerPubkey     = "Relay hints kept per pubkey"
	HelpUnknownIDsDebounce    = "Quiet period before an unknown-ids batch is flushed"
	HelpUnknownIDsBatch       = "Pending-id count that triggers an early flush"
	HelpUnknownIDsTimeout     = "Deadline for an in-flight unknown-ids round"
	HelpUnknownIDsMaxRetry    = "Attempts per unknown id before it is dropped"
	HelpShowHelp              = "Show this help message"

	// Help section headers
	HelpOptions         = "Options:"
	HelpEnvironmentVars = "Environment Variables:"
	HelpUsage           = "Usage:"
	HelpNote            = "Note: CLI options override environment variables, which override the config file"
)
