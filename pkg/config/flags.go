package config

import (
	"flag"
	"fmt"
)

// parseCLIFlags parses command-line flags and returns a FlagSource and help flag
func parseCLIFlags() (*FlagSource, bool) {
	flagSource := NewFlagSource()

	// Define CLI flags
	relays := flag.String(FlagRelays, "", HelpRelays)
	pinnedRelays := flag.String(FlagPinnedRelays, "", HelpPinnedRelays)
	accountPubkey := flag.String(FlagAccountPubkey, "", HelpAccountPubkey)
	configFile := flag.String(FlagConfigFile, "", HelpConfigFile)
	reconnectInitialDelay := flag.Duration(FlagReconnectInitialDelay, 0, HelpReconnectInitialDelay)
	reconnectMaxDelay := flag.Duration(FlagReconnectMaxDelay, 0, HelpReconnectMaxDelay)
	connectTimeout := flag.Duration(FlagConnectTimeout, 0, HelpConnectTimeout)
	idlePing := flag.Duration(FlagIdlePing, 0, HelpIdlePing)
	coldThreshold := flag.Int(FlagColdThreshold, 0, HelpColdThreshold)
	coldRetryInterval := flag.Duration(FlagColdRetryInterval, 0, HelpColdRetryInterval)
	maxFanout := flag.Int(FlagMaxFanout, 0, HelpMaxFanout)
	authorsK := flag.Int(FlagAuthorsK, 0, HelpAuthorsK)
	hintsCapPerPubkey := flag.Int(FlagHintsCapPerPubkey, 0, HelpHintsCapPerPubkey)
	unknownIDsDebounce := flag.Duration(FlagUnknownIDsDebounce, 0, HelpUnknownIDsDebounce)
	unknownIDsBatch := flag.Int(FlagUnknownIDsBatch, 0, HelpUnknownIDsBatch)
	unknownIDsTimeout := flag.Duration(FlagUnknownIDsTimeout, 0, HelpUnknownIDsTimeout)
	unknownIDsMaxRetry := flag.Int(FlagUnknownIDsMaxRetry, 0, HelpUnknownIDsMaxRetry)
	help := flag.Bool(FlagHelp, false, HelpShowHelp)

	flag.Parse()

	if *help {
		return flagSource, true
	}

	// Store non-zero/non-empty values in flag source
	if *relays != "" {
		flagSource.Set(KeyRelays, *relays)
	}
	if *pinnedRelays != "" {
		flagSource.Set(KeyPinnedRelays, *pinnedRelays)
	}
	if *accountPubkey != "" {
		flagSource.Set(KeyAccountPubkey, *accountPubkey)
	}
	if *configFile != "" {
		flagSource.Set(KeyConfigFile, *configFile)
	}
	if *reconnectInitialDelay != 0 {
		flagSource.Set(KeyReconnectInitialDelay, *reconnectInitialDelay)
	}
	if *reconnectMaxDelay != 0 {
		flagSource.Set(KeyReconnectMaxDelay, *reconnectMaxDelay)
	}
	if *connectTimeout != 0 {
		flagSource.Set(KeyConnectTimeout, *connectTimeout)
	}
	if *idlePing != 0 {
		flagSource.Set(KeyIdlePing, *idlePing)
	}
	if *coldThreshold != 0 {
		flagSource.Set(KeyColdThreshold, *coldThreshold)
	}
	if *coldRetryInterval != 0 {
		flagSource.Set(KeyColdRetryInterval, *coldRetryInterval)
	}
	if *maxFanout != 0 {
		flagSource.Set(KeyMaxFanout, *maxFanout)
	}
	if *authorsK != 0 {
		flagSource.Set(KeyAuthorsK, *authorsK)
	}
	if *hintsCapPerPubkey != 0 {
		flagSource.Set(KeyHintsCapPerPubkey, *hintsCapPerPubkey)
	}
	if *unknownIDsDebounce != 0 {
		flagSource.Set(KeyUnknownIDsDebounce, *unknownIDsDebounce)
	}
	if *unknownIDsBatch != 0 {
		flagSource.Set(KeyUnknownIDsBatch, *unknownIDsBatch)
	}
	if *unknownIDsTimeout != 0 {
		flagSource.Set(KeyUnknownIDsTimeout, *unknownIDsTimeout)
	}
	if *unknownIDsMaxRetry != 0 {
		flagSource.Set(KeyUnknownIDsMaxRetry, *unknownIDsMaxRetry)
	}

	return flagSource, false
}

// printUsage prints the usage message
func printUsage() {
	fmt.Printf("%s - %s\n", AppName, AppDescription)
	fmt.Println()
	fmt.Printf("%s\n", HelpUsage)
	fmt.Printf("  %s\n", UsageFormat)
	fmt.Println()
	fmt.Printf("%s\n", HelpOptions)
	fmt.Printf("  --%-28s %s\n", FlagRelays+" string", HelpRelays)
	fmt.Printf("  --%-28s %s\n", FlagPinnedRelays+" string", HelpPinnedRelays)
	fmt.Printf("  --%-28s %s\n", FlagAccountPubkey+" string", HelpAccountPubkey)
	fmt.Printf("  --%-28s %s\n", FlagConfigFile+" string", HelpConfigFile)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagReconnectInitialDelay+" duration", HelpReconnectInitialDelay, DefaultReconnectInitialDelay)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagReconnectMaxDelay+" duration", HelpReconnectMaxDelay, DefaultReconnectMaxDelay)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagConnectTimeout+" duration", HelpConnectTimeout, DefaultConnectTimeout)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagIdlePing+" duration", HelpIdlePing, DefaultIdlePing)
	fmt.Printf("  --%-28s %s (default: %d)\n", FlagColdThreshold+" int", HelpColdThreshold, DefaultColdThreshold)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagColdRetryInterval+" duration", HelpColdRetryInterval, DefaultColdRetryInterval)
	fmt.Printf("  --%-28s %s (default: %d)\n", FlagMaxFanout+" int", HelpMaxFanout, DefaultMaxFanout)
	fmt.Printf("  --%-28s %s (default: %d)\n", FlagAuthorsK+" int", HelpAuthorsK, DefaultAuthorsK)
	fmt.Printf("  --%-28s %s (default: %d)\n", FlagHintsCapPerPubkey+" int", HelpHintsCapPerPubkey, DefaultHintsCapPerPubkey)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagUnknownIDsDebounce+" duration", HelpUnknownIDsDebounce, DefaultUnknownIDsDebounce)
	fmt.Printf("  --%-28s %s (default: %d)\n", FlagUnknownIDsBatch+" int", HelpUnknownIDsBatch, DefaultUnknownIDsBatch)
	fmt.Printf("  --%-28s %s (default: %s)\n", FlagUnknownIDsTimeout+" duration", HelpUnknownIDsTimeout, DefaultUnknownIDsTimeout)
	fmt.Printf("  --%-28s %s (default: %d)\n", FlagUnknownIDsMaxRetry+" int", HelpUnknownIDsMaxRetry, DefaultUnknownIDsMaxRetry)
	fmt.Printf("  --%-28s %s\n", FlagHelp, HelpShowHelp)
	fmt.Println()
	fmt.Printf("%s\n", HelpEnvironmentVars)
	fmt.Printf("  %-32s %s\n", KeyRelays, HelpRelays)
	fmt.Printf("  %-32s %s\n", KeyPinnedRelays, HelpPinnedRelays)
	fmt.Printf("  %-32s %s\n", KeyAccountPubkey, HelpAccountPubkey)
	fmt.Printf("  %-32s %s\n", KeyConfigFile, HelpConfigFile)
	fmt.Printf("  %-32s %s\n", KeyReconnectInitialDelay, HelpReconnectInitialDelay)
	fmt.Printf("  %-32s %s\n", KeyReconnectMaxDelay, HelpReconnectMaxDelay)
	fmt.Printf("  %-32s %s\n", KeyConnectTimeout, HelpConnectTimeout)
	fmt.Printf("  %-32s %s\n", KeyIdlePing, HelpIdlePing)
	fmt.Printf("  %-32s %s\n", KeyColdThreshold, HelpColdThreshold)
	fmt.Printf("  %-32s %s\n", KeyColdRetryInterval, HelpColdRetryInterval)
	fmt.Printf("  %-32s %s\n", KeyMaxFanout, HelpMaxFanout)
	fmt.Printf("  %-32s %s\n", KeyAuthorsK, HelpAuthorsK)
	fmt.Printf("  %-32s %s\n", KeyHintsCapPerPubkey, HelpHintsCapPerPubkey)
	fmt.Printf("  %-32s %s\n", KeyUnknownIDsDebounce, HelpUnknownIDsDebounce)
	fmt.Printf("  %-32s %s\n", KeyUnknownIDsBatch, HelpUnknownIDsBatch)
	fmt.Printf("  %-32s %s\n", KeyUnknownIDsTimeout, HelpUnknownIDsTimeout)
	fmt.Printf("  %-32s %s\n", KeyUnknownIDsMaxRetry, HelpUnknownIDsMaxRetry)
	fmt.Println()
	fmt.Printf("%s\n", HelpNote)
}
