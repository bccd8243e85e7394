package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"nostr-pool/pkg/config"
	"nostr-pool/pkg/coordinator"
	"nostr-pool/pkg/diag"
	"nostr-pool/pkg/relay"
	"nostr-pool/pkg/store"
	"nostr-pool/pkg/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		info := version.Info()
		fmt.Printf("poold version %s, commit %s, built %s\n", info.Version, info.Commit, info.Built)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		// Help was shown.
		return
	}

	logger := log.New(os.Stdout, "[poold] ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aggregator := diag.NewAggregator(diag.RealClock{}, diag.DefaultConfig())
	aggregator.Start(ctx)
	defer aggregator.Stop()

	dialer := relay.NewWSDialer(cfg.Reconnect.ConnectTimeout)

	driver, err := coordinator.New(cfg, store.NewMemory(), dialer, logger, aggregator, diag.RealClock{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building coordinator: %v\n", err)
		os.Exit(1)
	}

	go func() {
		if err := driver.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("driver stopped: %v", err)
		}
	}()

	cli := NewCLI(aggregator, cfg, logger)
	if err := cli.Run(ctx); err != nil {
		logger.Printf("cli stopped: %v", err)
	}
}
