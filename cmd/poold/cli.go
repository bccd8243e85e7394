package main

import (
	"context"
	"log"
	"time"

	"nostr-pool/pkg/config"
	"nostr-pool/pkg/diag"
	"nostr-pool/pkg/utils"
)

// CLI represents the command-line interface runner
type CLI struct {
	diag   diag.Reader
	config *config.Config
	logger *log.Logger

	// State
	lastSnapshot diag.Snapshot
	done         chan struct{}
}

// NewCLI creates a new command-line interface runner
func NewCLI(diagReader diag.Reader, cfg *config.Config, logger *log.Logger) *CLI {
	return &CLI{
		diag:   diagReader,
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run starts the CLI runner and blocks until shutdown
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Printf("Starting Nostr Pool in quiet mode")
	c.logger.Printf("Relays: %v", c.config.Relays)
	if len(c.config.PinnedRelays) > 0 {
		c.logger.Printf("Pinned: %v", c.config.PinnedRelays)
	}
	c.logger.Printf("Fanout cap: %d, authors per sub: %d", c.config.Outbox.MaxFanout, c.config.Outbox.AuthorsK)

	// Print periodic status updates
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Printf("Shutting down...")
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop stops the CLI runner
func (c *CLI) Stop() {
	close(c.done)
}

// printStatus prints current diagnostics
func (c *CLI) printStatus() {
	snapshot := c.diag.Snapshot()

	if c.shouldPrintStatus(snapshot) {
		c.logger.Printf("Status - Notes: ingested=%d, rate=%.1f/s, dropped frames=%d, errors=%d",
			snapshot.NotesIngested,
			snapshot.NotesPerSecond,
			snapshot.FramesDropped,
			snapshot.ErrorsTotal)

		connected := 0
		for _, status := range snapshot.RelayStatus {
			if status == "connected" {
				connected++
			}
		}
		c.logger.Printf("Relays - connected: %d/%d, cold: %d",
			connected, len(snapshot.RelayStatus), snapshot.ColdRelays)

		if snapshot.UnknownIDsDropped > 0 {
			c.logger.Printf("Unknown ids dropped: %d", snapshot.UnknownIDsDropped)
		}

		for i, kc := range utils.SortKindsByCount(snapshot.NotesByKind) {
			if i >= 5 {
				break
			}
			c.logger.Printf("  %-12s %s", utils.GetKindName(kc.Kind), utils.FormatNumber(kc.Count))
		}
	}

	c.lastSnapshot = snapshot
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(snapshot diag.Snapshot) bool {
	// Always print first status
	if c.lastSnapshot.NotesIngested == 0 && len(c.lastSnapshot.RelayStatus) == 0 {
		return true
	}

	if snapshot.NotesIngested != c.lastSnapshot.NotesIngested {
		return true
	}

	if snapshot.ErrorsTotal > c.lastSnapshot.ErrorsTotal {
		return true
	}

	for url, status := range snapshot.RelayStatus {
		if c.lastSnapshot.RelayStatus[url] != status {
			return true
		}
	}

	return false
}
