package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

func TestParseCLIFlags(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	t.Run("empty args", func(t *testing.T) {
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

		os.Args = []string{"poold"}
		flagSource, showHelp := parseCLIFlags()

		if showHelp {
			t.Error("expected showHelp to be false for empty args")
		}
		if flagSource == nil {
			t.Fatal("expected non-nil flagSource")
		}

		if value, found := flagSource.GetString(KeyRelays); found {
			t.Errorf("expected no value for %s, got '%s'", KeyRelays, value)
		}
		if _, found := flagSource.GetDuration(KeyIdlePing); found {
			t.Errorf("expected no value for %s", KeyIdlePing)
		}
	})

	t.Run("set flags land in source", func(t *testing.T) {
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

		os.Args = []string{
			"poold",
			"--" + FlagRelays, "wss://cli.example",
			"--" + FlagMaxFanout, "7",
			"--" + FlagIdlePing, "12s",
		}
		flagSource, showHelp := parseCLIFlags()

		if showHelp {
			t.Error("expected showHelp to be false")
		}
		if value, found := flagSource.GetString(KeyRelays); !found || value != "wss://cli.example" {
			t.Errorf("expected relays flag, got '%s' (found: %v)", value, found)
		}
		if value, found := flagSource.GetInt(KeyMaxFanout); !found || value != 7 {
			t.Errorf("expected max fanout 7, got %d (found: %v)", value, found)
		}
		if value, found := flagSource.GetDuration(KeyIdlePing); !found || value != 12*time.Second {
			t.Errorf("expected idle ping 12s, got %s (found: %v)", value, found)
		}
	})

	t.Run("help flag", func(t *testing.T) {
		flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ExitOnError)

		os.Args = []string{"poold", "--" + FlagHelp}
		_, showHelp := parseCLIFlags()

		if !showHelp {
			t.Error("expected showHelp to be true")
		}
	})
}
