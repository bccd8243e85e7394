package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvSource(t *testing.T) {
	envSource := &EnvSource{}

	t.Run("GetString", func(t *testing.T) {
		os.Setenv("TEST_STRING", "test_value")
		defer os.Unsetenv("TEST_STRING")

		value, found := envSource.GetString("TEST_STRING")
		if !found {
			t.Error("expected to find TEST_STRING")
		}
		if value != "test_value" {
			t.Errorf("expected 'test_value', got '%s'", value)
		}

		value, found = envSource.GetString("MISSING_STRING")
		if found {
			t.Error("expected not to find MISSING_STRING")
		}
		if value != "" {
			t.Errorf("expected empty string, got '%s'", value)
		}
	})

	t.Run("GetInt", func(t *testing.T) {
		os.Setenv("TEST_INT", "42")
		defer os.Unsetenv("TEST_INT")

		value, found := envSource.GetInt("TEST_INT")
		if !found {
			t.Error("expected to find TEST_INT")
		}
		if value != 42 {
			t.Errorf("expected 42, got %d", value)
		}

		os.Setenv("TEST_INVALID_INT", "not_a_number")
		defer os.Unsetenv("TEST_INVALID_INT")

		if _, found = envSource.GetInt("TEST_INVALID_INT"); found {
			t.Error("expected not to find valid int for TEST_INVALID_INT")
		}

		if _, found = envSource.GetInt("MISSING_INT"); found {
			t.Error("expected not to find MISSING_INT")
		}
	})

	t.Run("GetDuration", func(t *testing.T) {
		os.Setenv("TEST_DURATION", "250ms")
		defer os.Unsetenv("TEST_DURATION")

		value, found := envSource.GetDuration("TEST_DURATION")
		if !found {
			t.Error("expected to find TEST_DURATION")
		}
		if value != 250*time.Millisecond {
			t.Errorf("expected 250ms, got %s", value)
		}

		os.Setenv("TEST_INVALID_DURATION", "soon")
		defer os.Unsetenv("TEST_INVALID_DURATION")

		if _, found = envSource.GetDuration("TEST_INVALID_DURATION"); found {
			t.Error("expected not to find valid duration for TEST_INVALID_DURATION")
		}

		if _, found = envSource.GetDuration("MISSING_DURATION"); found {
			t.Error("expected not to find MISSING_DURATION")
		}
	})
}

func TestFlagSource(t *testing.T) {
	flagSource := NewFlagSource()

	t.Run("GetString", func(t *testing.T) {
		flagSource.Set("TEST_STRING", "flag_value")
		value, found := flagSource.GetString("TEST_STRING")
		if !found {
			t.Error("expected to find TEST_STRING")
		}
		if value != "flag_value" {
			t.Errorf("expected 'flag_value', got '%s'", value)
		}

		flagSource.Set("EMPTY_STRING", "")
		if _, found = flagSource.GetString("EMPTY_STRING"); found {
			t.Error("expected not to find empty string")
		}

		if _, found = flagSource.GetString("MISSING_STRING"); found {
			t.Error("expected not to find MISSING_STRING")
		}
	})

	t.Run("GetInt", func(t *testing.T) {
		flagSource.Set("TEST_INT", 42)
		value, found := flagSource.GetInt("TEST_INT")
		if !found {
			t.Error("expected to find TEST_INT")
		}
		if value != 42 {
			t.Errorf("expected 42, got %d", value)
		}

		flagSource.Set("WRONG_TYPE", "not_int")
		if _, found = flagSource.GetInt("WRONG_TYPE"); found {
			t.Error("expected not to find int for wrong type")
		}
	})

	t.Run("GetDuration", func(t *testing.T) {
		flagSource.Set("TEST_DURATION", 5*time.Second)
		value, found := flagSource.GetDuration("TEST_DURATION")
		if !found {
			t.Error("expected to find TEST_DURATION")
		}
		if value != 5*time.Second {
			t.Errorf("expected 5s, got %s", value)
		}

		flagSource.Set("WRONG_TYPE_DUR", 42)
		if _, found = flagSource.GetDuration("WRONG_TYPE_DUR"); found {
			t.Error("expected not to find duration for int value")
		}
	})
}

func TestFileSource(t *testing.T) {
	t.Run("empty path yields empty source", func(t *testing.T) {
		fs, err := NewFileSource("")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, found := fs.GetString(KeyRelays); found {
			t.Error("expected empty source to have no values")
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		if _, err := NewFileSource("/nonexistent/poold.yaml"); err == nil {
			t.Fatal("expected error for missing file, got nil")
		}
	})

	t.Run("reads yaml keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "poold.yaml")
		data := "relays: wss://file.example\nmax_fanout: 6\nidle_ping: 45s\n"
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("writing config file: %v", err)
		}

		fs, err := NewFileSource(path)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if value, found := fs.GetString(KeyRelays); !found || value != "wss://file.example" {
			t.Errorf("expected relays from file, got '%s' (found: %v)", value, found)
		}
		if value, found := fs.GetInt(KeyMaxFanout); !found || value != 6 {
			t.Errorf("expected max_fanout 6, got %d (found: %v)", value, found)
		}
		if value, found := fs.GetDuration(KeyIdlePing); !found || value != 45*time.Second {
			t.Errorf("expected idle_ping 45s, got %s (found: %v)", value, found)
		}
		if _, found := fs.GetInt(KeyAuthorsK); found {
			t.Error("expected unset file key not to be found")
		}
	})
}
