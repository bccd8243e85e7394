package protocol

import "testing"

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want RelayURL
	}{
		{"wss://relay.damus.io", "wss://relay.damus.io/"},
		{"WSS://Relay.Damus.IO/", "wss://relay.damus.io/"},
		{"wss://relay.damus.io:443", "wss://relay.damus.io/"},
		{"ws://localhost:80/nostr", "ws://localhost/nostr"},
		{"ws://localhost:8080", "ws://localhost:8080/"},
		{"  wss://nos.lol  ", "wss://nos.lol/"},
		{"wss://relay.example.com/path#frag", "wss://relay.example.com/path"},
	}

	for _, tc := range cases {
		got, err := NormalizeURL(tc.in)
		if err != nil {
			t.Fatalf("NormalizeURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}

		// Normalizing a normalized URL must be a no-op.
		again, err := NormalizeURL(string(got))
		if err != nil {
			t.Fatalf("re-normalize %q: %v", got, err)
		}
		if again != got {
			t.Fatalf("not idempotent: %q -> %q", got, again)
		}
	}
}

func TestNormalizeURLRejects(t *testing.T) {
	for _, in := range []string{
		"https://relay.damus.io",
		"relay.damus.io",
		"wss://",
		"",
	} {
		if _, err := NormalizeURL(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}
