// Package crypto normalizes user-supplied key material. Signing lives
// outside this module; only public key forms are handled here.
package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr/nip19"
)

var ErrEmptyPubkey = errors.New("empty pubkey")

// NormalizePubkey accepts a pubkey in hex or npub form and returns the
// lowercase hex form.
func NormalizePubkey(pubkey string) (string, error) {
	if pubkey == "" {
		return "", ErrEmptyPubkey
	}

	if strings.HasPrefix(pubkey, "npub1") {
		prefix, value, err := nip19.Decode(pubkey)
		if err != nil {
			return "", fmt.Errorf("decoding npub: %w", err)
		}
		if prefix != "npub" {
			return "", fmt.Errorf("unexpected bech32 prefix %q", prefix)
		}
		return value.(string), nil
	}

	if len(pubkey) != 64 {
		return "", fmt.Errorf("pubkey must be 64 hex characters or an npub")
	}
	if _, err := hex.DecodeString(pubkey); err != nil {
		return "", fmt.Errorf("pubkey is not valid hex: %w", err)
	}
	return strings.ToLower(pubkey), nil
}
