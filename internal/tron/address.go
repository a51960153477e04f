package tron

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// addressPrefix is the version byte TRON mainnet addresses carry in both
// their hex and base58 forms.
const addressPrefix = 0x41

// HexToBase58 converts a node-format hex address (41 + 20 payload bytes)
// into the base58check form users and config files carry.
func HexToBase58(hexAddr string) (string, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(hexAddr), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decode hex address %q: %w", hexAddr, err)
	}
	if len(decoded) != 21 || decoded[0] != addressPrefix {
		return "", fmt.Errorf("unexpected address payload %q", hexAddr)
	}
	return base58.CheckEncode(decoded[1:], addressPrefix), nil
}

// Base58ToHex converts a base58check address back into node hex form.
func Base58ToHex(addr string) (string, error) {
	payload, version, err := base58.CheckDecode(strings.TrimSpace(addr))
	if err != nil {
		return "", fmt.Errorf("decode base58 address %q: %w", addr, err)
	}
	if version != addressPrefix || len(payload) != 20 {
		return "", fmt.Errorf("unexpected address payload %q", addr)
	}
	return hex.EncodeToString(append([]byte{addressPrefix}, payload...)), nil
}
