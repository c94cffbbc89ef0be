// Package btc contains small Bitcoin-side helpers: hex field validation for
// reveal payloads and human-readable address rendering for audit data.
package btc

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// IsHexBytes reports whether s is a 0x-prefixed even-length hex string.
// byteLen > 0 additionally pins the decoded length.
func IsHexBytes(s string, byteLen int) bool {
	if !strings.HasPrefix(s, "0x") {
		return false
	}
	raw, err := hex.DecodeString(s[2:])
	if err != nil {
		return false
	}
	if byteLen > 0 && len(raw) != byteLen {
		return false
	}
	return true
}

// IsNumericString reports whether s is a non-empty decimal string.
func IsNumericString(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FundingTransactionHash computes the Bitcoin TXID of a funding transaction
// from its serialized parts, rendered in the conventional byte-reversed
// display order with a 0x prefix.
func FundingTransactionHash(version, inputVector, outputVector, locktime string) (string, error) {
	raw := make([]byte, 0, 256)
	for _, part := range []struct {
		name  string
		value string
	}{
		{"version", version},
		{"inputVector", inputVector},
		{"outputVector", outputVector},
		{"locktime", locktime},
	} {
		if !IsHexBytes(part.value, 0) {
			return "", errors.Errorf("funding tx %s must be 0x-prefixed hex", part.name)
		}
		decoded, err := hex.DecodeString(part.value[2:])
		if err != nil {
			return "", errors.Wrapf(err, "could not decode funding tx %s", part.name)
		}
		raw = append(raw, decoded...)
	}
	digest := chainhash.DoubleHashB(raw)
	for i, j := 0, len(digest)-1; i < j; i, j = i+1, j-1 {
		digest[i], digest[j] = digest[j], digest[i]
	}
	return "0x" + hex.EncodeToString(digest), nil
}

// P2WPKHAddress renders a 20-byte public key hash as a bech32 P2WPKH
// address. Used for operator-facing audit data only; consensus code never
// consumes the result.
func P2WPKHAddress(pubKeyHash string, params *chaincfg.Params) (string, error) {
	if !IsHexBytes(pubKeyHash, 20) {
		return "", errors.New("public key hash must be 20 bytes of 0x-prefixed hex")
	}
	raw, err := hex.DecodeString(pubKeyHash[2:])
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(raw, params)
	if err != nil {
		return "", errors.Wrap(err, "could not build P2WPKH address")
	}
	return addr.EncodeAddress(), nil
}
