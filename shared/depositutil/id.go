// Package depositutil contains useful helpers for constructing deterministic
// tBTC deposit identifiers from Bitcoin funding references.
package depositutil

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// MaxFundingOutputIndex is the largest output index encodable as a uint32.
const MaxFundingOutputIndex = int64(0xFFFFFFFF)

var (
	// ErrMalformedFundingTxHash is returned when the funding tx hash is not
	// a 0x-prefixed 32-byte hex string.
	ErrMalformedFundingTxHash = errors.New("funding tx hash must be a 66-character 0x-prefixed hex string")
	// ErrFundingOutputIndexRange is returned for indexes outside [0, 2^32).
	ErrFundingOutputIndexRange = errors.New("funding output index out of uint32 range")
)

// DepositID derives the canonical deposit identifier for EVM destination
// chains: keccak256(reverse(fundingTxHash) || uint32_be(index)), rendered as
// the decimal string of the 256-bit digest.
func DepositID(fundingTxHash string, fundingOutputIndex int64) (string, error) {
	return deriveID(fundingTxHash, fundingOutputIndex, true)
}

// DepositIDStarkNet derives the deposit identifier for StarkNet, which hashes
// the funding tx hash without the byte reversal applied on EVM targets.
func DepositIDStarkNet(fundingTxHash string, fundingOutputIndex int64) (string, error) {
	return deriveID(fundingTxHash, fundingOutputIndex, false)
}

func deriveID(fundingTxHash string, fundingOutputIndex int64, reverse bool) (string, error) {
	txHash, err := decodeTxHash(fundingTxHash)
	if err != nil {
		return "", err
	}
	if fundingOutputIndex < 0 || fundingOutputIndex > MaxFundingOutputIndex {
		return "", ErrFundingOutputIndexRange
	}
	if reverse {
		reverseInPlace(txHash)
	}
	preimage := make([]byte, 0, 36)
	preimage = append(preimage, txHash...)
	preimage = binary.BigEndian.AppendUint32(preimage, uint32(fundingOutputIndex))
	digest := crypto.Keccak256(preimage)
	return new(big.Int).SetBytes(digest).String(), nil
}

func decodeTxHash(fundingTxHash string) ([]byte, error) {
	if len(fundingTxHash) != 66 || !strings.HasPrefix(fundingTxHash, "0x") {
		return nil, ErrMalformedFundingTxHash
	}
	raw, err := hex.DecodeString(fundingTxHash[2:])
	if err != nil {
		return nil, ErrMalformedFundingTxHash
	}
	return raw, nil
}

func reverseInPlace(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
