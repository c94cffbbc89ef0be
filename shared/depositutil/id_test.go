package depositutil

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

const fundingTxHash = "0x5f40bd9f3e1c78babbb5ba4fa5a2a519852d1a5ac324b1a9ab0b0b2a10c7e8a4"

func TestDepositID_Deterministic(t *testing.T) {
	first, err := DepositID(fundingTxHash, 0)
	require.NoError(t, err)
	second, err := DepositID(fundingTxHash, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDepositID_MatchesKeccakOverReversedHash(t *testing.T) {
	raw, err := hex.DecodeString(fundingTxHash[2:])
	require.NoError(t, err)
	for i, j := 0, len(raw)-1; i < j; i, j = i+1, j-1 {
		raw[i], raw[j] = raw[j], raw[i]
	}
	preimage := append(raw, 0, 0, 0, 7)
	want := new(big.Int).SetBytes(crypto.Keccak256(preimage)).String()

	got, err := DepositID(fundingTxHash, 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDepositIDStarkNet_SkipsByteReversal(t *testing.T) {
	raw, err := hex.DecodeString(fundingTxHash[2:])
	require.NoError(t, err)
	preimage := make([]byte, 0, 36)
	preimage = append(preimage, raw...)
	preimage = binary.BigEndian.AppendUint32(preimage, 7)
	want := new(big.Int).SetBytes(crypto.Keccak256(preimage)).String()

	got, err := DepositIDStarkNet(fundingTxHash, 7)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	evm, err := DepositID(fundingTxHash, 7)
	require.NoError(t, err)
	assert.NotEqual(t, evm, got)
}

func TestDepositID_OutputIndexBounds(t *testing.T) {
	_, err := DepositID(fundingTxHash, 0)
	assert.NoError(t, err)
	_, err = DepositID(fundingTxHash, MaxFundingOutputIndex)
	assert.NoError(t, err)
	_, err = DepositID(fundingTxHash, -1)
	assert.ErrorIs(t, ErrFundingOutputIndexRange, err)
	_, err = DepositID(fundingTxHash, MaxFundingOutputIndex+1)
	assert.ErrorIs(t, ErrFundingOutputIndexRange, err)
}

func TestDepositID_MalformedTxHash(t *testing.T) {
	cases := []string{
		"",
		"5f40bd9f3e1c78babbb5ba4fa5a2a519852d1a5ac324b1a9ab0b0b2a10c7e8a4",
		"0x5f40",
		"0xzz40bd9f3e1c78babbb5ba4fa5a2a519852d1a5ac324b1a9ab0b0b2a10c7e8a4",
	}
	for _, tc := range cases {
		_, err := DepositID(tc, 0)
		assert.ErrorIs(t, ErrMalformedFundingTxHash, err, "input %q", tc)
	}
}
