package evm

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	dbtest "github.com/keep-network/tbtc-relayer/relayer/db/testing"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/params"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

func TestPackFundingTx(t *testing.T) {
	packed, err := packFundingTx(types.FundingTransaction{
		Version:      "0x01000000",
		InputVector:  "0xdeadbeef",
		OutputVector: "0xcafe",
		Locktime:     "0x00000000",
	})
	require.NoError(t, err)
	assert.Equal(t, [4]byte{1, 0, 0, 0}, packed.Version)
	assert.DeepEqual(t, []byte{0xde, 0xad, 0xbe, 0xef}, packed.InputVector)

	_, err = packFundingTx(types.FundingTransaction{Version: "0x01"})
	require.ErrorContains(t, "malformed funding tx version", err)
}

func TestPackReveal(t *testing.T) {
	packed, err := packReveal(types.Reveal{
		FundingOutputIndex:  7,
		BlindingFactor:      "0xf9f0c90d00039523",
		WalletPublicKeyHash: "0x8db50eb52063ea9d98b3eac91489a90f738986f6",
		RefundPublicKeyHash: "0x28e081f285138ccbe389c1eb8985716230129f89",
		RefundLocktime:      "0x60bcea61",
		Vault:               "0x594cfd89700040163727828AE20B52099C58F02C",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), packed.FundingOutputIndex)
	assert.Equal(t, common.HexToAddress("0x594cfd89700040163727828AE20B52099C58F02C"), packed.Vault)
}

func TestLocktimeBytes(t *testing.T) {
	fromHex, err := locktimeBytes("0x60bcea61")
	require.NoError(t, err)
	assert.DeepEqual(t, []byte{0x60, 0xbc, 0xea, 0x61}, fromHex)

	// Decimal locktimes encode little-endian.
	fromDecimal, err := locktimeBytes("1639061828")
	require.NoError(t, err)
	assert.Equal(t, 4, len(fromDecimal))

	_, err = locktimeBytes("not-a-locktime")
	require.NotNil(t, err)
}

func TestHandleDepositInitializedLog(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	parsed, err := abi.JSON(strings.NewReader(l1BitcoinDepositorABI))
	require.NoError(t, err)
	h := &Handler{
		cfg:          &params.ChainConfig{Name: "ArbitrumOne", Family: params.ChainFamilyEVM},
		db:           db,
		manager:      lifecycle.NewManager(db),
		depositorABI: parsed,
	}

	data, err := parsed.Events["DepositInitialized"].Inputs.NonIndexed().Pack(uint32(0))
	require.NoError(t, err)
	fundingTxHash := common.HexToHash("0x0102030405060708091011121314151617181920212223242526272829303132")
	owner := common.HexToAddress("0x2Ba98D49c5f2a8e0173a8b34D3C9bbaa77cBF524")
	l := gethtypes.Log{
		Topics: []common.Hash{depositInitializedTopic, fundingTxHash, owner.Hash()},
		Data:   data,
	}

	require.NoError(t, h.handleDepositInitializedLog(ctx, l))
	deposits, err := db.DepositsByStatus(ctx, types.StatusQueued, "ArbitrumOne")
	require.NoError(t, err)
	require.Equal(t, 1, len(deposits))
	assert.Equal(t, fundingTxHash.Hex(), deposits[0].FundingTxHash)
	assert.Equal(t, owner.Hex(), deposits[0].Owner)

	// Replayed logs do not duplicate the record.
	require.NoError(t, h.handleDepositInitializedLog(ctx, l))
	deposits, err = db.DepositsByStatus(ctx, types.StatusQueued, "ArbitrumOne")
	require.NoError(t, err)
	assert.Equal(t, 1, len(deposits))
}
