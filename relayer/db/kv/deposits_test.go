package kv

import (
	"context"
	"testing"

	logTest "github.com/sirupsen/logrus/hooks/test"

	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

func setupStore(t testing.TB) *Store {
	s, err := NewKVStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func exampleDeposit(id, chain string, status types.DepositStatus) *types.Deposit {
	d := &types.Deposit{
		ID:            id,
		ChainName:     chain,
		FundingTxHash: "0x5f40bd9f3e1c78babbb5ba4fa5a2a519852d1a5ac324b1a9ab0b0b2a10c7e8a4",
		OutputIndex:   0,
		Owner:         "0x00000000000000000000000000000000000000aa",
		Status:        status,
		Dates:         types.DepositDates{CreatedAt: types.NowMillisPtr(), LastActivityAt: types.NowMillisPtr()},
	}
	d.Hashes.Btc.BtcTxHash = d.FundingTxHash
	return d
}

func TestStore_DepositRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	want := exampleDeposit("101", "ArbitrumOne", types.StatusQueued)
	want.Receipt = types.DepositReceipt{
		Depositor:           "0x00000000000000000000000000000000000000bb",
		BlindingFactor:      "0xf9f0c90d00039523",
		WalletPublicKeyHash: "0x8db50eb52063ea9d98b3eac91489a90f738986f6",
		RefundPublicKeyHash: "0x28e081f285138ccbe389c1eb8985716230129f89",
		RefundLocktime:      "0x60bcea61",
		ExtraData:           "0x",
	}
	want.WormholeInfo = types.WormholeInfo{TxHash: "0xabc", TransferSequence: "123", BridgingAttempted: true}
	require.NoError(t, s.CreateDeposit(ctx, want))

	got, err := s.Deposit(ctx, "101")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.DeepEqual(t, want, got)
}

func TestStore_CreateDeposit_DuplicateIsNonFatal(t *testing.T) {
	hook := logTest.NewGlobal()
	s := setupStore(t)
	ctx := context.Background()

	first := exampleDeposit("7", "Base", types.StatusQueued)
	require.NoError(t, s.CreateDeposit(ctx, first))

	second := exampleDeposit("7", "Base", types.StatusQueued)
	second.Owner = "0x00000000000000000000000000000000000000cc"
	require.NoError(t, s.CreateDeposit(ctx, second))
	require.LogsContain(t, hook, "Deposit already exists")

	got, err := s.Deposit(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, first.Owner, got.Owner, "duplicate create must not overwrite")
}

func TestStore_UpdateDeposit_AbsentFails(t *testing.T) {
	s := setupStore(t)
	err := s.UpdateDeposit(context.Background(), exampleDeposit("404", "Base", types.StatusQueued))
	assert.ErrorIs(t, ErrDepositNotFound, err)
}

func TestStore_DepositsByStatus_IndexFollowsUpdates(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	queued := exampleDeposit("1", "Base", types.StatusQueued)
	other := exampleDeposit("2", "ArbitrumOne", types.StatusQueued)
	require.NoError(t, s.CreateDeposit(ctx, queued))
	require.NoError(t, s.CreateDeposit(ctx, other))

	all, err := s.DepositsByStatus(ctx, types.StatusQueued, "")
	require.NoError(t, err)
	assert.Equal(t, 2, len(all))

	baseOnly, err := s.DepositsByStatus(ctx, types.StatusQueued, "Base")
	require.NoError(t, err)
	require.Equal(t, 1, len(baseOnly))
	assert.Equal(t, "1", baseOnly[0].ID)

	queued.Status = types.StatusInitialized
	require.NoError(t, s.UpdateDeposit(ctx, queued))

	stillQueued, err := s.DepositsByStatus(ctx, types.StatusQueued, "")
	require.NoError(t, err)
	require.Equal(t, 1, len(stillQueued))
	assert.Equal(t, "2", stillQueued[0].ID)

	initialized, err := s.DepositsByStatus(ctx, types.StatusInitialized, "")
	require.NoError(t, err)
	require.Equal(t, 1, len(initialized))
	assert.Equal(t, "1", initialized[0].ID)
}

func TestStore_DeleteDeposit(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateDeposit(ctx, exampleDeposit("9", "Base", types.StatusBridged)))
	require.NoError(t, s.DeleteDeposit(ctx, "9"))

	got, err := s.Deposit(ctx, "9")
	require.NoError(t, err)
	if got != nil {
		t.Fatal("deposit should be gone")
	}
	bridged, err := s.DepositsByStatus(ctx, types.StatusBridged, "")
	require.NoError(t, err)
	assert.Equal(t, 0, len(bridged))

	// Deleting an absent record is a no-op.
	require.NoError(t, s.DeleteDeposit(ctx, "9"))
}
