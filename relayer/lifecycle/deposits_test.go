package lifecycle_test

import (
	"context"
	"testing"

	dbtest "github.com/keep-network/tbtc-relayer/relayer/db/testing"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

func queuedDeposit(id string) *types.Deposit {
	now := types.NowMillisPtr()
	return &types.Deposit{
		ID:            id,
		ChainName:     "MockEVM",
		FundingTxHash: "0x0102030405060708091011121314151617181920212223242526272829303132",
		OutputIndex:   0,
		Status:        types.StatusQueued,
		Dates:         types.DepositDates{CreatedAt: now, LastActivityAt: now},
	}
}

func TestManager_FullTransitionChain(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)

	deposit := queuedDeposit("100")
	require.NoError(t, db.CreateDeposit(ctx, deposit))

	require.NoError(t, manager.UpdateToInitialized(ctx, deposit, "0x01", ""))
	assert.Equal(t, types.StatusInitialized, deposit.Status)
	require.NotNil(t, deposit.Dates.InitializationAt)

	require.NoError(t, manager.UpdateToFinalized(ctx, deposit, "0x02", ""))
	assert.Equal(t, types.StatusFinalized, deposit.Status)
	require.NotNil(t, deposit.Dates.FinalizationAt)

	require.NoError(t, manager.UpdateToAwaitingWormholeVAA(ctx, deposit, "0x03", "42", ""))
	assert.Equal(t, types.StatusAwaitingWormholeVAA, deposit.Status)
	assert.Equal(t, "42", deposit.WormholeInfo.TransferSequence)
	require.NotNil(t, deposit.Dates.AwaitingWormholeVAAMessageSince)

	require.NoError(t, manager.UpdateToBridged(ctx, deposit, "0x04", ""))
	assert.Equal(t, types.StatusBridged, deposit.Status)
	assert.Equal(t, true, deposit.WormholeInfo.BridgingAttempted)
	require.NotNil(t, deposit.Dates.BridgedAt)

	stored, err := db.Deposit(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, types.StatusBridged, stored.Status)
	assert.Equal(t, "0x04", stored.Hashes.Solana.BridgeTxHash)
}

func TestManager_TransitionsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)

	deposit := queuedDeposit("200")
	require.NoError(t, db.CreateDeposit(ctx, deposit))

	// Finalizing a QUEUED record is a no-op, not an error.
	require.NoError(t, manager.UpdateToFinalized(ctx, deposit, "0x02", ""))
	assert.Equal(t, types.StatusQueued, deposit.Status)
	assert.Equal(t, "", deposit.Hashes.Eth.FinalizeTxHash)

	require.NoError(t, manager.UpdateToInitialized(ctx, deposit, "0x01", ""))
	firstInitAt := deposit.Dates.InitializationAt

	// A duplicate initialization does not re-run the transition.
	require.NoError(t, manager.UpdateToInitialized(ctx, deposit, "0xff", ""))
	assert.Equal(t, types.StatusInitialized, deposit.Status)
	assert.Equal(t, "0x01", deposit.Hashes.Eth.InitializeTxHash)
	assert.Equal(t, firstInitAt, deposit.Dates.InitializationAt)

	events, err := db.AuditEvents(ctx, &types.AuditFilter{DepositID: "200", EventType: types.AuditDepositInitialized})
	require.NoError(t, err)
	assert.Equal(t, 1, len(events))
}

func TestManager_EmptyTxHashRecordsErrorWithoutTransition(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)

	deposit := queuedDeposit("300")
	require.NoError(t, db.CreateDeposit(ctx, deposit))

	require.NoError(t, manager.UpdateToInitialized(ctx, deposit, "", "gas estimation failed"))
	stored, err := db.Deposit(ctx, "300")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, stored.Status)
	assert.Equal(t, "gas estimation failed", stored.Error)

	// The error clears on the next successful transition.
	require.NoError(t, manager.UpdateToInitialized(ctx, stored, "0x01", ""))
	stored, err = db.Deposit(ctx, "300")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitialized, stored.Status)
	assert.Equal(t, "", stored.Error)
}
