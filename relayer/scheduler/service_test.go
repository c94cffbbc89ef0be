package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/keep-network/tbtc-relayer/relayer/chains"
	mockchain "github.com/keep-network/tbtc-relayer/relayer/chains/testing"
	"github.com/keep-network/tbtc-relayer/relayer/cleanup"
	dbtest "github.com/keep-network/tbtc-relayer/relayer/db/testing"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/scheduler"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/params"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

// recordingHandler traces the order of sweep steps across a tick.
type recordingHandler struct {
	mockchain.MockHandler
	steps *[]string
}

func (r *recordingHandler) ProcessWormholeBridging(_ context.Context) error {
	*r.steps = append(*r.steps, r.Name()+":bridging")
	return nil
}

func (r *recordingHandler) ProcessFinalizeDeposits(_ context.Context) error {
	*r.steps = append(*r.steps, r.Name()+":finalize")
	return nil
}

func (r *recordingHandler) ProcessInitializeDeposits(_ context.Context) error {
	*r.steps = append(*r.steps, r.Name()+":initialize")
	return nil
}

func TestProcessTick_StepOrder(t *testing.T) {
	var steps []string
	registry := chains.NewRegistry()
	first := &recordingHandler{steps: &steps}
	first.ChainName = "ChainA"
	second := &recordingHandler{steps: &steps}
	second.ChainName = "ChainB"
	require.NoError(t, registry.Register(first))
	require.NoError(t, registry.Register(second))

	service := scheduler.NewService(context.Background(), &scheduler.Config{
		Registry: registry,
		Cleanup:  cleanup.NewEngine(dbtest.SetupDB(t), params.DefaultRelayerConfig()),
		Relayer:  params.DefaultRelayerConfig(),
	})
	service.ProcessTick()

	assert.DeepEqual(t, []string{
		"ChainA:bridging", "ChainA:finalize", "ChainA:initialize",
		"ChainB:bridging", "ChainB:finalize", "ChainB:initialize",
	}, steps)
}

func TestProcessTick_AdvancesDeposits(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)
	handler := &mockchain.MockHandler{
		ChainName:        "MockEVM",
		DB:               db,
		Lifecycle:        manager,
		InitializeTxHash: "0xaa",
		FinalizeTxHash:   "0xbb",
	}
	registry := chains.NewRegistry()
	require.NoError(t, registry.Register(handler))

	now := types.NowMillisPtr()
	require.NoError(t, db.CreateDeposit(ctx, &types.Deposit{
		ID: "1", ChainName: "MockEVM", Status: types.StatusQueued,
		Dates: types.DepositDates{CreatedAt: now},
	}))

	service := scheduler.NewService(ctx, &scheduler.Config{
		Registry: registry,
		Cleanup:  cleanup.NewEngine(db, params.DefaultRelayerConfig()),
		Relayer:  params.DefaultRelayerConfig(),
	})

	// Finalize runs before initialize within a tick, so a fresh record takes
	// two ticks to reach FINALIZED.
	service.ProcessTick()
	stored, err := db.Deposit(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInitialized, stored.Status)

	service.ProcessTick()
	stored, err = db.Deposit(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinalized, stored.Status)
}

func TestPastDepositsTick_SkipsUnknownChainHead(t *testing.T) {
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)
	handler := &mockchain.MockHandler{ChainName: "MockEVM", DB: db, Lifecycle: manager}
	handler.EnablePastDepositCheck(true)
	registry := chains.NewRegistry()
	require.NoError(t, registry.Register(handler))

	cfg := params.DefaultRelayerConfig()
	service := scheduler.NewService(context.Background(), &scheduler.Config{
		Registry: registry,
		Cleanup:  cleanup.NewEngine(db, cfg),
		Relayer:  cfg,
	})

	service.PastDepositsTick()
	assert.Equal(t, 0, len(handler.PastChecks()))

	handler.LatestBlockValue = 12345
	service.PastDepositsTick()
	checks := handler.PastChecks()
	require.Equal(t, 1, len(checks))
	assert.Equal(t, int64(12345), checks[0].LatestBlock)
	assert.Equal(t, 60*time.Minute, checks[0].PastTime)
}

func TestCleanupTick_RemovesExpiredRecords(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	registry := chains.NewRegistry()
	cfg := params.DefaultRelayerConfig()

	old := types.EpochMillis(time.Now().Add(-52 * time.Hour))
	require.NoError(t, db.CreateDeposit(ctx, &types.Deposit{
		ID: "1", ChainName: "MockEVM", Status: types.StatusQueued,
		Dates: types.DepositDates{CreatedAt: &old},
	}))

	service := scheduler.NewService(ctx, &scheduler.Config{
		Registry: registry,
		Cleanup:  cleanup.NewEngine(db, cfg),
		Relayer:  cfg,
	})
	service.CleanupTick()

	stored, err := db.Deposit(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, (*types.Deposit)(nil), stored)
}
