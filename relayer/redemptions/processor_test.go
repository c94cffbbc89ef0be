package redemptions_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"

	dbtest "github.com/keep-network/tbtc-relayer/relayer/db/testing"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/redemptions"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/relayer/vaa"
	"github.com/keep-network/tbtc-relayer/shared/params"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

type fakeVerifier struct {
	result  *vaa.Result
	failure *vaa.Failure
	calls   int
}

func (f *fakeVerifier) FetchAndVerifyVAAForL2Event(
	_ context.Context, _ string, _ sdkvaa.ChainID, _ string, _ sdkvaa.ChainID,
) (*vaa.Result, *vaa.Failure) {
	f.calls++
	return f.result, f.failure
}

type fakeSubmitter struct {
	txHash string
	err    error
}

func (f *fakeSubmitter) SubmitRedemption(_ context.Context, _ *types.Redemption) (string, error) {
	return f.txHash, f.err
}

var testChains = map[string]redemptions.ChainParams{
	"ArbitrumOne": {
		EmitterChainID:  sdkvaa.ChainIDArbitrum,
		EmitterAddress:  "0xdead",
		TargetL1ChainID: sdkvaa.ChainIDEthereum,
	},
}

func pendingRedemption(t *testing.T, manager *lifecycle.Manager) *types.Redemption {
	redemption, err := manager.CreateRedemption(context.Background(), "ArbitrumOne", types.RedemptionRequestedEvent{
		WalletPublicKeyHash: "0x8db50eb52063ea9d98b3eac91489a90f738986f6",
		Amount:              "100000000",
		L2TransactionHash:   "0xl2tx",
	})
	require.NoError(t, err)
	return redemption
}

func TestProcessor_HappyPath(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)
	verifier := &fakeVerifier{result: &vaa.Result{VAABytes: []byte{1, 2, 3}}}
	submitter := &fakeSubmitter{txHash: "0xl1tx"}
	processor := redemptions.NewProcessor(db, manager, verifier, submitter, testChains, params.DefaultRelayerConfig())

	redemption := pendingRedemption(t, manager)
	require.NoError(t, processor.Run(ctx))

	stored, err := db.Redemption(ctx, redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RedemptionCompleted, stored.Status)
	assert.Equal(t, "0xl1tx", stored.L1SubmissionTxHash)
	assert.DeepEqual(t, []byte{1, 2, 3}, stored.VAABytes)
	require.NotNil(t, stored.Dates.VAAFetchedAt)
	require.NotNil(t, stored.Dates.CompletedAt)
}

func TestProcessor_RetryableVAAFailureKeepsPending(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)
	verifier := &fakeVerifier{failure: &vaa.Failure{Class: vaa.FailureVAANotFound, Err: errors.New("not yet signed")}}
	processor := redemptions.NewProcessor(db, manager, verifier, &fakeSubmitter{}, testChains, params.DefaultRelayerConfig())

	redemption := pendingRedemption(t, manager)
	require.NoError(t, processor.Run(ctx))

	stored, err := db.Redemption(ctx, redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RedemptionPending, stored.Status)
	assert.Equal(t, 1, stored.VAAFetchAttempts)

	// The failure surfaces to operators through the audit journal.
	events, err := db.AuditEvents(ctx, &types.AuditFilter{EventType: types.AuditError})
	require.NoError(t, err)
	require.Equal(t, 1, len(events))
}

func TestProcessor_AttemptBudgetMarksVAAFailed(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)
	cfg := params.DefaultRelayerConfig()
	cfg.VAAMaxAttemptsBeforeFailed = 2
	verifier := &fakeVerifier{failure: &vaa.Failure{Class: vaa.FailureVAANotFound, Err: errors.New("not yet signed")}}
	processor := redemptions.NewProcessor(db, manager, verifier, &fakeSubmitter{}, testChains, cfg)

	redemption := pendingRedemption(t, manager)
	require.NoError(t, processor.Run(ctx))
	require.NoError(t, processor.Run(ctx))

	stored, err := db.Redemption(ctx, redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RedemptionVAAFailed, stored.Status)
	assert.Equal(t, 2, stored.VAAFetchAttempts)

	// Terminal records drop out of the pending sweep.
	require.NoError(t, processor.Run(ctx))
	assert.Equal(t, 2, verifier.calls)
}

func TestProcessor_SubmissionFailureRetries(t *testing.T) {
	ctx := context.Background()
	db := dbtest.SetupDB(t)
	manager := lifecycle.NewManager(db)
	verifier := &fakeVerifier{result: &vaa.Result{VAABytes: []byte{1}}}
	submitter := &fakeSubmitter{err: errors.New("nonce too low")}
	processor := redemptions.NewProcessor(db, manager, verifier, submitter, testChains, params.DefaultRelayerConfig())

	redemption := pendingRedemption(t, manager)
	require.NoError(t, processor.Run(ctx))

	stored, err := db.Redemption(ctx, redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RedemptionVAAFetched, stored.Status)
	assert.Equal(t, "nonce too low", stored.Error)

	// The endpoint recovers and the next sweep completes the record.
	submitter.err = nil
	submitter.txHash = "0xl1tx"
	require.NoError(t, processor.Run(ctx))
	stored, err = db.Redemption(ctx, redemption.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RedemptionCompleted, stored.Status)
}
