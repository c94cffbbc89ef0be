package types_test

import (
	"encoding/json"
	"testing"

	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

func TestDepositStatus_OrderMatchesLifecycle(t *testing.T) {
	order := []types.DepositStatus{
		types.StatusQueued,
		types.StatusInitialized,
		types.StatusFinalized,
		types.StatusAwaitingWormholeVAA,
		types.StatusBridged,
	}
	for i := 1; i < len(order); i++ {
		assert.Equal(t, true, order[i-1] < order[i], "%s must precede %s", order[i-1], order[i])
	}
}

func TestDepositStatus_JSONByName(t *testing.T) {
	raw, err := json.Marshal(types.StatusAwaitingWormholeVAA)
	require.NoError(t, err)
	assert.Equal(t, `"AWAITING_WORMHOLE_VAA"`, string(raw))

	var status types.DepositStatus
	require.NoError(t, json.Unmarshal([]byte(`"FINALIZED"`), &status))
	assert.Equal(t, types.StatusFinalized, status)

	err = json.Unmarshal([]byte(`"NOT_A_STATUS"`), &status)
	require.ErrorContains(t, "unknown deposit status", err)

	_, err = json.Marshal(types.DepositStatus(99))
	require.ErrorContains(t, "unknown deposit status", err)
}

func TestRedemptionStatus_JSONByName(t *testing.T) {
	raw, err := json.Marshal(types.RedemptionVAAFetched)
	require.NoError(t, err)
	assert.Equal(t, `"VAA_FETCHED"`, string(raw))

	var status types.RedemptionStatus
	require.NoError(t, json.Unmarshal([]byte(`"VAA_FAILED"`), &status))
	assert.Equal(t, types.RedemptionVAAFailed, status)

	err = json.Unmarshal([]byte(`"NOT_A_STATUS"`), &status)
	require.ErrorContains(t, "unknown redemption status", err)
}
