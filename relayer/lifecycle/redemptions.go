package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/relayer/types"
)

// CreateRedemption persists a new PENDING redemption from an L2
// RedemptionRequested event.
func (m *Manager) CreateRedemption(ctx context.Context, chainName string, event types.RedemptionRequestedEvent) (*types.Redemption, error) {
	now := types.NowMillisPtr()
	redemption := &types.Redemption{
		ID:        types.RedemptionID(chainName, event.L2TransactionHash),
		ChainName: chainName,
		Event:     event,
		Status:    types.RedemptionPending,
		Dates:     types.RedemptionDates{CreatedAt: now, LastActivityAt: now},
		Logs:      []string{fmt.Sprintf("Redemption requested in %s", event.L2TransactionHash)},
	}
	if err := m.db.CreateRedemption(ctx, redemption); err != nil {
		return nil, err
	}
	return redemption, nil
}

// UpdateToVAAFetched advances a PENDING redemption once its VAA has been
// fetched and verified end-to-end.
func (m *Manager) UpdateToVAAFetched(ctx context.Context, redemption *types.Redemption, vaaBytes []byte, errMsg string) error {
	if len(vaaBytes) == 0 {
		return m.recordRedemptionError(ctx, redemption, errMsg)
	}
	if redemption.Status != types.RedemptionPending {
		m.logIgnoredRedemptionTransition(redemption, types.RedemptionVAAFetched)
		return nil
	}
	now := types.NowMillisPtr()
	redemption.Status = types.RedemptionVAAFetched
	redemption.VAABytes = vaaBytes
	redemption.VAAStatus = "verified"
	redemption.Dates.VAAFetchedAt = now
	redemption.Dates.LastActivityAt = now
	redemption.Error = ""
	redemption.Logs = append(redemption.Logs, "VAA fetched and verified")
	return m.db.UpdateRedemption(ctx, redemption)
}

// UpdateToCompleted marks a VAA_FETCHED redemption terminal after the L1
// submission confirmed.
func (m *Manager) UpdateToCompleted(ctx context.Context, redemption *types.Redemption, l1TxHash, errMsg string) error {
	if l1TxHash == "" {
		return m.recordRedemptionError(ctx, redemption, errMsg)
	}
	if redemption.Status != types.RedemptionVAAFetched {
		m.logIgnoredRedemptionTransition(redemption, types.RedemptionCompleted)
		return nil
	}
	now := types.NowMillisPtr()
	redemption.Status = types.RedemptionCompleted
	redemption.L1SubmissionTxHash = l1TxHash
	redemption.Dates.L1SubmittedAt = now
	redemption.Dates.CompletedAt = now
	redemption.Dates.LastActivityAt = now
	redemption.Error = ""
	redemption.Logs = append(redemption.Logs, fmt.Sprintf("Completed on L1 in %s", l1TxHash))
	return m.db.UpdateRedemption(ctx, redemption)
}

// MarkRedemptionFailed moves a redemption to one of the terminal failure
// branches (VAA_FAILED or FAILED) after the respective retry budget is
// exhausted.
func (m *Manager) MarkRedemptionFailed(ctx context.Context, redemption *types.Redemption, status types.RedemptionStatus, reason string) error {
	if status != types.RedemptionVAAFailed && status != types.RedemptionFailed {
		return nil
	}
	now := types.NowMillisPtr()
	redemption.Status = status
	redemption.Error = reason
	redemption.Dates.LastActivityAt = now
	redemption.Logs = append(redemption.Logs, fmt.Sprintf("Marked %s: %s", status, reason))
	if err := m.db.UpdateRedemption(ctx, redemption); err != nil {
		return err
	}
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditError,
		DepositID: redemption.ID,
		ChainName: redemption.ChainName,
		Data:      map[string]interface{}{"status": status.String(), "reason": reason},
		ErrorCode: status.String(),
	})
	return nil
}

// recordRedemptionError is the shared retryable failure path. The error is
// surfaced to operators through the audit journal since redemptions retry
// indefinitely by default.
func (m *Manager) recordRedemptionError(ctx context.Context, redemption *types.Redemption, errMsg string) error {
	redemption.Error = errMsg
	redemption.Dates.LastActivityAt = types.NowMillisPtr()
	redemption.Logs = append(redemption.Logs, fmt.Sprintf("%s: %s", time.Now().UTC().Format(time.RFC3339), errMsg))
	if err := m.db.UpdateRedemption(ctx, redemption); err != nil {
		return err
	}
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditError,
		DepositID: redemption.ID,
		ChainName: redemption.ChainName,
		Data:      map[string]interface{}{"error": errMsg},
	})
	return nil
}

func (m *Manager) logIgnoredRedemptionTransition(redemption *types.Redemption, to types.RedemptionStatus) {
	log.WithFields(logrus.Fields{
		"redemptionId": redemption.ID,
		"chainName":    redemption.ChainName,
		"from":         redemption.Status.String(),
		"to":           to.String(),
	}).Debug("Ignoring transition from disallowed status")
}
