// Package lifecycle implements the deposit and redemption state machines and
// the engine-facing lifecycle API. Records advance forward only; every
// successful transition is persisted first and audited second, so a failed
// audit write never reverts a durable transition.
package lifecycle

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/types"
)

var log = logrus.WithField("prefix", "lifecycle")

// Manager owns all record mutations. Handlers and the scheduler never write
// records directly.
type Manager struct {
	db iface.Database
}

// NewManager creates a lifecycle manager over the given database.
func NewManager(db iface.Database) *Manager {
	return &Manager{db: db}
}

// CreateDeposit persists a fresh QUEUED record and journals its creation.
// Chain listeners and back-scans use this for reveals the HTTP ingress never
// saw; duplicate creates are absorbed by the store.
func (m *Manager) CreateDeposit(ctx context.Context, deposit *types.Deposit) error {
	if err := m.db.CreateDeposit(ctx, deposit); err != nil {
		return err
	}
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditDepositCreated,
		DepositID: deposit.ID,
		ChainName: deposit.ChainName,
		Data: map[string]interface{}{
			"fundingTxHash":      deposit.FundingTxHash,
			"fundingOutputIndex": deposit.OutputIndex,
			"owner":              deposit.Owner,
		},
	})
	return nil
}

// UpdateToInitialized advances a QUEUED deposit to INITIALIZED, recording the
// L1 initialization tx hash. With an empty txHash the call is the failure
// path: the status is unchanged and only the error field is recorded.
func (m *Manager) UpdateToInitialized(ctx context.Context, deposit *types.Deposit, txHash, errMsg string) error {
	if txHash == "" {
		return m.recordDepositError(ctx, deposit, errMsg)
	}
	if deposit.Status != types.StatusQueued {
		m.logIgnoredTransition(deposit, types.StatusInitialized)
		return nil
	}
	now := types.NowMillisPtr()
	from := deposit.Status
	deposit.Status = types.StatusInitialized
	deposit.Hashes.Eth.InitializeTxHash = txHash
	deposit.Dates.InitializationAt = now
	deposit.Dates.LastActivityAt = now
	deposit.Error = ""
	if err := m.db.UpdateDeposit(ctx, deposit); err != nil {
		return err
	}
	m.auditStatusChange(ctx, deposit, from, deposit.Status)
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditDepositInitialized,
		DepositID: deposit.ID,
		ChainName: deposit.ChainName,
		Data:      map[string]interface{}{"initializeTxHash": txHash},
	})
	return nil
}

// UpdateToFinalized advances an INITIALIZED deposit to FINALIZED.
func (m *Manager) UpdateToFinalized(ctx context.Context, deposit *types.Deposit, txHash, errMsg string) error {
	if txHash == "" {
		return m.recordDepositError(ctx, deposit, errMsg)
	}
	if deposit.Status != types.StatusInitialized {
		m.logIgnoredTransition(deposit, types.StatusFinalized)
		return nil
	}
	now := types.NowMillisPtr()
	from := deposit.Status
	deposit.Status = types.StatusFinalized
	deposit.Hashes.Eth.FinalizeTxHash = txHash
	deposit.Dates.FinalizationAt = now
	deposit.Dates.LastActivityAt = now
	deposit.Error = ""
	if err := m.db.UpdateDeposit(ctx, deposit); err != nil {
		return err
	}
	m.auditStatusChange(ctx, deposit, from, deposit.Status)
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditDepositFinalized,
		DepositID: deposit.ID,
		ChainName: deposit.ChainName,
		Data:      map[string]interface{}{"finalizeTxHash": txHash},
	})
	return nil
}

// UpdateToAwaitingWormholeVAA advances a FINALIZED deposit to
// AWAITING_WORMHOLE_VAA once the L1 finalization produced a Wormhole transfer
// with a known sequence.
func (m *Manager) UpdateToAwaitingWormholeVAA(ctx context.Context, deposit *types.Deposit, wormholeTxHash, transferSequence, errMsg string) error {
	if wormholeTxHash == "" || transferSequence == "" {
		return m.recordDepositError(ctx, deposit, errMsg)
	}
	if deposit.Status != types.StatusFinalized {
		m.logIgnoredTransition(deposit, types.StatusAwaitingWormholeVAA)
		return nil
	}
	now := types.NowMillisPtr()
	from := deposit.Status
	deposit.Status = types.StatusAwaitingWormholeVAA
	deposit.WormholeInfo.TxHash = wormholeTxHash
	deposit.WormholeInfo.TransferSequence = transferSequence
	deposit.Dates.AwaitingWormholeVAAMessageSince = now
	deposit.Dates.LastActivityAt = now
	deposit.Error = ""
	if err := m.db.UpdateDeposit(ctx, deposit); err != nil {
		return err
	}
	m.auditStatusChange(ctx, deposit, from, deposit.Status)
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditDepositAwaitingVAA,
		DepositID: deposit.ID,
		ChainName: deposit.ChainName,
		Data: map[string]interface{}{
			"wormholeTxHash":   wormholeTxHash,
			"transferSequence": transferSequence,
		},
	})
	return nil
}

// UpdateToBridged advances an AWAITING_WORMHOLE_VAA deposit to the terminal
// BRIDGED status.
func (m *Manager) UpdateToBridged(ctx context.Context, deposit *types.Deposit, bridgeTxHash, errMsg string) error {
	if bridgeTxHash == "" {
		return m.recordDepositError(ctx, deposit, errMsg)
	}
	if deposit.Status != types.StatusAwaitingWormholeVAA {
		m.logIgnoredTransition(deposit, types.StatusBridged)
		return nil
	}
	now := types.NowMillisPtr()
	from := deposit.Status
	deposit.Status = types.StatusBridged
	deposit.Hashes.Solana.BridgeTxHash = bridgeTxHash
	deposit.WormholeInfo.BridgingAttempted = true
	deposit.Dates.BridgedAt = now
	deposit.Dates.LastActivityAt = now
	deposit.Error = ""
	if err := m.db.UpdateDeposit(ctx, deposit); err != nil {
		return err
	}
	m.auditStatusChange(ctx, deposit, from, deposit.Status)
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditDepositBridged,
		DepositID: deposit.ID,
		ChainName: deposit.ChainName,
		Data:      map[string]interface{}{"bridgeTxHash": bridgeTxHash},
	})
	return nil
}

// recordDepositError is the shared failure path of all updaters: the status
// stays put, the error message and activity timestamp are refreshed, and the
// next sweep retries.
func (m *Manager) recordDepositError(ctx context.Context, deposit *types.Deposit, errMsg string) error {
	deposit.Error = errMsg
	deposit.Dates.LastActivityAt = types.NowMillisPtr()
	return m.db.UpdateDeposit(ctx, deposit)
}

func (m *Manager) auditStatusChange(ctx context.Context, deposit *types.Deposit, from, to types.DepositStatus) {
	m.audit(ctx, &types.AuditEvent{
		EventType: types.AuditStatusChange,
		DepositID: deposit.ID,
		ChainName: deposit.ChainName,
		Data: map[string]interface{}{
			"from": from.String(),
			"to":   to.String(),
		},
	})
}

// audit appends one journal entry. Audit failures are never fatal; the
// transition is already durable.
func (m *Manager) audit(ctx context.Context, event *types.AuditEvent) {
	if err := m.db.SaveAuditEvent(ctx, event); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"eventType": event.EventType,
			"depositId": event.DepositID,
		}).Error("Could not save audit event")
	}
}

func (m *Manager) logIgnoredTransition(deposit *types.Deposit, to types.DepositStatus) {
	log.WithFields(logrus.Fields{
		"depositId": deposit.ID,
		"chainName": deposit.ChainName,
		"from":      deposit.Status.String(),
		"to":        to.String(),
	}).Debug("Ignoring transition from disallowed status")
}
