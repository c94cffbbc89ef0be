// Package cleanup removes abandoned and terminal deposit records past their
// retention windows. Sweeps are generic over the swept status, the date field
// measured against, and the age threshold.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

var log = logrus.WithField("prefix", "cleanup")

// Sweep parameterizes one retention pass.
type Sweep struct {
	Status    types.DepositStatus
	DateField func(*types.Deposit) *int64
	Threshold time.Duration
}

// Engine runs retention sweeps over the record store.
type Engine struct {
	db  iface.Database
	cfg *params.RelayerConfig
}

// NewEngine creates a cleanup engine with the given retention configuration.
func NewEngine(db iface.Database, cfg *params.RelayerConfig) *Engine {
	if cfg == nil {
		cfg = params.Relayer()
	}
	return &Engine{db: db, cfg: cfg}
}

// Sweeps returns the configured retention passes: abandoned QUEUED records
// by creation time, and terminal FINALIZED and BRIDGED records by their
// respective completion times.
func (e *Engine) Sweeps() []Sweep {
	return []Sweep{
		{
			Status:    types.StatusQueued,
			DateField: func(d *types.Deposit) *int64 { return d.Dates.CreatedAt },
			Threshold: e.cfg.CleanQueuedTime,
		},
		{
			Status:    types.StatusFinalized,
			DateField: func(d *types.Deposit) *int64 { return d.Dates.FinalizationAt },
			Threshold: e.cfg.CleanFinalizedTime,
		},
		{
			Status:    types.StatusBridged,
			DateField: func(d *types.Deposit) *int64 { return d.Dates.BridgedAt },
			Threshold: e.cfg.CleanBridgedTime,
		},
	}
}

// Run executes all configured sweeps. Sweep-level failures are collected so
// one sweep's listing error never prevents the others from running.
func (e *Engine) Run(ctx context.Context) error {
	var firstErr error
	for _, sweep := range e.Sweeps() {
		if err := e.RunSweep(ctx, sweep); err != nil {
			log.WithError(err).WithField("status", sweep.Status.String()).Error("Cleanup sweep failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RunSweep deletes every record in the swept status whose measured date field
// is older than the threshold. Per-record failures are logged and the sweep
// continues; only the status listing itself is fatal.
func (e *Engine) RunSweep(ctx context.Context, sweep Sweep) error {
	deposits, err := e.db.DepositsByStatus(ctx, sweep.Status, "")
	if err != nil {
		return errors.Wrapf(err, "could not list %s deposits", sweep.Status.String())
	}
	now := time.Now()
	for _, deposit := range deposits {
		if err := e.sweepOne(ctx, sweep, deposit, now); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"depositId": deposit.ID,
				"status":    sweep.Status.String(),
			}).Error("Could not clean up deposit")
		}
	}
	return nil
}

func (e *Engine) sweepOne(ctx context.Context, sweep Sweep, deposit *types.Deposit, now time.Time) error {
	at := sweep.DateField(deposit)
	if at == nil {
		return nil
	}
	age := now.Sub(time.UnixMilli(*at))
	if age <= sweep.Threshold {
		return nil
	}

	// The listed record may be stale; re-read before auditing. An already
	// deleted record still goes through the delete, which is a no-op.
	current, err := e.db.Deposit(ctx, deposit.ID)
	if err != nil {
		return err
	}
	if current == nil {
		current = deposit
	}

	reason := fmt.Sprintf(
		"%s deposit exceeded age limit: %.2f hours > %.2f hours",
		sweep.Status.String(), age.Hours(), sweep.Threshold.Hours(),
	)
	// Audit before delete so a crash between the two leaves a journal trace
	// rather than a silent disappearance. Audit failures do not block the
	// delete.
	if err := e.db.SaveAuditEvent(ctx, &types.AuditEvent{
		EventType: types.AuditDepositDeleted,
		DepositID: current.ID,
		ChainName: current.ChainName,
		Data: map[string]interface{}{
			"reason":   reason,
			"ageHours": fmt.Sprintf("%.2f", age.Hours()),
			"status":   sweep.Status.String(),
		},
	}); err != nil {
		log.WithError(err).WithField("depositId", current.ID).Error("Could not save cleanup audit event")
	}

	if err := e.db.DeleteDeposit(ctx, current.ID); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"depositId": current.ID,
		"chainName": current.ChainName,
		"status":    sweep.Status.String(),
		"ageHours":  fmt.Sprintf("%.2f", age.Hours()),
	}).Info("Deleted deposit past retention window")
	return nil
}
