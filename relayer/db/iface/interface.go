// Package iface exists to prevent circular imports when implementing the
// database interface.
package iface

import (
	"context"
	"io"

	"github.com/keep-network/tbtc-relayer/relayer/types"
)

// DepositStore defines the record-oriented contract for deposit persistence.
// Every operation is atomic at single-record granularity.
type DepositStore interface {
	// CreateDeposit inserts a record. Duplicate IDs are a non-fatal warning.
	CreateDeposit(ctx context.Context, deposit *types.Deposit) error
	// UpdateDeposit replaces the whole record by ID and fails if absent.
	UpdateDeposit(ctx context.Context, deposit *types.Deposit) error
	// Deposit returns the record or nil if unknown.
	Deposit(ctx context.Context, id string) (*types.Deposit, error)
	// DepositsByStatus returns records in the given status, optionally
	// filtered by chain name. Result ordering is unspecified.
	DepositsByStatus(ctx context.Context, status types.DepositStatus, chainName string) ([]*types.Deposit, error)
	// DeleteDeposit removes the record. Absent IDs are a no-op.
	DeleteDeposit(ctx context.Context, id string) error
}

// RedemptionStore defines the contract for redemption persistence.
type RedemptionStore interface {
	CreateRedemption(ctx context.Context, redemption *types.Redemption) error
	UpdateRedemption(ctx context.Context, redemption *types.Redemption) error
	Redemption(ctx context.Context, id string) (*types.Redemption, error)
	RedemptionsByStatus(ctx context.Context, status types.RedemptionStatus, chainName string) ([]*types.Redemption, error)
	DeleteRedemption(ctx context.Context, id string) error
}

// AuditStore is the append-only audit journal.
type AuditStore interface {
	SaveAuditEvent(ctx context.Context, event *types.AuditEvent) error
	AuditEvents(ctx context.Context, filter *types.AuditFilter) ([]*types.AuditEvent, error)
}

// Database is the full persistence surface consumed by the engine.
type Database interface {
	io.Closer
	DepositStore
	RedemptionStore
	AuditStore
	DatabasePath() string
	ClearDB() error
}
