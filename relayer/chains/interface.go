// Package chains defines the abstract contract between the relayer engine
// and any destination chain, plus the process-wide handler registry.
package chains

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

// ErrDepositNotFound is returned by CheckDepositStatus when the destination
// chain does not know the deposit.
var ErrDepositNotFound = errors.New("deposit not found on chain")

// ReceiptStatusSuccessful marks a mined initialization transaction that did
// not revert.
const ReceiptStatusSuccessful uint8 = 1

// InitializeReceipt is the submission receipt returned by the single-record
// initialization path used by the HTTP ingress. Status mirrors the on-chain
// receipt status: a mined-but-reverted transaction carries Status 0.
type InitializeReceipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          uint8  `json:"status"`
}

// PastDepositsOptions bounds a back-scan for missed deposit events.
type PastDepositsOptions struct {
	PastTime    time.Duration
	LatestBlock int64
}

// Handler is the per-chain contract the engine consumes. Implementations
// must be idempotent per deposit: sweeping twice must not submit a second
// transaction for a record already past the swept status. Handlers never
// apply their own retention policy; cleanup belongs to the cleanup engine.
type Handler interface {
	// Name returns the unique chain name this handler is registered under.
	Name() string
	// Family returns the chain family, which selects the deposit key
	// derivation variant.
	Family() params.ChainFamily
	// Initialize connects providers, loads contracts, and performs any
	// one-shot setup.
	Initialize(ctx context.Context) error
	// SetupListeners subscribes to on-chain events that call back into the
	// lifecycle engine.
	SetupListeners(ctx context.Context) error
	// LatestBlock returns the chain head for log-range scans. Values <= 0
	// mean "unknown, skip this sweep".
	LatestBlock(ctx context.Context) (int64, error)
	// ProcessInitializeDeposits attempts the L1 initialization transaction
	// for every persisted QUEUED deposit on this chain.
	ProcessInitializeDeposits(ctx context.Context) error
	// ProcessFinalizeDeposits attempts finalization for every INITIALIZED
	// deposit on this chain.
	ProcessFinalizeDeposits(ctx context.Context) error
	// InitializeDeposit submits the initialization for a single record. Used
	// by the HTTP ingress path.
	InitializeDeposit(ctx context.Context, deposit *types.Deposit) (*InitializeReceipt, error)
	// CheckDepositStatus queries the destination chain for the deposit's
	// on-chain state. Returns ErrDepositNotFound for unknown deposits.
	CheckDepositStatus(ctx context.Context, depositID string) (types.DepositStatus, error)
}

// PastDepositChecker is the optional capability for chains supporting
// log-range back-scans to recover missed events.
type PastDepositChecker interface {
	SupportsPastDepositCheck() bool
	CheckForPastDeposits(ctx context.Context, opts PastDepositsOptions) error
}

// WormholeBridger is the optional capability for chains whose
// post-finalization path requires a VAA-driven bridge, driving
// FINALIZED -> AWAITING_WORMHOLE_VAA -> BRIDGED.
type WormholeBridger interface {
	ProcessWormholeBridging(ctx context.Context) error
}
