// Package testing provides a configurable in-memory chain handler used by
// engine tests.
package testing

import (
	"context"
	"sync"

	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

// MockHandler implements chains.Handler against the real store and lifecycle
// manager, with scripted transaction hashes and failures.
type MockHandler struct {
	ChainName   string
	ChainFamily params.ChainFamily
	DB          iface.Database
	Lifecycle   *lifecycle.Manager

	InitializeTxHash   string
	FinalizeTxHash     string
	InitializeErr      error
	FinalizeErr        error
	InitializeReverted bool
	LatestBlockValue   int64

	mu               sync.Mutex
	initializeCalls  int
	finalizeCalls    int
	pastChecks       []chains.PastDepositsOptions
	supportsPastScan bool
}

var _ chains.Handler = (*MockHandler)(nil)
var _ chains.PastDepositChecker = (*MockHandler)(nil)

// Name implements chains.Handler.
func (m *MockHandler) Name() string { return m.ChainName }

// Family implements chains.Handler.
func (m *MockHandler) Family() params.ChainFamily {
	if m.ChainFamily == "" {
		return params.ChainFamilyEVM
	}
	return m.ChainFamily
}

// Initialize implements chains.Handler.
func (m *MockHandler) Initialize(_ context.Context) error { return nil }

// SetupListeners implements chains.Handler.
func (m *MockHandler) SetupListeners(_ context.Context) error { return nil }

// LatestBlock implements chains.Handler.
func (m *MockHandler) LatestBlock(_ context.Context) (int64, error) {
	return m.LatestBlockValue, nil
}

// SupportsPastDepositCheck implements chains.PastDepositChecker.
func (m *MockHandler) SupportsPastDepositCheck() bool { return m.supportsPastScan }

// EnablePastDepositCheck toggles the past-scan capability.
func (m *MockHandler) EnablePastDepositCheck(v bool) { m.supportsPastScan = v }

// CheckForPastDeposits implements chains.PastDepositChecker.
func (m *MockHandler) CheckForPastDeposits(_ context.Context, opts chains.PastDepositsOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pastChecks = append(m.pastChecks, opts)
	return nil
}

// PastChecks returns the recorded back-scan invocations.
func (m *MockHandler) PastChecks() []chains.PastDepositsOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chains.PastDepositsOptions{}, m.pastChecks...)
}

// InitializeDeposit implements chains.Handler.
func (m *MockHandler) InitializeDeposit(_ context.Context, _ *types.Deposit) (*chains.InitializeReceipt, error) {
	m.mu.Lock()
	m.initializeCalls++
	m.mu.Unlock()
	if m.InitializeErr != nil {
		return nil, m.InitializeErr
	}
	if m.InitializeReverted {
		return &chains.InitializeReceipt{TransactionHash: m.InitializeTxHash, Status: 0}, nil
	}
	return &chains.InitializeReceipt{TransactionHash: m.InitializeTxHash, Status: chains.ReceiptStatusSuccessful}, nil
}

// InitializeCalls returns the number of single-record initializations.
func (m *MockHandler) InitializeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeCalls
}

// ProcessInitializeDeposits implements chains.Handler by advancing every
// QUEUED deposit on this chain.
func (m *MockHandler) ProcessInitializeDeposits(ctx context.Context) error {
	deposits, err := m.DB.DepositsByStatus(ctx, types.StatusQueued, m.ChainName)
	if err != nil {
		return err
	}
	for _, deposit := range deposits {
		if m.InitializeErr != nil {
			if err := m.Lifecycle.UpdateToInitialized(ctx, deposit, "", m.InitializeErr.Error()); err != nil {
				return err
			}
			continue
		}
		if err := m.Lifecycle.UpdateToInitialized(ctx, deposit, m.InitializeTxHash, ""); err != nil {
			return err
		}
	}
	return nil
}

// ProcessFinalizeDeposits implements chains.Handler by advancing every
// INITIALIZED deposit on this chain.
func (m *MockHandler) ProcessFinalizeDeposits(ctx context.Context) error {
	m.mu.Lock()
	m.finalizeCalls++
	m.mu.Unlock()
	deposits, err := m.DB.DepositsByStatus(ctx, types.StatusInitialized, m.ChainName)
	if err != nil {
		return err
	}
	for _, deposit := range deposits {
		if m.FinalizeErr != nil {
			if err := m.Lifecycle.UpdateToFinalized(ctx, deposit, "", m.FinalizeErr.Error()); err != nil {
				return err
			}
			continue
		}
		if err := m.Lifecycle.UpdateToFinalized(ctx, deposit, m.FinalizeTxHash, ""); err != nil {
			return err
		}
	}
	return nil
}

// CheckDepositStatus implements chains.Handler from the persisted record.
func (m *MockHandler) CheckDepositStatus(ctx context.Context, depositID string) (types.DepositStatus, error) {
	deposit, err := m.DB.Deposit(ctx, depositID)
	if err != nil {
		return 0, err
	}
	if deposit == nil {
		return 0, chains.ErrDepositNotFound
	}
	return deposit.Status, nil
}
