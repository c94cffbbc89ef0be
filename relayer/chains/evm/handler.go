// Package evm implements the chain handler for EVM destination chains. The
// handler drives the L1 BitcoinDepositor contract for initialization and
// finalization and watches the L2 depositor for reveal events.
package evm

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

var log = logrus.WithField("prefix", "evm")

const (
	// attemptCooldown suppresses re-submission of a deposit the handler has
	// just attempted but whose transaction may still be pending.
	attemptCooldown = 5 * time.Minute
	// avgBlockTime converts a back-scan window into a block range.
	avgBlockTime = 12 * time.Second

	txWaitTimeout = 3 * time.Minute
)

// Handler implements chains.Handler for EVM chains. StarkNet destinations
// share this handler; only the deposit key derivation differs by family.
type Handler struct {
	cfg     *params.ChainConfig
	db      iface.Database
	manager *lifecycle.Manager

	l1Client *ethclient.Client
	l2Client *ethclient.Client

	key        *ecdsa.PrivateKey
	transactOpts *bind.TransactOpts
	depositor  *bind.BoundContract
	depositorABI abi.ABI

	// nonceMu serializes transaction submission so the local nonce sequence
	// never forks.
	nonceMu  sync.Mutex
	attempts *cache.Cache
}

var _ chains.Handler = (*Handler)(nil)
var _ chains.PastDepositChecker = (*Handler)(nil)

// NewHandler creates an EVM chain handler from its configuration block.
func NewHandler(cfg *params.ChainConfig, db iface.Database, manager *lifecycle.Manager) *Handler {
	return &Handler{
		cfg:      cfg,
		db:       db,
		manager:  manager,
		attempts: cache.New(attemptCooldown, 2*attemptCooldown),
	}
}

// Name implements chains.Handler.
func (h *Handler) Name() string { return h.cfg.Name }

// Family implements chains.Handler.
func (h *Handler) Family() params.ChainFamily { return h.cfg.Family }

// Initialize dials the RPC endpoints, loads the signing key, and binds the
// L1 depositor contract.
func (h *Handler) Initialize(ctx context.Context) error {
	var err error
	h.l1Client, err = ethclient.DialContext(ctx, h.cfg.L1RPCEndpoint)
	if err != nil {
		return errors.Wrap(err, "could not dial L1 RPC endpoint")
	}
	h.l2Client, err = ethclient.DialContext(ctx, h.cfg.L2RPCEndpoint)
	if err != nil {
		return errors.Wrap(err, "could not dial L2 RPC endpoint")
	}

	h.key, err = crypto.HexToECDSA(strings.TrimPrefix(h.cfg.PrivateKey, "0x"))
	if err != nil {
		return errors.Wrap(err, "could not parse relayer private key")
	}
	chainID, err := h.l1Client.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "could not fetch L1 chain ID")
	}
	h.transactOpts, err = bind.NewKeyedTransactorWithChainID(h.key, chainID)
	if err != nil {
		return errors.Wrap(err, "could not build transactor")
	}

	h.depositorABI, err = abi.JSON(strings.NewReader(l1BitcoinDepositorABI))
	if err != nil {
		return errors.Wrap(err, "could not parse depositor ABI")
	}
	h.depositor = bind.NewBoundContract(
		common.HexToAddress(h.cfg.L1BitcoinDepositorAddr),
		h.depositorABI,
		h.l1Client, h.l1Client, h.l1Client,
	)

	log.WithFields(logrus.Fields{
		"chainName": h.cfg.Name,
		"depositor": h.cfg.L1BitcoinDepositorAddr,
		"relayer":   crypto.PubkeyToAddress(h.key.PublicKey).Hex(),
	}).Info("EVM chain handler initialized")
	return nil
}

// SetupListeners subscribes to L2 DepositInitialized events, creating QUEUED
// records for reveals the HTTP ingress never saw. Chains configured with
// useEndpoint rely on the ingress only.
func (h *Handler) SetupListeners(ctx context.Context) error {
	if h.cfg.UseEndpoint {
		log.WithField("chainName", h.cfg.Name).Info("Endpoint mode, skipping event listeners")
		return nil
	}
	query := h.depositInitializedQuery(nil, nil)
	logsCh := make(chan gethtypes.Log, 64)
	sub, err := h.l2Client.SubscribeFilterLogs(ctx, query, logsCh)
	if err != nil {
		return errors.Wrap(err, "could not subscribe to depositor logs")
	}
	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				log.WithError(err).WithField("chainName", h.cfg.Name).Error("Depositor log subscription failed")
				return
			case l := <-logsCh:
				if err := h.handleDepositInitializedLog(ctx, l); err != nil {
					log.WithError(err).WithField("chainName", h.cfg.Name).Error("Could not handle deposit event")
				}
			}
		}
	}()
	return nil
}

// LatestBlock implements chains.Handler against the L2 chain head.
func (h *Handler) LatestBlock(ctx context.Context) (int64, error) {
	head, err := h.l2Client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "could not fetch L2 block number")
	}
	return int64(head), nil
}

// ProcessInitializeDeposits attempts the L1 initialization transaction for
// every QUEUED deposit on this chain.
func (h *Handler) ProcessInitializeDeposits(ctx context.Context) error {
	deposits, err := h.db.DepositsByStatus(ctx, types.StatusQueued, h.cfg.Name)
	if err != nil {
		return errors.Wrap(err, "could not list queued deposits")
	}
	for _, deposit := range deposits {
		if _, attempted := h.attempts.Get(deposit.ID); attempted {
			continue
		}
		receipt, err := h.InitializeDeposit(ctx, deposit)
		if err != nil {
			if updateErr := h.manager.UpdateToInitialized(ctx, deposit, "", err.Error()); updateErr != nil {
				log.WithError(updateErr).WithField("depositId", deposit.ID).Error("Could not record initialization failure")
			}
			continue
		}
		if err := h.manager.UpdateToInitialized(ctx, deposit, receipt.TransactionHash, ""); err != nil {
			log.WithError(err).WithField("depositId", deposit.ID).Error("Could not update initialized deposit")
		}
	}
	return nil
}

// ProcessFinalizeDeposits attempts finalization for every INITIALIZED deposit
// on this chain.
func (h *Handler) ProcessFinalizeDeposits(ctx context.Context) error {
	deposits, err := h.db.DepositsByStatus(ctx, types.StatusInitialized, h.cfg.Name)
	if err != nil {
		return errors.Wrap(err, "could not list initialized deposits")
	}
	for _, deposit := range deposits {
		txHash, err := h.finalizeDeposit(ctx, deposit)
		if err != nil {
			if updateErr := h.manager.UpdateToFinalized(ctx, deposit, "", err.Error()); updateErr != nil {
				log.WithError(updateErr).WithField("depositId", deposit.ID).Error("Could not record finalization failure")
			}
			continue
		}
		if err := h.manager.UpdateToFinalized(ctx, deposit, txHash, ""); err != nil {
			log.WithError(err).WithField("depositId", deposit.ID).Error("Could not update finalized deposit")
		}
	}
	return nil
}

// InitializeDeposit submits initializeDeposit for a single record and waits
// for the transaction to be mined. Duplicate submissions revert on-chain and
// surface as errors, which keeps the operation safe under at-least-once
// delivery.
func (h *Handler) InitializeDeposit(ctx context.Context, deposit *types.Deposit) (*chains.InitializeReceipt, error) {
	fundingTx, err := packFundingTx(deposit.L1OutputEvent.FundingTx)
	if err != nil {
		return nil, err
	}
	reveal, err := packReveal(deposit.L1OutputEvent.Reveal)
	if err != nil {
		return nil, err
	}
	owner := common.HexToAddress(deposit.L1OutputEvent.L2DepositOwner)

	h.attempts.Set(deposit.ID, true, cache.DefaultExpiration)
	tx, err := h.transact(ctx, nil, "initializeDeposit", fundingTx, reveal, owner)
	if err != nil {
		return nil, errors.Wrap(err, "initializeDeposit transaction failed")
	}
	receipt, err := h.waitMined(ctx, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, errors.Errorf("initializeDeposit reverted in %s", receipt.TxHash.Hex())
	}
	return &chains.InitializeReceipt{
		TransactionHash: receipt.TxHash.Hex(),
		Status:          uint8(receipt.Status),
	}, nil
}

// CheckDepositStatus reads the on-chain deposit state from the L1 depositor.
func (h *Handler) CheckDepositStatus(ctx context.Context, depositID string) (types.DepositStatus, error) {
	key, ok := new(big.Int).SetString(depositID, 10)
	if !ok {
		return 0, errors.Errorf("malformed deposit ID: %s", depositID)
	}
	var out []interface{}
	err := h.depositor.Call(&bind.CallOpts{Context: ctx}, &out, "deposits", key)
	if err != nil {
		return 0, errors.Wrap(err, "deposits call failed")
	}
	if len(out) == 0 {
		return 0, chains.ErrDepositNotFound
	}
	state, ok := out[0].(uint8)
	if !ok || state == 0 {
		return 0, chains.ErrDepositNotFound
	}
	// Contract states: 1 initialized, 2 finalized.
	if state >= 2 {
		return types.StatusFinalized, nil
	}
	return types.StatusInitialized, nil
}

// SupportsPastDepositCheck implements chains.PastDepositChecker. Endpoint
// mode chains receive reveals through HTTP only and are never back-scanned.
func (h *Handler) SupportsPastDepositCheck() bool {
	return !h.cfg.UseEndpoint
}

// CheckForPastDeposits scans the recent L2 block range for DepositInitialized
// events and admits any record the relayer missed while offline.
func (h *Handler) CheckForPastDeposits(ctx context.Context, opts chains.PastDepositsOptions) error {
	blocks := int64(opts.PastTime / avgBlockTime)
	fromBlock := opts.LatestBlock - blocks
	if fromBlock < 0 {
		fromBlock = 0
	}
	query := h.depositInitializedQuery(big.NewInt(fromBlock), big.NewInt(opts.LatestBlock))
	logs, err := h.l2Client.FilterLogs(ctx, query)
	if err != nil {
		return errors.Wrap(err, "could not filter depositor logs")
	}
	log.WithFields(logrus.Fields{
		"chainName": h.cfg.Name,
		"fromBlock": fromBlock,
		"toBlock":   opts.LatestBlock,
		"events":    len(logs),
	}).Debug("Scanned past deposit events")
	for _, l := range logs {
		if err := h.handleDepositInitializedLog(ctx, l); err != nil {
			log.WithError(err).WithField("chainName", h.cfg.Name).Error("Could not handle past deposit event")
		}
	}
	return nil
}

func (h *Handler) finalizeDeposit(ctx context.Context, deposit *types.Deposit) (string, error) {
	key, ok := new(big.Int).SetString(deposit.ID, 10)
	if !ok {
		return "", errors.Errorf("malformed deposit ID: %s", deposit.ID)
	}
	// The depositor quotes the payable fee covering the cross-chain message.
	var out []interface{}
	if err := h.depositor.Call(&bind.CallOpts{Context: ctx}, &out, "quoteFinalizeDeposit"); err != nil {
		return "", errors.Wrap(err, "quoteFinalizeDeposit call failed")
	}
	fee, ok := out[0].(*big.Int)
	if !ok {
		return "", errors.New("unexpected quoteFinalizeDeposit result")
	}

	tx, err := h.transact(ctx, fee, "finalizeDeposit", key)
	if err != nil {
		return "", errors.Wrap(err, "finalizeDeposit transaction failed")
	}
	receipt, err := h.waitMined(ctx, tx)
	if err != nil {
		return "", err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return "", errors.Errorf("finalizeDeposit reverted in %s", receipt.TxHash.Hex())
	}
	return receipt.TxHash.Hex(), nil
}

func (h *Handler) transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*gethtypes.Transaction, error) {
	h.nonceMu.Lock()
	defer h.nonceMu.Unlock()
	opts := *h.transactOpts
	opts.Context = ctx
	opts.Value = value
	return h.depositor.Transact(&opts, method, args...)
}

func (h *Handler) waitMined(ctx context.Context, tx *gethtypes.Transaction) (*gethtypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, txWaitTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(ctx, h.l1Client, tx)
	if err != nil {
		return nil, errors.Wrapf(err, "transaction %s not mined", tx.Hash().Hex())
	}
	return receipt, nil
}
