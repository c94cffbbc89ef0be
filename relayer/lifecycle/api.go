package lifecycle

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/relayer/btc"
	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/depositutil"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

// ErrDepositUnknown is returned by GetDepositStatus for IDs the store does
// not know.
var ErrDepositUnknown = errors.New("deposit unknown")

// API is the engine entry point consumed by the thin HTTP layer and by
// on-chain listeners.
type API struct {
	manager  *Manager
	registry *chains.Registry
}

// NewAPI wires the lifecycle API over the manager and handler registry.
func NewAPI(manager *Manager, registry *chains.Registry) *API {
	return &API{manager: manager, registry: registry}
}

// RevealResult is returned to the ingress caller on a successful reveal.
type RevealResult struct {
	DepositID string                    `json:"depositId"`
	Receipt   *chains.InitializeReceipt `json:"receipt"`
}

// RevealDeposit creates a QUEUED deposit from a reveal and immediately
// attempts initialization through the chain handler. On handler failure the
// error is surfaced and the record stays QUEUED for the scheduler to retry.
func (a *API) RevealDeposit(ctx context.Context, chainName string, req *RevealRequest) (*RevealResult, error) {
	handler, err := a.registry.Get(chainName)
	if err != nil {
		return nil, err
	}

	fundingTxHash, err := btc.FundingTransactionHash(
		req.FundingTx.Version,
		req.FundingTx.InputVector,
		req.FundingTx.OutputVector,
		req.FundingTx.Locktime,
	)
	if err != nil {
		return nil, &ValidationError{FieldErrors: map[string]string{"fundingTx": err.Error()}}
	}
	if err := validateReveal(fundingTxHash, req); err != nil {
		return nil, err
	}

	depositID, err := deriveDepositID(handler.Family(), fundingTxHash, req.Reveal.FundingOutputIndex)
	if err != nil {
		return nil, &ValidationError{FieldErrors: map[string]string{"fundingOutputIndex": err.Error()}}
	}

	now := types.NowMillisPtr()
	deposit := &types.Deposit{
		ID:            depositID,
		ChainName:     chainName,
		FundingTxHash: fundingTxHash,
		OutputIndex:   req.Reveal.FundingOutputIndex,
		Owner:         req.L2DepositOwner,
		Status:        types.StatusQueued,
		Receipt: types.DepositReceipt{
			Depositor:           req.L2Sender,
			BlindingFactor:      req.Reveal.BlindingFactor,
			WalletPublicKeyHash: req.Reveal.WalletPublicKeyHash,
			RefundPublicKeyHash: req.Reveal.RefundPublicKeyHash,
			RefundLocktime:      req.Reveal.RefundLocktime,
			ExtraData:           req.L2DepositOwner,
		},
		L1OutputEvent: types.L1OutputEvent{
			FundingTx:      req.FundingTx,
			Reveal:         req.Reveal,
			L2DepositOwner: req.L2DepositOwner,
			L2Sender:       req.L2Sender,
		},
		Dates: types.DepositDates{CreatedAt: now, LastActivityAt: now},
	}
	deposit.Hashes.Btc.BtcTxHash = fundingTxHash

	if err := a.manager.db.CreateDeposit(ctx, deposit); err != nil {
		return nil, errors.Wrap(err, "could not persist deposit")
	}
	a.manager.audit(ctx, &types.AuditEvent{
		EventType: types.AuditDepositCreated,
		DepositID: deposit.ID,
		ChainName: chainName,
		Data: map[string]interface{}{
			"fundingTxHash":      fundingTxHash,
			"fundingOutputIndex": req.Reveal.FundingOutputIndex,
			"owner":              req.L2DepositOwner,
		},
	})

	receipt, err := handler.InitializeDeposit(ctx, deposit)
	if err != nil {
		// The record stays QUEUED; the next Process sweep retries.
		if updateErr := a.manager.UpdateToInitialized(ctx, deposit, "", err.Error()); updateErr != nil {
			log.WithError(updateErr).WithField("depositId", deposit.ID).Error("Could not record initialization failure")
		}
		return nil, errors.Wrap(err, "handler could not initialize deposit")
	}
	// A mined-but-reverted transaction must not advance the record.
	if receipt.Status != chains.ReceiptStatusSuccessful {
		revertErr := errors.Errorf("initialize transaction %s reverted", receipt.TransactionHash)
		if updateErr := a.manager.UpdateToInitialized(ctx, deposit, "", revertErr.Error()); updateErr != nil {
			log.WithError(updateErr).WithField("depositId", deposit.ID).Error("Could not record initialization failure")
		}
		return nil, revertErr
	}
	if err := a.manager.UpdateToInitialized(ctx, deposit, receipt.TransactionHash, ""); err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"depositId": deposit.ID,
		"chainName": chainName,
		"txHash":    receipt.TransactionHash,
	}).Info("Deposit revealed and initialized")
	return &RevealResult{DepositID: deposit.ID, Receipt: receipt}, nil
}

// GetDepositStatus returns the persisted status of a deposit on the given
// chain, or ErrDepositUnknown.
func (a *API) GetDepositStatus(ctx context.Context, chainName, depositID string) (types.DepositStatus, error) {
	if _, err := a.registry.Get(chainName); err != nil {
		return 0, err
	}
	deposit, err := a.manager.db.Deposit(ctx, depositID)
	if err != nil {
		return 0, err
	}
	if deposit == nil || deposit.ChainName != chainName {
		return 0, errors.Wrap(ErrDepositUnknown, depositID)
	}
	return deposit.Status, nil
}

func deriveDepositID(family params.ChainFamily, fundingTxHash string, outputIndex int64) (string, error) {
	if family == params.ChainFamilyStarkNet {
		return depositutil.DepositIDStarkNet(fundingTxHash, outputIndex)
	}
	return depositutil.DepositID(fundingTxHash, outputIndex)
}
