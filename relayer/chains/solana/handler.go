// Package solana implements the chain handler for Solana destinations. The
// L1 initialization and finalization legs are shared with the EVM handler;
// what Solana adds is the Wormhole bridging tail that carries minted tBTC
// from L1 to the destination after finalization.
package solana

import (
	"context"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/chains/evm"
	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/relayer/vaa"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

var log = logrus.WithField("prefix", "solana")

const confirmationTimeout = 2 * time.Minute

// BridgeSubmitter posts a signed VAA to the Solana token bridge and redeems
// the transfer, returning the transaction signature.
type BridgeSubmitter interface {
	SubmitBridgeTransaction(ctx context.Context, vaaBytes []byte, deposit *types.Deposit) (string, error)
}

// Handler implements chains.Handler and chains.WormholeBridger for Solana.
type Handler struct {
	cfg       *params.ChainConfig
	db        iface.Database
	manager   *lifecycle.Manager
	l1        *evm.Handler
	source    vaa.Source
	submitter BridgeSubmitter

	rpcClient *rpc.Client
}

var _ chains.Handler = (*Handler)(nil)
var _ chains.WormholeBridger = (*Handler)(nil)

// NewHandler creates a Solana chain handler. The embedded EVM handler drives
// the shared L1 depositor legs under this handler's chain name.
func NewHandler(
	cfg *params.ChainConfig,
	db iface.Database,
	manager *lifecycle.Manager,
	l1 *evm.Handler,
	source vaa.Source,
	submitter BridgeSubmitter,
) *Handler {
	return &Handler{cfg: cfg, db: db, manager: manager, l1: l1, source: source, submitter: submitter}
}

// Name implements chains.Handler.
func (h *Handler) Name() string { return h.cfg.Name }

// Family implements chains.Handler.
func (h *Handler) Family() params.ChainFamily { return params.ChainFamilySolana }

// Initialize connects the Solana RPC client and the shared L1 legs.
func (h *Handler) Initialize(ctx context.Context) error {
	h.rpcClient = rpc.New(h.cfg.L2RPCEndpoint)
	if _, err := h.rpcClient.GetSlot(ctx, rpc.CommitmentFinalized); err != nil {
		return errors.Wrap(err, "could not reach Solana RPC endpoint")
	}
	if err := h.l1.Initialize(ctx); err != nil {
		return err
	}
	log.WithField("chainName", h.cfg.Name).Info("Solana chain handler initialized")
	return nil
}

// SetupListeners implements chains.Handler. Solana deposits arrive through
// the HTTP ingress; there is no L2 event subscription.
func (h *Handler) SetupListeners(_ context.Context) error { return nil }

// LatestBlock implements chains.Handler with the finalized slot height.
func (h *Handler) LatestBlock(ctx context.Context) (int64, error) {
	slot, err := h.rpcClient.GetSlot(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return 0, errors.Wrap(err, "could not fetch Solana slot")
	}
	return int64(slot), nil
}

// ProcessInitializeDeposits implements chains.Handler via the shared L1 legs.
func (h *Handler) ProcessInitializeDeposits(ctx context.Context) error {
	return h.l1.ProcessInitializeDeposits(ctx)
}

// ProcessFinalizeDeposits implements chains.Handler via the shared L1 legs.
func (h *Handler) ProcessFinalizeDeposits(ctx context.Context) error {
	return h.l1.ProcessFinalizeDeposits(ctx)
}

// InitializeDeposit implements chains.Handler via the shared L1 legs.
func (h *Handler) InitializeDeposit(ctx context.Context, deposit *types.Deposit) (*chains.InitializeReceipt, error) {
	return h.l1.InitializeDeposit(ctx, deposit)
}

// CheckDepositStatus implements chains.Handler from the L1 depositor state.
func (h *Handler) CheckDepositStatus(ctx context.Context, depositID string) (types.DepositStatus, error) {
	return h.l1.CheckDepositStatus(ctx, depositID)
}

// ProcessWormholeBridging drives the post-finalization tail. FINALIZED
// records learn their transfer sequence from the L1 finalize receipt and
// advance to AWAITING_WORMHOLE_VAA; awaiting records fetch the signed VAA and
// redeem it on Solana, reaching BRIDGED.
func (h *Handler) ProcessWormholeBridging(ctx context.Context) error {
	if err := h.advanceFinalized(ctx); err != nil {
		return err
	}
	return h.advanceAwaiting(ctx)
}

func (h *Handler) advanceFinalized(ctx context.Context) error {
	deposits, err := h.db.DepositsByStatus(ctx, types.StatusFinalized, h.cfg.Name)
	if err != nil {
		return errors.Wrap(err, "could not list finalized deposits")
	}
	for _, deposit := range deposits {
		sequence, err := h.l1.WormholeSequence(ctx, deposit.Hashes.Eth.FinalizeTxHash)
		if err != nil {
			if updateErr := h.manager.UpdateToAwaitingWormholeVAA(ctx, deposit, "", "", err.Error()); updateErr != nil {
				log.WithError(updateErr).WithField("depositId", deposit.ID).Error("Could not record sequence lookup failure")
			}
			continue
		}
		if err := h.manager.UpdateToAwaitingWormholeVAA(ctx, deposit, deposit.Hashes.Eth.FinalizeTxHash, sequence, ""); err != nil {
			log.WithError(err).WithField("depositId", deposit.ID).Error("Could not update awaiting deposit")
		}
	}
	return nil
}

func (h *Handler) advanceAwaiting(ctx context.Context) error {
	deposits, err := h.db.DepositsByStatus(ctx, types.StatusAwaitingWormholeVAA, h.cfg.Name)
	if err != nil {
		return errors.Wrap(err, "could not list awaiting deposits")
	}
	for _, deposit := range deposits {
		if err := h.bridgeOne(ctx, deposit); err != nil {
			if updateErr := h.manager.UpdateToBridged(ctx, deposit, "", err.Error()); updateErr != nil {
				log.WithError(updateErr).WithField("depositId", deposit.ID).Error("Could not record bridging failure")
			}
		}
	}
	return nil
}

func (h *Handler) bridgeOne(ctx context.Context, deposit *types.Deposit) error {
	if h.submitter == nil {
		return errors.New("no bridge submitter configured")
	}
	sequence, err := strconv.ParseUint(deposit.WormholeInfo.TransferSequence, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "malformed transfer sequence %q", deposit.WormholeInfo.TransferSequence)
	}
	emitter, err := sdkvaa.StringToAddress(h.cfg.WormholeTokenBridge)
	if err != nil {
		return errors.Wrap(err, "malformed token bridge emitter address")
	}
	msg := vaa.Message{
		ChainID:  sdkvaa.ChainIDEthereum,
		Emitter:  emitter,
		Sequence: sequence,
	}
	parsed, err := h.source.GetVAA(ctx, msg, vaa.DiscriminatorTransferWithPayload, params.Relayer().VAAFetchRetryDelay)
	if err != nil {
		return errors.Wrap(err, "could not fetch transfer VAA")
	}
	if parsed == nil {
		return errors.Errorf("no VAA signed yet for message ID %s", msg.MessageID())
	}

	signature, err := h.submitter.SubmitBridgeTransaction(ctx, parsed.Bytes, deposit)
	if err != nil {
		return errors.Wrap(err, "could not submit bridge transaction")
	}
	if err := h.confirmSignature(ctx, signature); err != nil {
		return err
	}
	return h.manager.UpdateToBridged(ctx, deposit, signature, "")
}

// confirmSignature polls the cluster until the bridge transaction finalizes.
func (h *Handler) confirmSignature(ctx context.Context, signature string) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return errors.Wrap(err, "malformed transaction signature")
	}
	ctx, cancel := context.WithTimeout(ctx, confirmationTimeout)
	defer cancel()
	for {
		statuses, err := h.rpcClient.GetSignatureStatuses(ctx, true, sig)
		if err == nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return errors.Errorf("bridge transaction %s failed on-chain", signature)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "bridge transaction %s not finalized", signature)
		case <-time.After(5 * time.Second):
		}
	}
}
