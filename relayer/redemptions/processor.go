// Package redemptions drives the L2 -> L1 redemption sweeps: pending records
// through VAA fetch and verification, verified records through L1 submission.
package redemptions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/relayer/vaa"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

var log = logrus.WithField("prefix", "redemptions")

// ChainParams carries the per-chain Wormhole coordinates redemptions are
// verified against.
type ChainParams struct {
	EmitterChainID  sdkvaa.ChainID
	EmitterAddress  string
	TargetL1ChainID sdkvaa.ChainID
}

// VAAVerifier is the verification pipeline surface the processor consumes.
// *vaa.Service implements it.
type VAAVerifier interface {
	FetchAndVerifyVAAForL2Event(
		ctx context.Context,
		l2TxHash string,
		emitterChainID sdkvaa.ChainID,
		emitterAddress string,
		targetL1ChainID sdkvaa.ChainID,
	) (*vaa.Result, *vaa.Failure)
}

// L1Submitter submits a verified redemption VAA to the L1 bridge contracts
// and returns the transaction hash.
type L1Submitter interface {
	SubmitRedemption(ctx context.Context, redemption *types.Redemption) (string, error)
}

// Processor sweeps redemption records by status.
type Processor struct {
	db        iface.Database
	manager   *lifecycle.Manager
	verifier  VAAVerifier
	submitter L1Submitter
	chains    map[string]ChainParams
	cfg       *params.RelayerConfig
}

// NewProcessor wires a redemption processor.
func NewProcessor(
	db iface.Database,
	manager *lifecycle.Manager,
	verifier VAAVerifier,
	submitter L1Submitter,
	chains map[string]ChainParams,
	cfg *params.RelayerConfig,
) *Processor {
	if cfg == nil {
		cfg = params.Relayer()
	}
	return &Processor{db: db, manager: manager, verifier: verifier, submitter: submitter, chains: chains, cfg: cfg}
}

// Run executes both sweeps. Per-record failures are isolated; only listing
// errors surface to the scheduler.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.ProcessPendingRedemptions(ctx); err != nil {
		return err
	}
	return p.ProcessVAAFetchedRedemptions(ctx)
}

// ProcessPendingRedemptions attempts VAA fetch and verification for every
// PENDING redemption on a configured chain. Records stay PENDING across
// retryable failures; VAA_FAILED applies only once the attempt budget is
// exhausted (zero budget retries indefinitely).
func (p *Processor) ProcessPendingRedemptions(ctx context.Context) error {
	for chainName, chainParams := range p.chains {
		redemptions, err := p.db.RedemptionsByStatus(ctx, types.RedemptionPending, chainName)
		if err != nil {
			return errors.Wrapf(err, "could not list pending redemptions for %s", chainName)
		}
		for _, redemption := range redemptions {
			if err := p.processPending(ctx, redemption, chainParams); err != nil {
				log.WithError(err).WithField("redemptionId", redemption.ID).Error("Could not process pending redemption")
			}
		}
	}
	return nil
}

func (p *Processor) processPending(ctx context.Context, redemption *types.Redemption, chainParams ChainParams) error {
	result, failure := p.verifier.FetchAndVerifyVAAForL2Event(
		ctx,
		redemption.Event.L2TransactionHash,
		chainParams.EmitterChainID,
		chainParams.EmitterAddress,
		chainParams.TargetL1ChainID,
	)
	if failure != nil {
		redemption.VAAFetchAttempts++
		if p.cfg.VAAMaxAttemptsBeforeFailed > 0 && redemption.VAAFetchAttempts >= p.cfg.VAAMaxAttemptsBeforeFailed {
			return p.manager.MarkRedemptionFailed(ctx, redemption, types.RedemptionVAAFailed, failure.Error())
		}
		return p.manager.UpdateToVAAFetched(ctx, redemption, nil, failure.Error())
	}
	return p.manager.UpdateToVAAFetched(ctx, redemption, result.VAABytes, "")
}

// ProcessVAAFetchedRedemptions submits every verified redemption to L1.
// Submission failures are recorded and retried on the next sweep; duplicate
// submissions are safe because the bridge rejects completed transfers.
func (p *Processor) ProcessVAAFetchedRedemptions(ctx context.Context) error {
	if p.submitter == nil {
		log.Debug("No L1 submitter configured, skipping verified redemption sweep")
		return nil
	}
	for chainName := range p.chains {
		redemptions, err := p.db.RedemptionsByStatus(ctx, types.RedemptionVAAFetched, chainName)
		if err != nil {
			return errors.Wrapf(err, "could not list verified redemptions for %s", chainName)
		}
		for _, redemption := range redemptions {
			txHash, err := p.submitter.SubmitRedemption(ctx, redemption)
			if err != nil {
				if updateErr := p.manager.UpdateToCompleted(ctx, redemption, "", err.Error()); updateErr != nil {
					log.WithError(updateErr).WithField("redemptionId", redemption.ID).Error("Could not record submission failure")
				}
				continue
			}
			if err := p.manager.UpdateToCompleted(ctx, redemption, txHash, ""); err != nil {
				log.WithError(err).WithField("redemptionId", redemption.ID).Error("Could not complete redemption")
				continue
			}
			log.WithFields(logrus.Fields{
				"redemptionId": redemption.ID,
				"l1TxHash":     txHash,
			}).Info("Redemption completed on L1")
		}
	}
	return nil
}
