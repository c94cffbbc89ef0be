// Package scheduler drives the recurring relayer sweeps: per-chain deposit
// processing every minute, past-deposit back-scans every hour, and retention
// cleanup every ten minutes. Ticks of the same task never overlap.
package scheduler

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/keep-network/tbtc-relayer/async"
	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/cleanup"
	"github.com/keep-network/tbtc-relayer/relayer/redemptions"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

var log = logrus.WithField("prefix", "scheduler")

var (
	tickCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_scheduler_ticks_total",
		Help: "Count of completed scheduler ticks per task.",
	}, []string{"task"})
	tickErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relayer_scheduler_tick_errors_total",
		Help: "Count of scheduler tick errors per task.",
	}, []string{"task"})
)

// Config groups the collaborators the scheduler drives.
type Config struct {
	Registry    *chains.Registry
	Cleanup     *cleanup.Engine
	Redemptions *redemptions.Processor
	Relayer     *params.RelayerConfig
}

// Service runs the three recurring tasks for the lifetime of its context.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
}

// NewService creates the scheduler service.
func NewService(ctx context.Context, cfg *Config) *Service {
	ctx, cancel := context.WithCancel(ctx)
	if cfg.Relayer == nil {
		cfg.Relayer = params.Relayer()
	}
	return &Service{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Start launches the recurring tasks.
func (s *Service) Start() {
	log.WithFields(logrus.Fields{
		"processInterval":      s.cfg.Relayer.ProcessInterval,
		"pastDepositsInterval": s.cfg.Relayer.PastDepositsInterval,
		"cleanupInterval":      s.cfg.Relayer.CleanupInterval,
	}).Info("Starting scheduler")
	async.RunEveryNonOverlapping(s.ctx, s.cfg.Relayer.ProcessInterval, s.ProcessTick)
	async.RunEveryNonOverlapping(s.ctx, s.cfg.Relayer.PastDepositsInterval, s.PastDepositsTick)
	async.RunEveryNonOverlapping(s.ctx, s.cfg.Relayer.CleanupInterval, s.CleanupTick)
}

// Stop cancels the recurring tasks. In-flight ticks run to completion.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always reports healthy; a wedged tick surfaces through skipped-tick
// logs and metrics rather than the health endpoint.
func (s *Service) Status() error {
	return nil
}

// ProcessTick advances deposits on every registered chain, draining the
// bridging tail first, then finalization, then initialization, so queue depth
// stays bounded. Redemption sweeps run after deposits. Per-handler errors are
// logged and never stop the remaining handlers.
func (s *Service) ProcessTick() {
	defer tickCount.WithLabelValues("process").Inc()
	for _, handler := range s.cfg.Registry.All() {
		if bridger, ok := handler.(chains.WormholeBridger); ok {
			s.runHandlerStep(handler.Name(), "bridging", bridger.ProcessWormholeBridging)
		}
		s.runHandlerStep(handler.Name(), "finalize", handler.ProcessFinalizeDeposits)
		s.runHandlerStep(handler.Name(), "initialize", handler.ProcessInitializeDeposits)
	}
	if s.cfg.Redemptions != nil {
		if err := s.cfg.Redemptions.Run(s.ctx); err != nil {
			tickErrorCount.WithLabelValues("process").Inc()
			log.WithError(err).Error("Redemption sweep failed")
		}
	}
}

// PastDepositsTick back-scans for missed deposit events on every chain
// supporting it. Handlers reporting an unknown chain head are skipped.
func (s *Service) PastDepositsTick() {
	defer tickCount.WithLabelValues("past_deposits").Inc()
	for _, handler := range s.cfg.Registry.All() {
		checker, ok := handler.(chains.PastDepositChecker)
		if !ok || !checker.SupportsPastDepositCheck() {
			continue
		}
		latestBlock, err := handler.LatestBlock(s.ctx)
		if err != nil {
			tickErrorCount.WithLabelValues("past_deposits").Inc()
			log.WithError(err).WithField("chainName", handler.Name()).Error("Could not fetch latest block")
			continue
		}
		if latestBlock <= 0 {
			log.WithField("chainName", handler.Name()).Debug("Chain head unknown, skipping back-scan")
			continue
		}
		if err := checker.CheckForPastDeposits(s.ctx, chains.PastDepositsOptions{
			PastTime:    s.cfg.Relayer.PastDepositsLookback,
			LatestBlock: latestBlock,
		}); err != nil {
			tickErrorCount.WithLabelValues("past_deposits").Inc()
			log.WithError(err).WithField("chainName", handler.Name()).Error("Past deposit check failed")
		}
	}
}

// CleanupTick runs the retention sweeps.
func (s *Service) CleanupTick() {
	defer tickCount.WithLabelValues("cleanup").Inc()
	start := time.Now()
	if err := s.cfg.Cleanup.Run(s.ctx); err != nil {
		tickErrorCount.WithLabelValues("cleanup").Inc()
		return
	}
	log.WithField("elapsed", time.Since(start)).Debug("Cleanup sweep finished")
}

func (s *Service) runHandlerStep(chainName, step string, f func(context.Context) error) {
	if err := f(s.ctx); err != nil {
		tickErrorCount.WithLabelValues("process").Inc()
		log.WithError(err).WithFields(logrus.Fields{
			"chainName": chainName,
			"step":      step,
		}).Error("Chain sweep step failed")
	}
}
