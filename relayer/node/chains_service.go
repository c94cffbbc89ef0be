package node

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/chains"
)

// chainsService brings every registered chain handler online: provider
// connections first, then event listeners. Handlers that fail to come up are
// reported through Status without blocking the rest of the node.
type chainsService struct {
	ctx      context.Context
	registry *chains.Registry

	mu       sync.Mutex
	failures map[string]error
}

func newChainsService(ctx context.Context, registry *chains.Registry) *chainsService {
	return &chainsService{
		ctx:      ctx,
		registry: registry,
		failures: make(map[string]error),
	}
}

// Start implements shared.Service.
func (s *chainsService) Start() {
	for _, handler := range s.registry.All() {
		go s.bringUp(handler)
	}
}

func (s *chainsService) bringUp(handler chains.Handler) {
	name := handler.Name()
	if err := handler.Initialize(s.ctx); err != nil {
		log.WithError(err).WithField("chainName", name).Error("Could not initialize chain handler")
		s.recordFailure(name, errors.Wrap(err, "initialize"))
		return
	}
	if err := handler.SetupListeners(s.ctx); err != nil {
		log.WithError(err).WithField("chainName", name).Error("Could not set up chain listeners")
		s.recordFailure(name, errors.Wrap(err, "listeners"))
		return
	}
	s.recordFailure(name, nil)
}

func (s *chainsService) recordFailure(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, name)
		return
	}
	s.failures[name] = err
}

// Stop implements shared.Service. Handler teardown rides on context
// cancellation.
func (s *chainsService) Stop() error {
	return nil
}

// Status implements shared.Service with the first recorded handler failure.
func (s *chainsService) Status() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, err := range s.failures {
		return errors.Wrapf(err, "chain %s is unhealthy", name)
	}
	return nil
}
