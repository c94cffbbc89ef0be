// Package node is the main service which launches the relayer and manages
// the lifecycle of all its associated services at runtime, such as chain
// handlers, the scheduler, and the HTTP API, gracefully closing them if the
// process ends.
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"

	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/api"
	"github.com/keep-network/tbtc-relayer/relayer/chains"
	"github.com/keep-network/tbtc-relayer/relayer/chains/evm"
	"github.com/keep-network/tbtc-relayer/relayer/chains/solana"
	"github.com/keep-network/tbtc-relayer/relayer/cleanup"
	"github.com/keep-network/tbtc-relayer/relayer/db"
	"github.com/keep-network/tbtc-relayer/relayer/flags"
	"github.com/keep-network/tbtc-relayer/relayer/lifecycle"
	"github.com/keep-network/tbtc-relayer/relayer/redemptions"
	"github.com/keep-network/tbtc-relayer/relayer/scheduler"
	"github.com/keep-network/tbtc-relayer/relayer/vaa"
	"github.com/keep-network/tbtc-relayer/shared"
	"github.com/keep-network/tbtc-relayer/shared/params"
	"github.com/keep-network/tbtc-relayer/shared/prometheus"
)

var log = logrus.WithField("prefix", "node")

// RelayerNode handles the lifecycle of the entire system and registers
// services to a service registry.
type RelayerNode struct {
	cliCtx        *cli.Context
	ctx           context.Context
	cancel        context.CancelFunc
	services      *shared.ServiceRegistry
	lock          sync.RWMutex
	stop          chan struct{} // Channel to wait for termination notifications.
	db            db.Database
	chainRegistry *chains.Registry
}

// New creates a new node instance, sets up configuration options, and
// registers every required service to the node.
func New(cliCtx *cli.Context) (*RelayerNode, error) {
	fileCfg, err := params.LoadChainConfigFile(cliCtx.String(flags.ChainConfigFileFlag.Name))
	if err != nil {
		return nil, err
	}

	registry := shared.NewServiceRegistry()
	ctx, cancel := context.WithCancel(cliCtx.Context)
	node := &RelayerNode{
		cliCtx:        cliCtx,
		ctx:           ctx,
		cancel:        cancel,
		services:      registry,
		stop:          make(chan struct{}),
		chainRegistry: chains.NewRegistry(),
	}

	if err := node.startDB(cliCtx); err != nil {
		cancel()
		return nil, err
	}

	manager := lifecycle.NewManager(node.db)

	guardian := vaa.NewGuardianSource(cliCtx.String(flags.GuardianAPIURLFlag.Name))
	verifier := vaa.NewService(guardian, node.buildContextProvider(ctx, fileCfg), params.Relayer())

	if err := node.registerChainHandlers(fileCfg, manager, guardian); err != nil {
		cancel()
		return nil, err
	}

	if err := node.registerSchedulerService(cliCtx, fileCfg, manager, verifier); err != nil {
		cancel()
		return nil, err
	}

	if err := node.registerAPIService(cliCtx, manager); err != nil {
		cancel()
		return nil, err
	}

	if !cliCtx.Bool(flags.DisableMonitoringFlag.Name) {
		if err := node.registerPrometheusService(cliCtx); err != nil {
			cancel()
			return nil, err
		}
	}

	return node, nil
}

// Start the RelayerNode and kicks off every registered service.
func (n *RelayerNode) Start() {
	n.lock.Lock()

	log.Info("Starting relayer node")
	n.services.StartAll()

	stop := n.stop
	n.lock.Unlock()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the relayer node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *RelayerNode) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	log.Info("Stopping relayer node")
	n.services.StopAll()
	if err := n.db.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
	}
	n.cancel()
	close(n.stop)
}

func (n *RelayerNode) startDB(cliCtx *cli.Context) error {
	baseDir := cliCtx.String(flags.DataDirFlag.Name)
	log.WithField("databasePath", baseDir).Info("Checking DB")
	d, err := db.NewDB(baseDir)
	if err != nil {
		return errors.Wrap(err, "could not open database")
	}
	n.db = d
	return nil
}

// buildContextProvider resolves Wormhole chain IDs to lazily dialed EVM
// contexts. Chains without Wormhole contracts configured are not resolvable.
func (n *RelayerNode) buildContextProvider(ctx context.Context, fileCfg *params.RelayerFileConfig) vaa.ContextProvider {
	contexts := make(map[sdkvaa.ChainID]vaa.ChainContext)
	for i := range fileCfg.Chains {
		chain := fileCfg.Chains[i]
		if chain.Family != params.ChainFamilyEVM || chain.WormholeCoreAddr == "" {
			continue
		}
		chainCtx, err := vaa.NewEVMContext(
			ctx,
			chain.L2RPCEndpoint,
			sdkvaa.ChainID(chain.WormholeChainID),
			chain.WormholeCoreAddr,
			chain.WormholeTokenBridge,
		)
		if err != nil {
			log.WithError(err).WithField("chainName", chain.Name).Error("Could not build chain context")
			continue
		}
		contexts[sdkvaa.ChainID(chain.WormholeChainID)] = chainCtx
	}
	if fileCfg.L1.RPCEndpoint != "" {
		l1Ctx, err := vaa.NewEVMContext(
			ctx,
			fileCfg.L1.RPCEndpoint,
			l1ChainID(fileCfg),
			fileCfg.L1.WormholeCoreAddr,
			fileCfg.L1.WormholeTokenBridge,
		)
		if err != nil {
			log.WithError(err).Error("Could not build L1 chain context")
		} else {
			contexts[l1ChainID(fileCfg)] = l1Ctx
		}
	}
	return func(chainID sdkvaa.ChainID) (vaa.ChainContext, error) {
		chainCtx, ok := contexts[chainID]
		if !ok {
			return nil, errors.Errorf("no chain context for Wormhole chain %d", chainID)
		}
		return chainCtx, nil
	}
}

func (n *RelayerNode) registerChainHandlers(
	fileCfg *params.RelayerFileConfig,
	manager *lifecycle.Manager,
	guardian vaa.Source,
) error {
	for i := range fileCfg.Chains {
		chainCfg := fileCfg.Chains[i]
		var handler chains.Handler
		switch chainCfg.Family {
		case params.ChainFamilyEVM, params.ChainFamilyStarkNet:
			handler = evm.NewHandler(&chainCfg, n.db, manager)
		case params.ChainFamilySolana:
			l1 := evm.NewHandler(&chainCfg, n.db, manager)
			handler = solana.NewHandler(&chainCfg, n.db, manager, l1, guardian, nil)
		default:
			return errors.Errorf("unsupported chain family %q for chain %s", chainCfg.Family, chainCfg.Name)
		}
		if err := n.chainRegistry.Register(handler); err != nil {
			return err
		}
	}
	return n.services.RegisterService(newChainsService(n.ctx, n.chainRegistry))
}

func (n *RelayerNode) registerSchedulerService(
	cliCtx *cli.Context,
	fileCfg *params.RelayerFileConfig,
	manager *lifecycle.Manager,
	verifier *vaa.Service,
) error {
	redemptionChains := make(map[string]redemptions.ChainParams)
	for _, chain := range fileCfg.Chains {
		if chain.EmitterAddress == "" {
			continue
		}
		redemptionChains[chain.Name] = redemptions.ChainParams{
			EmitterChainID:  sdkvaa.ChainID(chain.WormholeChainID),
			EmitterAddress:  chain.EmitterAddress,
			TargetL1ChainID: l1ChainID(fileCfg),
		}
	}

	var submitter redemptions.L1Submitter
	submitterKey := cliCtx.String(flags.L1SubmitterKeyFlag.Name)
	if submitterKey != "" && fileCfg.L1.RPCEndpoint != "" {
		ethSubmitter, err := redemptions.NewEthereumSubmitter(
			n.ctx,
			fileCfg.L1.RPCEndpoint,
			fileCfg.L1.WormholeTokenBridge,
			submitterKey,
		)
		if err != nil {
			return errors.Wrap(err, "could not build L1 redemption submitter")
		}
		submitter = ethSubmitter
	}

	processor := redemptions.NewProcessor(n.db, manager, verifier, submitter, redemptionChains, params.Relayer())
	engine := cleanup.NewEngine(n.db, params.Relayer())

	svc := scheduler.NewService(n.ctx, &scheduler.Config{
		Registry:    n.chainRegistry,
		Cleanup:     engine,
		Redemptions: processor,
		Relayer:     params.Relayer(),
	})
	return n.services.RegisterService(svc)
}

func (n *RelayerNode) registerAPIService(cliCtx *cli.Context, manager *lifecycle.Manager) error {
	svc := api.NewService(&api.Config{
		Host:            cliCtx.String(flags.APIHostFlag.Name),
		Port:            strconv.Itoa(cliCtx.Int(flags.APIPortFlag.Name)),
		LifecycleAPI:    lifecycle.NewAPI(manager, n.chainRegistry),
		Registry:        n.chainRegistry,
		DB:              n.db,
		ServiceRegistry: n.services,
	})
	return n.services.RegisterService(svc)
}

func (n *RelayerNode) registerPrometheusService(cliCtx *cli.Context) error {
	logrus.AddHook(prometheus.NewLogrusCollector())
	svc := prometheus.NewPrometheusService(
		fmt.Sprintf("%s:%d", cliCtx.String(flags.MonitoringHostFlag.Name), cliCtx.Int(flags.MonitoringPortFlag.Name)),
		n.services,
	)
	return n.services.RegisterService(svc)
}

func l1ChainID(fileCfg *params.RelayerFileConfig) sdkvaa.ChainID {
	if fileCfg.L1.WormholeChainID != 0 {
		return sdkvaa.ChainID(fileCfg.L1.WormholeChainID)
	}
	return sdkvaa.ChainIDEthereum
}
