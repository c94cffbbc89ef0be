package params

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

var log = logrus.WithField("prefix", "params")

// ChainFamily groups chains by the shape of their deposit key derivation and
// finalization path.
type ChainFamily string

const (
	// ChainFamilyEVM covers Ethereum L2s whose deposit keys reverse the
	// funding tx hash byte order.
	ChainFamilyEVM ChainFamily = "evm"
	// ChainFamilyStarkNet uses the unreversed funding tx hash.
	ChainFamilyStarkNet ChainFamily = "starknet"
	// ChainFamilySolana requires the Wormhole bridging tail after L1
	// finalization.
	ChainFamilySolana ChainFamily = "solana"
)

var supportedFamilies = map[ChainFamily]bool{
	ChainFamilyEVM:      true,
	ChainFamilyStarkNet: true,
	ChainFamilySolana:   true,
}

// ChainConfig is one per-chain block of the relayer configuration file.
type ChainConfig struct {
	Name                  string      `yaml:"name"`
	Family                ChainFamily `yaml:"family"`
	L2RPCEndpoint         string      `yaml:"l2RpcEndpoint"`
	L1RPCEndpoint         string      `yaml:"l1RpcEndpoint"`
	BitcoinDepositorAddr  string      `yaml:"bitcoinDepositorAddress"`
	L1BitcoinDepositorAddr string     `yaml:"l1BitcoinDepositorAddress"`
	WormholeChainID       uint16      `yaml:"wormholeChainId"`
	WormholeCoreAddr      string      `yaml:"wormholeCoreAddress"`
	WormholeTokenBridge   string      `yaml:"wormholeTokenBridgeAddress"`
	EmitterAddress        string      `yaml:"emitterAddress"`
	Confirmations         uint64      `yaml:"confirmations"`
	PrivateKey            string      `yaml:"privateKey"`
	SupportsRevealDeposit bool        `yaml:"supportsRevealDeposit"`
	UseEndpoint           bool        `yaml:"useEndpoint"`
}

// L1Config describes the shared Ethereum L1 deployment: the RPC endpoint and
// the Wormhole contracts redemptions are completed against.
type L1Config struct {
	RPCEndpoint         string `yaml:"rpcEndpoint"`
	WormholeChainID     uint16 `yaml:"wormholeChainId"`
	WormholeCoreAddr    string `yaml:"wormholeCoreAddress"`
	WormholeTokenBridge string `yaml:"wormholeTokenBridgeAddress"`
}

// RelayerFileConfig is the root of the YAML configuration file.
type RelayerFileConfig struct {
	L1     L1Config      `yaml:"l1"`
	Chains []ChainConfig `yaml:"chains"`
}

// LoadChainConfigFile reads and validates the per-chain configuration file.
func LoadChainConfigFile(path string) (*RelayerFileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read chain config file")
	}
	cfg := &RelayerFileConfig{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "could not parse chain config file")
	}
	seen := make(map[string]bool, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		if chain.Name == "" {
			return nil, errors.New("chain block is missing a name")
		}
		if seen[chain.Name] {
			return nil, errors.Errorf("duplicate chain block: %s", chain.Name)
		}
		seen[chain.Name] = true
		if chain.Family == "" {
			return nil, errors.Errorf("chain %s is missing a family", chain.Name)
		}
		if !supportedFamilies[chain.Family] {
			return nil, errors.Errorf(
				"chain %s has unsupported family %q, supported families are evm, starknet, solana",
				chain.Name, chain.Family,
			)
		}
	}
	log.WithField("chains", len(cfg.Chains)).Info("Loaded chain configuration")
	return cfg, nil
}
