package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keep-network/tbtc-relayer/shared/testutil/assert"
	"github.com/keep-network/tbtc-relayer/shared/testutil/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chains.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadChainConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
l1:
  rpcEndpoint: https://eth.example
  wormholeChainId: 2
  wormholeCoreAddress: "0x98f3c9e6E3fAce36bAAd05FE09d375Ef1464288B"
  wormholeTokenBridgeAddress: "0x3ee18B2214AFF97000D974cf647E7C347E8fa585"
chains:
  - name: ArbitrumOne
    family: evm
    l2RpcEndpoint: https://arb.example
    l1RpcEndpoint: https://eth.example
    wormholeChainId: 23
    emitterAddress: "0x0000000000000000000000001293a54e160d1cd7075487898d65266081a15458"
    supportsRevealDeposit: true
  - name: SolanaMainnet
    family: solana
    l2RpcEndpoint: https://sol.example
    useEndpoint: true
`)

	cfg, err := LoadChainConfigFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, len(cfg.Chains))
	assert.Equal(t, "https://eth.example", cfg.L1.RPCEndpoint)
	assert.Equal(t, uint16(2), cfg.L1.WormholeChainID)
	assert.Equal(t, "ArbitrumOne", cfg.Chains[0].Name)
	assert.Equal(t, ChainFamilyEVM, cfg.Chains[0].Family)
	assert.Equal(t, uint16(23), cfg.Chains[0].WormholeChainID)
	assert.Equal(t, true, cfg.Chains[0].SupportsRevealDeposit)
	assert.Equal(t, ChainFamilySolana, cfg.Chains[1].Family)
	assert.Equal(t, true, cfg.Chains[1].UseEndpoint)
}

func TestLoadChainConfigFile_RejectsDuplicateNames(t *testing.T) {
	path := writeConfigFile(t, `
chains:
  - name: ArbitrumOne
    family: evm
  - name: ArbitrumOne
    family: evm
`)
	_, err := LoadChainConfigFile(path)
	require.ErrorContains(t, "duplicate chain block", err)
}

func TestLoadChainConfigFile_RejectsMissingFamily(t *testing.T) {
	path := writeConfigFile(t, `
chains:
  - name: ArbitrumOne
`)
	_, err := LoadChainConfigFile(path)
	require.ErrorContains(t, "missing a family", err)
}

func TestLoadChainConfigFile_RejectsUnsupportedFamily(t *testing.T) {
	path := writeConfigFile(t, `
chains:
  - name: SuiMainnet
    family: sui
`)
	_, err := LoadChainConfigFile(path)
	require.ErrorContains(t, `chain SuiMainnet has unsupported family "sui"`, err)
}

func TestLoadChainConfigFile_MissingFile(t *testing.T) {
	_, err := LoadChainConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, "could not read chain config file", err)
}
