package redemptions

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/types"
)

// tokenBridgeABI is the single redemption entry point the relayer drives on
// the L1 token bridge.
const tokenBridgeABI = `[
	{"name":"completeTransferWithPayload","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"encodedVm","type":"bytes"}],"outputs":[
		{"name":"","type":"bytes"}]}
]`

const submitWaitTimeout = 3 * time.Minute

// EthereumSubmitter redeems verified VAAs on the L1 token bridge.
type EthereumSubmitter struct {
	client   *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts

	// mu serializes submissions so the nonce sequence never forks.
	mu sync.Mutex
}

var _ L1Submitter = (*EthereumSubmitter)(nil)

// NewEthereumSubmitter dials the L1 endpoint and binds the token bridge.
func NewEthereumSubmitter(ctx context.Context, rpcEndpoint, tokenBridgeAddr, privateKey string) (*EthereumSubmitter, error) {
	client, err := ethclient.DialContext(ctx, rpcEndpoint)
	if err != nil {
		return nil, errors.Wrap(err, "could not dial L1 RPC endpoint")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse submitter private key")
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch L1 chain ID")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, errors.Wrap(err, "could not build transactor")
	}
	parsed, err := abi.JSON(strings.NewReader(tokenBridgeABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse token bridge ABI")
	}
	contract := bind.NewBoundContract(common.HexToAddress(tokenBridgeAddr), parsed, client, client, client)
	return &EthereumSubmitter{client: client, contract: contract, opts: opts}, nil
}

// SubmitRedemption implements L1Submitter by redeeming the VAA through
// completeTransferWithPayload and waiting for the transaction to be mined.
func (s *EthereumSubmitter) SubmitRedemption(ctx context.Context, redemption *types.Redemption) (string, error) {
	if len(redemption.VAABytes) == 0 {
		return "", errors.New("redemption has no VAA bytes")
	}
	s.mu.Lock()
	opts := *s.opts
	opts.Context = ctx
	tx, err := s.contract.Transact(&opts, "completeTransferWithPayload", redemption.VAABytes)
	s.mu.Unlock()
	if err != nil {
		return "", errors.Wrap(err, "completeTransferWithPayload transaction failed")
	}

	waitCtx, cancel := context.WithTimeout(ctx, submitWaitTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, s.client, tx)
	if err != nil {
		return "", errors.Wrapf(err, "transaction %s not mined", tx.Hash().Hex())
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return "", errors.Errorf("completeTransferWithPayload reverted in %s", receipt.TxHash.Hex())
	}
	return receipt.TxHash.Hex(), nil
}
