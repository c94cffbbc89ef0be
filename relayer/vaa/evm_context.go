package vaa

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	sdkvaa "github.com/wormhole-foundation/wormhole/sdk/vaa"
)

const evmCoreABI = `[
	{"name":"LogMessagePublished","type":"event","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"sequence","type":"uint64","indexed":false},
		{"name":"nonce","type":"uint32","indexed":false},
		{"name":"payload","type":"bytes","indexed":false},
		{"name":"consistencyLevel","type":"uint8","indexed":false}]}
]`

const evmTokenBridgeQueryABI = `[
	{"name":"isTransferCompleted","type":"function","stateMutability":"view","inputs":[
		{"name":"hash","type":"bytes32"}],"outputs":[
		{"name":"","type":"bool"}]}
]`

var evmLogMessagePublishedTopic = crypto.Keccak256Hash(
	[]byte("LogMessagePublished(address,uint64,uint32,bytes,uint8)"),
)

// EVMContext implements ChainContext for EVM chains carrying a Wormhole core
// and token bridge deployment.
type EVMContext struct {
	client          *ethclient.Client
	chainID         sdkvaa.ChainID
	coreAddr        common.Address
	tokenBridgeAddr common.Address
	coreABI         abi.ABI
}

var _ ChainContext = (*EVMContext)(nil)

// NewEVMContext dials the RPC endpoint and prepares the Wormhole contract
// handles for the given chain.
func NewEVMContext(ctx context.Context, rpcEndpoint string, chainID sdkvaa.ChainID, coreAddr, tokenBridgeAddr string) (*EVMContext, error) {
	client, err := ethclient.DialContext(ctx, rpcEndpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "could not dial RPC endpoint for chain %d", chainID)
	}
	coreABI, err := abi.JSON(strings.NewReader(evmCoreABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse Wormhole core ABI")
	}
	return &EVMContext{
		client:          client,
		chainID:         chainID,
		coreAddr:        common.HexToAddress(coreAddr),
		tokenBridgeAddr: common.HexToAddress(tokenBridgeAddr),
		coreABI:         coreABI,
	}, nil
}

// TransactionReceipt implements ChainContext. An unknown transaction yields a
// nil receipt without an error.
func (c *EVMContext) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := c.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch receipt for %s", txHash)
	}
	return &Receipt{
		TransactionHash: txHash,
		Status:          receipt.Status,
		Raw:             receipt,
	}, nil
}

// ParseWormholeMessages implements ChainContext by decoding every
// LogMessagePublished event the core contract emitted in the receipt.
func (c *EVMContext) ParseWormholeMessages(receipt *Receipt) ([]Message, error) {
	gethReceipt, ok := receipt.Raw.(*gethtypes.Receipt)
	if !ok {
		return nil, errors.New("receipt does not carry an EVM receipt")
	}
	var messages []Message
	for _, logEntry := range gethReceipt.Logs {
		if logEntry.Address != c.coreAddr {
			continue
		}
		if len(logEntry.Topics) < 2 || logEntry.Topics[0] != evmLogMessagePublishedTopic {
			continue
		}
		unpacked, err := c.coreABI.Events["LogMessagePublished"].Inputs.NonIndexed().Unpack(logEntry.Data)
		if err != nil {
			return nil, errors.Wrap(err, "could not unpack LogMessagePublished")
		}
		sequence, ok := unpacked[0].(uint64)
		if !ok {
			return nil, errors.New("LogMessagePublished sequence has unexpected type")
		}
		// The emitter is the log sender address left-padded to 32 bytes.
		var emitter sdkvaa.Address
		copy(emitter[12:], logEntry.Topics[1].Bytes()[12:])
		messages = append(messages, Message{
			ChainID:  c.chainID,
			Emitter:  emitter,
			Sequence: sequence,
		})
	}
	return messages, nil
}

// TokenBridge implements ChainContext.
func (c *EVMContext) TokenBridge() (TokenBridge, error) {
	parsed, err := abi.JSON(strings.NewReader(evmTokenBridgeQueryABI))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse token bridge ABI")
	}
	contract := bind.NewBoundContract(c.tokenBridgeAddr, parsed, c.client, c.client, c.client)
	return &evmTokenBridge{contract: contract}, nil
}

type evmTokenBridge struct {
	contract *bind.BoundContract
}

// IsTransferCompleted checks the VAA digest against the bridge's completed
// transfer set.
func (b *evmTokenBridge) IsTransferCompleted(ctx context.Context, parsed *ParsedVAA) (bool, error) {
	digest := parsed.VAA.SigningDigest()
	var out []interface{}
	err := b.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isTransferCompleted", digest)
	if err != nil {
		return false, errors.Wrap(err, "isTransferCompleted call failed")
	}
	if len(out) != 1 {
		return false, errors.New("isTransferCompleted returned unexpected outputs")
	}
	completed, ok := out[0].(bool)
	if !ok {
		return false, errors.New("isTransferCompleted returned a non-bool")
	}
	return completed, nil
}
