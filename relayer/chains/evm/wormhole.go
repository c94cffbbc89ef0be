package evm

import (
	"context"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// wormholeCoreABI covers the core contract event carrying the message
// sequence of a published transfer.
const wormholeCoreABI = `[
	{"name":"LogMessagePublished","type":"event","inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"sequence","type":"uint64","indexed":false},
		{"name":"nonce","type":"uint32","indexed":false},
		{"name":"payload","type":"bytes","indexed":false},
		{"name":"consistencyLevel","type":"uint8","indexed":false}]}
]`

var logMessagePublishedTopic = crypto.Keccak256Hash(
	[]byte("LogMessagePublished(address,uint64,uint32,bytes,uint8)"),
)

// WormholeSequence extracts the Wormhole transfer sequence emitted by an L1
// transaction. It scans the receipt for the core contract's
// LogMessagePublished event and returns the sequence in decimal form.
func (h *Handler) WormholeSequence(ctx context.Context, txHash string) (string, error) {
	receipt, err := h.l1Client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return "", errors.Wrapf(err, "could not fetch receipt for %s", txHash)
	}
	coreABI, err := abi.JSON(strings.NewReader(wormholeCoreABI))
	if err != nil {
		return "", errors.Wrap(err, "could not parse core ABI")
	}
	coreAddr := common.HexToAddress(h.cfg.WormholeCoreAddr)
	for _, l := range receipt.Logs {
		if l.Address != coreAddr || len(l.Topics) == 0 || l.Topics[0] != logMessagePublishedTopic {
			continue
		}
		unpacked, err := coreABI.Unpack("LogMessagePublished", l.Data)
		if err != nil {
			return "", errors.Wrap(err, "could not unpack LogMessagePublished")
		}
		sequence, ok := unpacked[0].(uint64)
		if !ok {
			return "", errors.New("unexpected LogMessagePublished data layout")
		}
		return strconv.FormatUint(sequence, 10), nil
	}
	return "", errors.Errorf("transaction %s published no Wormhole message", txHash)
}
