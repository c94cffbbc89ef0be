package evm

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/btc"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/depositutil"
	"github.com/keep-network/tbtc-relayer/shared/params"
)

// l1BitcoinDepositorABI is the subset of the depositor contract surface the
// relayer drives.
const l1BitcoinDepositorABI = `[
	{"name":"initializeDeposit","type":"function","stateMutability":"nonpayable","inputs":[
		{"name":"fundingTx","type":"tuple","components":[
			{"name":"version","type":"bytes4"},
			{"name":"inputVector","type":"bytes"},
			{"name":"outputVector","type":"bytes"},
			{"name":"locktime","type":"bytes4"}]},
		{"name":"reveal","type":"tuple","components":[
			{"name":"fundingOutputIndex","type":"uint32"},
			{"name":"blindingFactor","type":"bytes8"},
			{"name":"walletPubKeyHash","type":"bytes20"},
			{"name":"refundPubKeyHash","type":"bytes20"},
			{"name":"refundLocktime","type":"bytes4"},
			{"name":"vault","type":"address"}]},
		{"name":"l2DepositOwner","type":"address"}],"outputs":[]},
	{"name":"finalizeDeposit","type":"function","stateMutability":"payable","inputs":[
		{"name":"depositKey","type":"uint256"}],"outputs":[]},
	{"name":"quoteFinalizeDeposit","type":"function","stateMutability":"view","inputs":[],"outputs":[
		{"name":"fee","type":"uint256"}]},
	{"name":"deposits","type":"function","stateMutability":"view","inputs":[
		{"name":"depositKey","type":"uint256"}],"outputs":[
		{"name":"state","type":"uint8"}]},
	{"name":"DepositInitialized","type":"event","inputs":[
		{"name":"fundingTxHash","type":"bytes32","indexed":true},
		{"name":"l2DepositOwner","type":"address","indexed":true},
		{"name":"fundingOutputIndex","type":"uint32","indexed":false}]}
]`

var depositInitializedTopic = crypto.Keccak256Hash(
	[]byte("DepositInitialized(bytes32,address,uint32)"),
)

// fundingTxInfo mirrors the fundingTx ABI tuple.
type fundingTxInfo struct {
	Version      [4]byte
	InputVector  []byte
	OutputVector []byte
	Locktime     [4]byte
}

// revealInfo mirrors the reveal ABI tuple.
type revealInfo struct {
	FundingOutputIndex uint32
	BlindingFactor     [8]byte
	WalletPubKeyHash   [20]byte
	RefundPubKeyHash   [20]byte
	RefundLocktime     [4]byte
	Vault              common.Address
}

func (h *Handler) depositInitializedQuery(fromBlock, toBlock *big.Int) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: []common.Address{common.HexToAddress(h.cfg.BitcoinDepositorAddr)},
		Topics:    [][]common.Hash{{depositInitializedTopic}},
	}
}

// handleDepositInitializedLog admits a reveal observed on-chain. Records the
// store already knows are left untouched.
func (h *Handler) handleDepositInitializedLog(ctx context.Context, l gethtypes.Log) error {
	if len(l.Topics) < 3 {
		return errors.New("malformed DepositInitialized log")
	}
	fundingTxHash := "0x" + hex.EncodeToString(l.Topics[1][:])
	owner := common.BytesToAddress(l.Topics[2][:]).Hex()
	unpacked, err := h.depositorABI.Unpack("DepositInitialized", l.Data)
	if err != nil {
		return errors.Wrap(err, "could not unpack DepositInitialized log")
	}
	outputIndex, ok := unpacked[0].(uint32)
	if !ok {
		return errors.New("unexpected DepositInitialized data layout")
	}

	var depositID string
	if h.cfg.Family == params.ChainFamilyStarkNet {
		depositID, err = depositutil.DepositIDStarkNet(fundingTxHash, int64(outputIndex))
	} else {
		depositID, err = depositutil.DepositID(fundingTxHash, int64(outputIndex))
	}
	if err != nil {
		return err
	}

	existing, err := h.db.Deposit(ctx, depositID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	now := types.NowMillisPtr()
	deposit := &types.Deposit{
		ID:            depositID,
		ChainName:     h.cfg.Name,
		FundingTxHash: fundingTxHash,
		OutputIndex:   int64(outputIndex),
		Owner:         owner,
		Status:        types.StatusQueued,
		Dates:         types.DepositDates{CreatedAt: now, LastActivityAt: now},
	}
	deposit.Hashes.Btc.BtcTxHash = fundingTxHash
	log.WithFields(map[string]interface{}{
		"chainName": h.cfg.Name,
		"depositId": depositID,
		"txHash":    l.TxHash.Hex(),
	}).Info("Admitting deposit observed on-chain")
	return h.manager.CreateDeposit(ctx, deposit)
}

func packFundingTx(tx types.FundingTransaction) (fundingTxInfo, error) {
	var out fundingTxInfo
	version, err := hexBytes(tx.Version)
	if err != nil || len(version) != 4 {
		return out, errors.New("malformed funding tx version")
	}
	copy(out.Version[:], version)
	if out.InputVector, err = hexBytes(tx.InputVector); err != nil {
		return out, errors.Wrap(err, "malformed funding tx input vector")
	}
	if out.OutputVector, err = hexBytes(tx.OutputVector); err != nil {
		return out, errors.Wrap(err, "malformed funding tx output vector")
	}
	locktime, err := hexBytes(tx.Locktime)
	if err != nil || len(locktime) != 4 {
		return out, errors.New("malformed funding tx locktime")
	}
	copy(out.Locktime[:], locktime)
	return out, nil
}

func packReveal(reveal types.Reveal) (revealInfo, error) {
	var out revealInfo
	if reveal.FundingOutputIndex < 0 || reveal.FundingOutputIndex > depositutil.MaxFundingOutputIndex {
		return out, errors.New("funding output index out of range")
	}
	out.FundingOutputIndex = uint32(reveal.FundingOutputIndex)
	if err := copyFixed(out.BlindingFactor[:], reveal.BlindingFactor); err != nil {
		return out, errors.Wrap(err, "malformed blinding factor")
	}
	if err := copyFixed(out.WalletPubKeyHash[:], reveal.WalletPublicKeyHash); err != nil {
		return out, errors.Wrap(err, "malformed wallet public key hash")
	}
	if err := copyFixed(out.RefundPubKeyHash[:], reveal.RefundPublicKeyHash); err != nil {
		return out, errors.Wrap(err, "malformed refund public key hash")
	}
	locktime, err := locktimeBytes(reveal.RefundLocktime)
	if err != nil {
		return out, errors.Wrap(err, "malformed refund locktime")
	}
	copy(out.RefundLocktime[:], locktime)
	out.Vault = common.HexToAddress(reveal.Vault)
	return out, nil
}

func hexBytes(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}

// locktimeBytes accepts the reveal locktime either as raw 4-byte hex or as a
// decimal epoch, which Bitcoin consensus encodes little-endian.
func locktimeBytes(s string) ([]byte, error) {
	if btc.IsHexBytes(s, 4) {
		return hexBytes(s)
	}
	epoch, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(epoch))
	return out, nil
}

func copyFixed(dst []byte, src string) error {
	raw, err := hexBytes(src)
	if err != nil {
		return err
	}
	if len(raw) != len(dst) {
		return errors.Errorf("want %d bytes, got %d", len(dst), len(raw))
	}
	copy(dst, raw)
	return nil
}
