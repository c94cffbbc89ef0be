package types

import "time"

// DepositHashes groups per-chain-side transaction hashes of a deposit. Empty
// strings mean the corresponding transaction has not happened yet.
type DepositHashes struct {
	Btc struct {
		BtcTxHash string `json:"btcTxHash"`
	} `json:"btc"`
	Eth struct {
		InitializeTxHash string `json:"initializeTxHash"`
		FinalizeTxHash   string `json:"finalizeTxHash"`
	} `json:"eth"`
	Solana struct {
		BridgeTxHash string `json:"bridgeTxHash"`
	} `json:"solana"`
}

// DepositReceipt carries the reveal parameters of the Bitcoin deposit script.
type DepositReceipt struct {
	Depositor         string `json:"depositor"`
	BlindingFactor    string `json:"blindingFactor"`
	WalletPublicKeyHash string `json:"walletPublicKeyHash"`
	RefundPublicKeyHash string `json:"refundPublicKeyHash"`
	RefundLocktime    string `json:"refundLocktime"`
	ExtraData         string `json:"extraData"`
}

// FundingTransaction is the raw Bitcoin funding transaction split into the
// fields the L1 depositor contract consumes.
type FundingTransaction struct {
	Version      string `json:"version"`
	InputVector  string `json:"inputVector"`
	OutputVector string `json:"outputVector"`
	Locktime     string `json:"locktime"`
}

// Reveal mirrors the on-chain reveal struct of the tBTC bridge.
type Reveal struct {
	FundingOutputIndex  int64  `json:"fundingOutputIndex"`
	BlindingFactor      string `json:"blindingFactor"`
	WalletPublicKeyHash string `json:"walletPubKeyHash"`
	RefundPublicKeyHash string `json:"refundPubKeyHash"`
	RefundLocktime      string `json:"refundLocktime"`
	Vault               string `json:"vault"`
}

// L1OutputEvent preserves the original funding transaction fields together
// with the reveal and L2 ownership data.
type L1OutputEvent struct {
	FundingTx      FundingTransaction `json:"fundingTx"`
	Reveal         Reveal             `json:"reveal"`
	L2DepositOwner string             `json:"l2DepositOwner"`
	L2Sender       string             `json:"l2Sender"`
}

// DepositDates carries the lifecycle timestamps in epoch milliseconds. Nil
// means the corresponding phase has not been reached.
type DepositDates struct {
	CreatedAt                        *int64 `json:"createdAt"`
	InitializationAt                 *int64 `json:"initializationAt"`
	FinalizationAt                   *int64 `json:"finalizationAt"`
	AwaitingWormholeVAAMessageSince  *int64 `json:"awaitingWormholeVAAMessageSince"`
	BridgedAt                        *int64 `json:"bridgedAt"`
	LastActivityAt                   *int64 `json:"lastActivityAt"`
}

// WormholeInfo tracks the L1->L2 bridging tail of deposits on chains that
// cannot be finalized on L1 directly.
type WormholeInfo struct {
	TxHash            string `json:"txHash"`
	TransferSequence  string `json:"transferSequence"`
	BridgingAttempted bool   `json:"bridgingAttempted"`
}

// Deposit is the persisted record of a single Bitcoin -> destination chain
// tBTC mint operation.
type Deposit struct {
	ID            string        `json:"id"`
	ChainName     string        `json:"chainName"`
	FundingTxHash string        `json:"fundingTxHash"`
	OutputIndex   int64         `json:"outputIndex"`
	Owner         string        `json:"owner"`
	Hashes        DepositHashes `json:"hashes"`
	Receipt       DepositReceipt `json:"receipt"`
	L1OutputEvent L1OutputEvent `json:"l1OutputEvent"`
	Status        DepositStatus `json:"status"`
	Dates         DepositDates  `json:"dates"`
	WormholeInfo  WormholeInfo  `json:"wormholeInfo"`
	Error         string        `json:"error,omitempty"`
}

// EpochMillis converts a time to the epoch-millisecond representation used by
// record date fields.
func EpochMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// NowMillisPtr returns a pointer to the current epoch-millisecond timestamp.
func NowMillisPtr() *int64 {
	now := time.Now().UnixMilli()
	return &now
}
