package types

// RedemptionRequestedEvent carries the fields of the L2 RedemptionRequested
// event that created the redemption record.
type RedemptionRequestedEvent struct {
	WalletPublicKeyHash  string `json:"walletPubKeyHash"`
	MainUTXO             string `json:"mainUtxo"`
	RedeemerOutputScript string `json:"redeemerOutputScript"`
	Amount               string `json:"amount"`
	L2TransactionHash    string `json:"l2TransactionHash"`
}

// RedemptionDates carries the redemption lifecycle timestamps in epoch
// milliseconds. Nil means the corresponding phase has not been reached.
type RedemptionDates struct {
	CreatedAt      *int64 `json:"createdAt"`
	VAAFetchedAt   *int64 `json:"vaaFetchedAt"`
	L1SubmittedAt  *int64 `json:"l1SubmittedAt"`
	CompletedAt    *int64 `json:"completedAt"`
	LastActivityAt *int64 `json:"lastActivityAt"`
}

// Redemption is the persisted record of a single L2 -> L1 tBTC redemption.
type Redemption struct {
	ID                 string                   `json:"id"`
	ChainName          string                   `json:"chainName"`
	Event              RedemptionRequestedEvent `json:"event"`
	VAABytes           []byte                   `json:"vaaBytes,omitempty"`
	VAAStatus          string                   `json:"vaaStatus,omitempty"`
	VAAFetchAttempts   int                      `json:"vaaFetchAttempts"`
	L1SubmissionTxHash string                   `json:"l1SubmissionTxHash,omitempty"`
	Status             RedemptionStatus         `json:"status"`
	Error              string                   `json:"error,omitempty"`
	Dates              RedemptionDates          `json:"dates"`
	Logs               []string                 `json:"logs,omitempty"`
}

// RedemptionID derives the record identifier from the L2 transaction hash
// that emitted RedemptionRequested plus the chain name.
func RedemptionID(chainName, l2TransactionHash string) string {
	return chainName + "-" + l2TransactionHash
}
