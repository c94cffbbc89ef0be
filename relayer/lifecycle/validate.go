package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/keep-network/tbtc-relayer/relayer/btc"
	"github.com/keep-network/tbtc-relayer/relayer/types"
	"github.com/keep-network/tbtc-relayer/shared/depositutil"
)

// ValidationError rejects a malformed reveal, enumerating the offending
// fields. It is surfaced to the caller; no record is created.
type ValidationError struct {
	FieldErrors map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for field := range e.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, e.FieldErrors[field]))
	}
	return "invalid reveal: " + strings.Join(parts, "; ")
}

// RevealRequest is the ingress payload creating a deposit.
type RevealRequest struct {
	FundingTx      types.FundingTransaction `json:"fundingTx"`
	Reveal         types.Reveal             `json:"reveal"`
	L2DepositOwner string                   `json:"l2DepositOwner"`
	L2Sender       string                   `json:"l2Sender"`
}

// validateReveal checks field presence, hex-ness of byte fields,
// Ethereum-address-ness of address fields, and the output index range.
func validateReveal(fundingTxHash string, req *RevealRequest) error {
	fieldErrors := make(map[string]string)

	if !btc.IsHexBytes(fundingTxHash, 32) {
		fieldErrors["fundingTxHash"] = "must be a 66-character 0x-prefixed hex string"
	}
	if req.Reveal.FundingOutputIndex < 0 || req.Reveal.FundingOutputIndex > depositutil.MaxFundingOutputIndex {
		fieldErrors["fundingOutputIndex"] = "must be a non-negative integer within uint32 range"
	}
	if !btc.IsHexBytes(req.Reveal.BlindingFactor, 8) {
		fieldErrors["blindingFactor"] = "must be 8 bytes of 0x-prefixed hex"
	}
	if !btc.IsHexBytes(req.Reveal.WalletPublicKeyHash, 20) {
		fieldErrors["walletPubKeyHash"] = "must be 20 bytes of 0x-prefixed hex"
	}
	if !btc.IsHexBytes(req.Reveal.RefundPublicKeyHash, 20) {
		fieldErrors["refundPubKeyHash"] = "must be 20 bytes of 0x-prefixed hex"
	}
	if !btc.IsNumericString(req.Reveal.RefundLocktime) && !btc.IsHexBytes(req.Reveal.RefundLocktime, 4) {
		fieldErrors["refundLocktime"] = "must be a numeric string or 4 bytes of 0x-prefixed hex"
	}
	if req.Reveal.Vault != "" && !common.IsHexAddress(req.Reveal.Vault) {
		fieldErrors["vault"] = "must be an Ethereum address"
	}
	if !common.IsHexAddress(req.L2DepositOwner) {
		fieldErrors["l2DepositOwner"] = "must be an Ethereum address"
	}
	if !common.IsHexAddress(req.L2Sender) {
		fieldErrors["l2Sender"] = "must be an Ethereum address"
	}
	for field, value := range map[string]string{
		"fundingTx.version":      req.FundingTx.Version,
		"fundingTx.inputVector":  req.FundingTx.InputVector,
		"fundingTx.outputVector": req.FundingTx.OutputVector,
		"fundingTx.locktime":     req.FundingTx.Locktime,
	} {
		if !btc.IsHexBytes(value, 0) {
			fieldErrors[field] = "must be a 0x-prefixed hex string"
		}
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{FieldErrors: fieldErrors}
	}
	return nil
}
