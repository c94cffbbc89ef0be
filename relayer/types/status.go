// Package types defines the persisted record shapes shared across the
// relayer: deposits, redemptions, and audit events.
package types

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DepositStatus enumerates the deposit lifecycle phases. The integer order is
// the transition order; transitions only move forward.
type DepositStatus int

// Deposit lifecycle phases.
const (
	StatusQueued DepositStatus = iota
	StatusInitialized
	StatusFinalized
	StatusAwaitingWormholeVAA
	StatusBridged
)

var depositStatusNames = map[DepositStatus]string{
	StatusQueued:              "QUEUED",
	StatusInitialized:         "INITIALIZED",
	StatusFinalized:           "FINALIZED",
	StatusAwaitingWormholeVAA: "AWAITING_WORMHOLE_VAA",
	StatusBridged:             "BRIDGED",
}

var depositStatusValues = map[string]DepositStatus{
	"QUEUED":                StatusQueued,
	"INITIALIZED":           StatusInitialized,
	"FINALIZED":             StatusFinalized,
	"AWAITING_WORMHOLE_VAA": StatusAwaitingWormholeVAA,
	"BRIDGED":               StatusBridged,
}

func (s DepositStatus) String() string {
	if name, ok := depositStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON renders the status by name so records remain readable in the
// store and stable across enum reordering.
func (s DepositStatus) MarshalJSON() ([]byte, error) {
	name, ok := depositStatusNames[s]
	if !ok {
		return nil, errors.Errorf("unknown deposit status: %d", s)
	}
	return json.Marshal(name)
}

// UnmarshalJSON parses a status name.
func (s *DepositStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	status, ok := depositStatusValues[name]
	if !ok {
		return errors.Errorf("unknown deposit status: %s", name)
	}
	*s = status
	return nil
}

// RedemptionStatus enumerates the redemption lifecycle phases.
type RedemptionStatus int

// Redemption lifecycle phases. VAAFailed and Failed are terminal failure
// branches; the happy path is Pending -> VAAFetched -> Completed.
const (
	RedemptionPending RedemptionStatus = iota
	RedemptionVAAFetched
	RedemptionCompleted
	RedemptionVAAFailed
	RedemptionFailed
)

var redemptionStatusNames = map[RedemptionStatus]string{
	RedemptionPending:    "PENDING",
	RedemptionVAAFetched: "VAA_FETCHED",
	RedemptionCompleted:  "COMPLETED",
	RedemptionVAAFailed:  "VAA_FAILED",
	RedemptionFailed:     "FAILED",
}

var redemptionStatusValues = map[string]RedemptionStatus{
	"PENDING":     RedemptionPending,
	"VAA_FETCHED": RedemptionVAAFetched,
	"COMPLETED":   RedemptionCompleted,
	"VAA_FAILED":  RedemptionVAAFailed,
	"FAILED":      RedemptionFailed,
}

func (s RedemptionStatus) String() string {
	if name, ok := redemptionStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// MarshalJSON renders the status by name.
func (s RedemptionStatus) MarshalJSON() ([]byte, error) {
	name, ok := redemptionStatusNames[s]
	if !ok {
		return nil, errors.Errorf("unknown redemption status: %d", s)
	}
	return json.Marshal(name)
}

// UnmarshalJSON parses a status name.
func (s *RedemptionStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	status, ok := redemptionStatusValues[name]
	if !ok {
		return errors.Errorf("unknown redemption status: %s", name)
	}
	*s = status
	return nil
}
