package types

// AuditEventType enumerates the append-only audit journal event kinds.
type AuditEventType string

// Audit event kinds.
const (
	AuditDepositCreated      AuditEventType = "DEPOSIT_CREATED"
	AuditStatusChange        AuditEventType = "STATUS_CHANGE"
	AuditDepositInitialized  AuditEventType = "DEPOSIT_INITIALIZED"
	AuditDepositFinalized    AuditEventType = "DEPOSIT_FINALIZED"
	AuditDepositAwaitingVAA  AuditEventType = "DEPOSIT_AWAITING_WORMHOLE_VAA"
	AuditDepositBridged      AuditEventType = "DEPOSIT_BRIDGED"
	AuditDepositDeleted      AuditEventType = "DEPOSIT_DELETED"
	AuditAPIRequest          AuditEventType = "API_REQUEST"
	AuditError               AuditEventType = "ERROR"
)

// AuditEvent is one entry of the append-only audit journal. Events carry a
// timestamp and event type, not a monotonic sequence; consumers must tolerate
// duplicates.
type AuditEvent struct {
	ID        string                 `json:"id"`
	Timestamp int64                  `json:"timestamp"` // epoch milliseconds
	EventType AuditEventType         `json:"eventType"`
	DepositID string                 `json:"depositId,omitempty"`
	ChainName string                 `json:"chainName,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	ErrorCode string                 `json:"errorCode,omitempty"`
}

// AuditFilter narrows audit log queries. Zero values match everything.
type AuditFilter struct {
	ChainName string
	DepositID string
	EventType AuditEventType
	Limit     int
}
