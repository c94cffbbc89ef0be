package kv

// The relayer schema keeps records and their status indices in separate
// buckets. Index keys are statusByte || 0x00 || recordID so a cursor prefix
// scan enumerates one status.
var (
	depositsBucket              = []byte("deposits")
	depositStatusIndexBucket    = []byte("deposit-status-index")
	redemptionsBucket           = []byte("redemptions")
	redemptionStatusIndexBucket = []byte("redemption-status-index")
	auditLogsBucket             = []byte("audit-logs")
)

func statusIndexKey(status int, id string) []byte {
	key := make([]byte, 0, len(id)+2)
	key = append(key, byte(status), 0x00)
	key = append(key, id...)
	return key
}

func statusIndexPrefix(status int) []byte {
	return []byte{byte(status), 0x00}
}
