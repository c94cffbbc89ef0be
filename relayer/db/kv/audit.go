package kv

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"

	"github.com/keep-network/tbtc-relayer/relayer/types"
)

// SaveAuditEvent appends one event to the audit journal. Keys are ordered by
// wall-clock time so range scans read events in emission order; the uuid
// suffix keeps same-nanosecond events from colliding.
func (s *Store) SaveAuditEvent(_ context.Context, event *types.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	enc, err := encode(event)
	if err != nil {
		return err
	}
	key := make([]byte, 8, 8+len(event.ID))
	binary.BigEndian.PutUint64(key, uint64(time.Now().UnixNano()))
	key = append(key, event.ID...)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(auditLogsBucket).Put(key, enc)
	})
}

// AuditEvents scans the journal in emission order, applying the optional
// filter. A nil filter returns everything.
func (s *Store) AuditEvents(_ context.Context, filter *types.AuditFilter) ([]*types.AuditEvent, error) {
	var events []*types.AuditEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(auditLogsBucket).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			event := &types.AuditEvent{}
			if err := decode(v, event); err != nil {
				return err
			}
			if filter != nil {
				if filter.ChainName != "" && event.ChainName != filter.ChainName {
					continue
				}
				if filter.DepositID != "" && event.DepositID != filter.DepositID {
					continue
				}
				if filter.EventType != "" && event.EventType != filter.EventType {
					continue
				}
			}
			events = append(events, event)
			if filter != nil && filter.Limit > 0 && len(events) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	return events, err
}
