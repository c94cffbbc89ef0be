package kv

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/types"
)

// ErrRedemptionNotFound is returned by UpdateRedemption when the record is
// absent.
var ErrRedemptionNotFound = errors.New("redemption not found")

// CreateRedemption inserts a new redemption record. A duplicate ID is logged
// as a warning and leaves the existing record untouched.
func (s *Store) CreateRedemption(_ context.Context, redemption *types.Redemption) error {
	enc, err := encode(redemption)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(redemptionsBucket)
		if existing := bkt.Get([]byte(redemption.ID)); existing != nil {
			log.WithFields(map[string]interface{}{
				"redemptionId": redemption.ID,
				"chainName":    redemption.ChainName,
			}).Warn("Redemption already exists, skipping create")
			return nil
		}
		if err := bkt.Put([]byte(redemption.ID), enc); err != nil {
			return err
		}
		return tx.Bucket(redemptionStatusIndexBucket).Put(statusIndexKey(int(redemption.Status), redemption.ID), []byte{})
	})
}

// UpdateRedemption replaces the whole record by ID, maintaining the status
// index. It fails with ErrRedemptionNotFound if the record is absent.
func (s *Store) UpdateRedemption(_ context.Context, redemption *types.Redemption) error {
	enc, err := encode(redemption)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(redemptionsBucket)
		existing := bkt.Get([]byte(redemption.ID))
		if existing == nil {
			return errors.Wrap(ErrRedemptionNotFound, redemption.ID)
		}
		prev := &types.Redemption{}
		if err := decode(existing, prev); err != nil {
			return err
		}
		idx := tx.Bucket(redemptionStatusIndexBucket)
		if prev.Status != redemption.Status {
			if err := idx.Delete(statusIndexKey(int(prev.Status), redemption.ID)); err != nil {
				return err
			}
			if err := idx.Put(statusIndexKey(int(redemption.Status), redemption.ID), []byte{}); err != nil {
				return err
			}
		}
		return bkt.Put([]byte(redemption.ID), enc)
	})
}

// Redemption returns the record with the given ID, or nil if unknown.
func (s *Store) Redemption(_ context.Context, id string) (*types.Redemption, error) {
	var redemption *types.Redemption
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(redemptionsBucket).Get([]byte(id))
		if enc == nil {
			return nil
		}
		redemption = &types.Redemption{}
		return decode(enc, redemption)
	})
	return redemption, err
}

// RedemptionsByStatus returns all redemptions in the given status, optionally
// filtered by chain name.
func (s *Store) RedemptionsByStatus(_ context.Context, status types.RedemptionStatus, chainName string) ([]*types.Redemption, error) {
	var redemptions []*types.Redemption
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(redemptionsBucket)
		c := tx.Bucket(redemptionStatusIndexBucket).Cursor()
		prefix := statusIndexPrefix(int(status))
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			enc := bkt.Get(k[len(prefix):])
			if enc == nil {
				continue
			}
			redemption := &types.Redemption{}
			if err := decode(enc, redemption); err != nil {
				return err
			}
			if chainName != "" && redemption.ChainName != chainName {
				continue
			}
			redemptions = append(redemptions, redemption)
		}
		return nil
	})
	return redemptions, err
}

// DeleteRedemption removes the record and its index entry. Absent IDs are a
// no-op.
func (s *Store) DeleteRedemption(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(redemptionsBucket)
		enc := bkt.Get([]byte(id))
		if enc == nil {
			return nil
		}
		redemption := &types.Redemption{}
		if err := decode(enc, redemption); err != nil {
			return err
		}
		if err := tx.Bucket(redemptionStatusIndexBucket).Delete(statusIndexKey(int(redemption.Status), id)); err != nil {
			return err
		}
		return bkt.Delete([]byte(id))
	})
}
