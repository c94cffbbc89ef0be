package kv

import (
	"bytes"
	"context"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/keep-network/tbtc-relayer/relayer/types"
)

// ErrDepositNotFound is returned by UpdateDeposit when the record is absent.
var ErrDepositNotFound = errors.New("deposit not found")

// CreateDeposit inserts a new deposit record. A duplicate ID is logged as a
// warning and leaves the existing record untouched.
func (s *Store) CreateDeposit(_ context.Context, deposit *types.Deposit) error {
	enc, err := encode(deposit)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(depositsBucket)
		if existing := bkt.Get([]byte(deposit.ID)); existing != nil {
			log.WithFields(map[string]interface{}{
				"depositId": deposit.ID,
				"chainName": deposit.ChainName,
			}).Warn("Deposit already exists, skipping create")
			return nil
		}
		if err := bkt.Put([]byte(deposit.ID), enc); err != nil {
			return err
		}
		return tx.Bucket(depositStatusIndexBucket).Put(statusIndexKey(int(deposit.Status), deposit.ID), []byte{})
	})
}

// UpdateDeposit replaces the whole record by ID, maintaining the status
// index. It fails with ErrDepositNotFound if the record is absent.
func (s *Store) UpdateDeposit(_ context.Context, deposit *types.Deposit) error {
	enc, err := encode(deposit)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(depositsBucket)
		existing := bkt.Get([]byte(deposit.ID))
		if existing == nil {
			return errors.Wrap(ErrDepositNotFound, deposit.ID)
		}
		prev := &types.Deposit{}
		if err := decode(existing, prev); err != nil {
			return err
		}
		idx := tx.Bucket(depositStatusIndexBucket)
		if prev.Status != deposit.Status {
			if err := idx.Delete(statusIndexKey(int(prev.Status), deposit.ID)); err != nil {
				return err
			}
			if err := idx.Put(statusIndexKey(int(deposit.Status), deposit.ID), []byte{}); err != nil {
				return err
			}
		}
		return bkt.Put([]byte(deposit.ID), enc)
	})
}

// Deposit returns the record with the given ID, or nil if unknown.
func (s *Store) Deposit(_ context.Context, id string) (*types.Deposit, error) {
	var deposit *types.Deposit
	err := s.db.View(func(tx *bolt.Tx) error {
		enc := tx.Bucket(depositsBucket).Get([]byte(id))
		if enc == nil {
			return nil
		}
		deposit = &types.Deposit{}
		return decode(enc, deposit)
	})
	return deposit, err
}

// DepositsByStatus returns all deposits in the given status, optionally
// filtered by chain name. Iteration order is unspecified.
func (s *Store) DepositsByStatus(_ context.Context, status types.DepositStatus, chainName string) ([]*types.Deposit, error) {
	var deposits []*types.Deposit
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(depositsBucket)
		c := tx.Bucket(depositStatusIndexBucket).Cursor()
		prefix := statusIndexPrefix(int(status))
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			enc := bkt.Get(k[len(prefix):])
			if enc == nil {
				// Dangling index entry; the record was deleted mid-flight.
				continue
			}
			deposit := &types.Deposit{}
			if err := decode(enc, deposit); err != nil {
				return err
			}
			if chainName != "" && deposit.ChainName != chainName {
				continue
			}
			deposits = append(deposits, deposit)
		}
		return nil
	})
	return deposits, err
}

// DeleteDeposit removes the record and its index entry. Absent IDs are a
// no-op.
func (s *Store) DeleteDeposit(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(depositsBucket)
		enc := bkt.Get([]byte(id))
		if enc == nil {
			return nil
		}
		deposit := &types.Deposit{}
		if err := decode(enc, deposit); err != nil {
			return err
		}
		if err := tx.Bucket(depositStatusIndexBucket).Delete(statusIndexKey(int(deposit.Status), id)); err != nil {
			return err
		}
		return bkt.Delete([]byte(id))
	})
}
