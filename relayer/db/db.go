// Package db defines the ability to create a new database for the relayer.
package db

import (
	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/db/kv"
)

// Database defines the canonical persistence interface consumed by the
// engine.
type Database = iface.Database

// NewDB initializes a new DB.
func NewDB(dirPath string) (Database, error) {
	return kv.NewKVStore(dirPath)
}
