// Package testing allows for spinning up a real bolt-db
// instance for unit tests throughout the relayer repo.
package testing

import (
	"os"
	"testing"

	"github.com/keep-network/tbtc-relayer/relayer/db/iface"
	"github.com/keep-network/tbtc-relayer/relayer/db/kv"
)

// SetupDB instantiates and returns a database backed by a key value store.
func SetupDB(t testing.TB) iface.Database {
	p := t.TempDir()
	s, err := kv.NewKVStore(p)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
		if err := os.RemoveAll(s.DatabasePath()); err != nil {
			t.Fatalf("could not remove tmp db dir: %v", err)
		}
	})
	return s
}
