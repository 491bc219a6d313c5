package fncfg

import (
	"fmt"
	"path/filepath"
)

const (
	// InvoiceDBName is the file name of the bolt invoice database.
	InvoiceDBName = "invoices.db"

	// MemoryBackend keeps invoices in memory only.
	MemoryBackend = "memory"

	// BoltBackend persists invoices in a bolt database.
	BoltBackend = "bolt"
)

// Bolt holds the bolt database options.
//
//nolint:lll
type Bolt struct {
	NoFreelistSync bool `long:"nofreelistsync" description:"Whether the databases used within fnd should sync their freelist to disk."`
}

// DB holds database configuration for fnd.
//
//nolint:lll
type DB struct {
	Backend string `long:"backend" description:"The selected database backend." choice:"memory" choice:"bolt"`

	Bolt *Bolt `group:"bolt" namespace:"bolt" description:"Bolt settings."`
}

// DefaultDB creates and returns a new default DB config.
func DefaultDB() *DB {
	return &DB{
		Backend: BoltBackend,
		Bolt: &Bolt{
			NoFreelistSync: true,
		},
	}
}

// Validate validates the DB config.
//
// NOTE: this is part of the Validator interface.
func (db *DB) Validate() error {
	switch db.Backend {
	case MemoryBackend, BoltBackend:

	default:
		return fmt.Errorf("unknown backend, must be either \"%v\" or "+
			"\"%v\"", MemoryBackend, BoltBackend)
	}

	return nil
}

// Persistent reports whether invoices outlive the process.
func (db *DB) Persistent() bool {
	return db.Backend == BoltBackend
}

// InvoiceDBPath returns the path of the bolt invoice database in dbDir.
func (db *DB) InvoiceDBPath(dbDir string) string {
	return filepath.Join(dbDir, InvoiceDBName)
}

// Compile-time constraint to ensure DB implements the Validator interface.
var _ Validator = (*DB)(nil)
