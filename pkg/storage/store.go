package storage

import (
	"errors"
	"fmt"

	"github.com/eth-state/triedb/pkg/storage/dbconfig"
)

// KeyPrefix is a constant byte added prefixing each key.
type KeyPrefix uint8

// KeyPrefix constants. Trie nodes are path-keyed: account trie nodes
// under DataAccountTrie followed by the nibble path, storage trie nodes
// under DataStorageTrie followed by the owner hash and the nibble path.
const (
	DataAccountTrie KeyPrefix = 0x41
	DataStorageTrie KeyPrefix = 0x53
)

// ErrKeyNotFound is an error returned by Store implementations
// when a certain key is not found.
var ErrKeyNotFound = errors.New("key not found")

// Store is the underlying KV backend for the trie data. Changes are
// applied in atomic batches only, a nil value in the change set deletes
// the key.
type Store interface {
	Get([]byte) ([]byte, error)
	PutChangeSet(puts map[string][]byte) error
	Close() error
}

// AppendPrefix appends byteslice b to the given KeyPrefix.
func AppendPrefix(k KeyPrefix, b []byte) []byte {
	dest := make([]byte, len(b)+1)
	dest[0] = byte(k)
	copy(dest[1:], b)
	return dest
}

// NewStore creates storage with preselected in configuration database type.
func NewStore(cfg dbconfig.DBConfiguration) (Store, error) {
	var store Store
	var err error
	switch cfg.Type {
	case dbconfig.LevelDB:
		store, err = NewLevelDBStore(cfg.LevelDBOptions)
	case dbconfig.InMemoryDB:
		store = NewMemoryStore()
	case dbconfig.BoltDB:
		store, err = NewBoltDBStore(cfg.BoltDBOptions)
	default:
		return nil, fmt.Errorf("unknown storage: %s", cfg.Type)
	}
	return store, err
}
