package triedb

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/eth-state/triedb/pkg/storage"
	"github.com/eth-state/triedb/pkg/storage/dbconfig"
)

// Manager hands out one TrieDB per data directory, so components sharing
// a database share a handle instead of fighting over the store lock.
// Construct a Manager explicitly and pass it to whoever needs one, there
// is no package-level instance.
type Manager struct {
	mut sync.Mutex
	log *zap.Logger
	dbs map[string]*TrieDB
}

// NewManager creates an empty manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.L()
	}
	return &Manager{
		log: log,
		dbs: make(map[string]*TrieDB),
	}
}

// Init opens (or returns the already opened) database under the given
// path. Paths missing from the storage configuration are derived from the
// data directory.
func (m *Manager) Init(path string, cfg dbconfig.DBConfiguration, opts ...Option) (*TrieDB, error) {
	m.mut.Lock()
	defer m.mut.Unlock()
	if db, ok := m.dbs[path]; ok {
		return db, nil
	}
	switch cfg.Type {
	case dbconfig.LevelDB:
		if cfg.LevelDBOptions.DataDirectoryPath == "" {
			cfg.LevelDBOptions.DataDirectoryPath = path
		}
	case dbconfig.BoltDB:
		if cfg.BoltDBOptions.FilePath == "" {
			cfg.BoltDBOptions.FilePath = filepath.Join(path, "triedb.bolt")
		}
	}
	store, err := storage.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}
	db, err := New(store, append([]Option{WithLogger(m.log)}, opts...)...)
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			err = fmt.Errorf("%w, failed to close store: %v", err, closeErr)
		}
		return nil, err
	}
	m.dbs[path] = db
	return db, nil
}

// Get returns the database opened under the given path.
func (m *Manager) Get(path string) (*TrieDB, bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	db, ok := m.dbs[path]
	return db, ok
}

// Close closes every database the manager opened.
func (m *Manager) Close() error {
	m.mut.Lock()
	defer m.mut.Unlock()
	var errs []error
	for path, db := range m.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	m.dbs = make(map[string]*TrieDB)
	return errors.Join(errs...)
}
