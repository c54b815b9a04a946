// Package triedb orchestrates the account trie and the per-account
// storage tries of an Ethereum-style world state over a flat key/value
// store. Commits stack diff layers on top of the persisted state until
// they are flushed block by block.
package triedb

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/eth-state/triedb/pkg/mpt"
	"github.com/eth-state/triedb/pkg/storage"
)

// DefaultCleanCacheItems is the default capacity of the clean node cache.
const DefaultCleanCacheItems = 256 * 1024

// TrieDB is a view of the world state at one root. Mutations accumulate
// in the open tries; Commit seals them into a DiffLayer stacked on top of
// the persisted state and Flush writes a layer down to the store.
//
// The internals of hashing and committing run concurrently, but TrieDB
// methods themselves must not be called concurrently. Derive independent
// views with StateAt to work on several blocks.
type TrieDB struct {
	store  storage.Store
	log    *zap.Logger
	cleans *lru.Cache // clean node blobs keyed by their storage key

	// layers are the unflushed diff layers this view reads through,
	// newest first.
	layers []*DiffLayer
	head   *DiffLayer // the layer built by the latest Commit

	accounts *mpt.StateTrie
	storages map[common.Hash]*mpt.StateTrie // open storage tries by hashed address
}

// Option configures a TrieDB.
type Option func(*TrieDB)

// WithLogger sets the logger used by the database.
func WithLogger(log *zap.Logger) Option {
	return func(db *TrieDB) {
		db.log = log
	}
}

// WithCleanCacheItems overrides the clean node cache capacity.
func WithCleanCacheItems(items int) Option {
	return func(db *TrieDB) {
		db.cleans, _ = lru.New(items)
	}
}

// New opens the world state persisted in the given store, or an empty one
// when the store holds nothing yet.
func New(store storage.Store, opts ...Option) (*TrieDB, error) {
	db := &TrieDB{
		store:    store,
		log:      zap.L(),
		storages: make(map[common.Hash]*mpt.StateTrie),
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.cleans == nil {
		db.cleans, _ = lru.New(DefaultCleanCacheItems)
	}
	root := mpt.EmptyRootHash
	if block, r, ok := db.LatestPersistState(); ok {
		root = r
		db.log.Info("opening persisted state",
			zap.Uint64("block", block),
			zap.Stringer("root", root))
	}
	accounts, err := mpt.NewStateTrie(root, common.Hash{}, db)
	if err != nil {
		return nil, fmt.Errorf("failed to open state at %x: %w", root, err)
	}
	db.accounts = accounts
	return db, nil
}

// StateAt derives a view of the state at the given account trie root. The
// optional diff layer carries committed but unflushed changes leading to
// that root, typically the parent block's commit result. The view shares
// the store and clean cache with the receiver and reads through exactly
// the unflushed layers that lead to the requested root, so layers stacked
// on top of it later do not shadow its nodes.
func (db *TrieDB) StateAt(root common.Hash, diff *DiffLayer) (*TrieDB, error) {
	view := &TrieDB{
		store:    db.store,
		log:      db.log,
		cleans:   db.cleans,
		layers:   db.layersFor(root, diff),
		storages: make(map[common.Hash]*mpt.StateTrie),
	}
	accounts, err := mpt.NewStateTrie(root, common.Hash{}, view)
	if err != nil {
		return nil, fmt.Errorf("failed to open state at %x: %w", root, err)
	}
	view.accounts = accounts
	return view, nil
}

// layersFor picks the layer sub-stack a view of the given root reads
// through: the layer with that root and everything beneath it. A root not
// found in any layer is either fully persisted or reachable only through
// the supplied extra layer; a persisted root reads the store alone.
func (db *TrieDB) layersFor(root common.Hash, diff *DiffLayer) []*DiffLayer {
	for i, layer := range db.layers {
		if layer.Root == root {
			return append([]*DiffLayer(nil), db.layers[i:]...)
		}
	}
	if diff != nil && diff.Root == root {
		return append([]*DiffLayer{diff}, db.layers...)
	}
	return nil
}

// Head returns the diff layer built by the latest Commit, nil when
// nothing was committed yet. It is the layer a subsequent Flush persists.
func (db *TrieDB) Head() *DiffLayer {
	return db.head
}

// Close releases the underlying store.
func (db *TrieDB) Close() error {
	return db.store.Close()
}

// Node implements mpt.NodeReader: unflushed diff layers are searched
// newest first, then the clean cache, then the store. A nil blob with a
// nil error means the node is unknown.
func (db *TrieDB) Node(owner common.Hash, path []byte, hash common.Hash) ([]byte, error) {
	for _, layer := range db.layers {
		n, ok := layer.node(owner, path)
		if !ok {
			continue
		}
		if n.IsDeleted() {
			return nil, nil
		}
		if n.Hash != hash {
			return nil, fmt.Errorf("unexpected node at %x: have %x, want %x", path, n.Hash, hash)
		}
		return n.Blob, nil
	}
	key := nodeKey(owner, path)
	if blob, ok := db.cleans.Get(string(key)); ok {
		if b := blob.([]byte); crypto.Keccak256Hash(b) == hash {
			cleanHitCount.Inc()
			return b, nil
		}
	}
	cleanMissCount.Inc()
	blob, err := db.store.Get(key)
	if err != nil {
		if err == storage.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	if crypto.Keccak256Hash(blob) != hash {
		// A stale node of an older or newer state sits at this path.
		return nil, nil
	}
	db.cleans.Add(string(key), blob)
	return blob, nil
}

// nodeKey maps an owner and nibble path onto a storage key.
func nodeKey(owner common.Hash, path []byte) []byte {
	if owner == (common.Hash{}) {
		return storage.AppendPrefix(storage.DataAccountTrie, path)
	}
	return storage.AppendPrefix(storage.DataStorageTrie, append(owner.Bytes(), path...))
}

// GetAccount returns the account for the address, nil if absent.
func (db *TrieDB) GetAccount(address common.Address) (*mpt.StateAccount, error) {
	return db.accounts.GetAccount(address)
}

// GetAccountByHash is GetAccount for a pre-hashed address.
func (db *TrieDB) GetAccountByHash(addrHash common.Hash) (*mpt.StateAccount, error) {
	return db.accounts.GetAccountByHash(addrHash)
}

// UpdateAccount associates the address with the given account.
func (db *TrieDB) UpdateAccount(address common.Address, acct *mpt.StateAccount) error {
	return db.accounts.UpdateAccount(address, acct)
}

// UpdateAccountByHash is UpdateAccount for a pre-hashed address.
func (db *TrieDB) UpdateAccountByHash(addrHash common.Hash, acct *mpt.StateAccount) error {
	return db.accounts.UpdateAccountByHash(addrHash, acct)
}

// DeleteAccount removes the account from the account trie. The nodes of
// its storage trie are not touched, they become unreachable from the new
// root.
func (db *TrieDB) DeleteAccount(address common.Address) error {
	return db.accounts.DeleteAccount(address)
}

// DeleteAccountByHash is DeleteAccount for a pre-hashed address.
func (db *TrieDB) DeleteAccountByHash(addrHash common.Hash) error {
	return db.accounts.DeleteAccountByHash(addrHash)
}

// GetStorage returns the value of the account's storage slot.
func (db *TrieDB) GetStorage(address common.Address, key []byte) ([]byte, error) {
	tr, err := db.storageTrie(crypto.Keccak256Hash(address.Bytes()))
	if err != nil {
		return nil, err
	}
	return tr.GetStorage(key)
}

// GetStorageByHash is GetStorage for a pre-hashed address and slot key.
func (db *TrieDB) GetStorageByHash(addrHash, keyHash common.Hash) ([]byte, error) {
	tr, err := db.storageTrie(addrHash)
	if err != nil {
		return nil, err
	}
	return tr.GetStorageByHash(keyHash)
}

// UpdateStorage associates the account's storage slot with the value.
func (db *TrieDB) UpdateStorage(address common.Address, key, value []byte) error {
	tr, err := db.storageTrie(crypto.Keccak256Hash(address.Bytes()))
	if err != nil {
		return err
	}
	return tr.UpdateStorage(key, value)
}

// UpdateStorageByHash is UpdateStorage for a pre-hashed address and slot
// key.
func (db *TrieDB) UpdateStorageByHash(addrHash, keyHash common.Hash, value []byte) error {
	tr, err := db.storageTrie(addrHash)
	if err != nil {
		return err
	}
	return tr.UpdateStorageByHash(keyHash, value)
}

// DeleteStorage removes the account's storage slot.
func (db *TrieDB) DeleteStorage(address common.Address, key []byte) error {
	tr, err := db.storageTrie(crypto.Keccak256Hash(address.Bytes()))
	if err != nil {
		return err
	}
	return tr.DeleteStorage(key)
}

// DeleteStorageByHash is DeleteStorage for a pre-hashed address and slot
// key.
func (db *TrieDB) DeleteStorageByHash(addrHash, keyHash common.Hash) error {
	tr, err := db.storageTrie(addrHash)
	if err != nil {
		return err
	}
	return tr.DeleteStorageByHash(keyHash)
}

// storageTrie returns the open storage trie of the account, opening it at
// its current root on first use. The root comes from the unflushed layers
// if the account's storage changed there, from the account itself
// otherwise.
func (db *TrieDB) storageTrie(addrHash common.Hash) (*mpt.StateTrie, error) {
	if tr, ok := db.storages[addrHash]; ok {
		return tr, nil
	}
	root := mpt.EmptyRootHash
	found := false
	for _, layer := range db.layers {
		if r, ok := layer.storageRoot(addrHash); ok {
			root, found = r, true
			break
		}
	}
	if !found {
		acct, err := db.accounts.GetAccountByHash(addrHash)
		if err != nil {
			return nil, err
		}
		if acct != nil {
			root = acct.Root
		}
	}
	tr, err := mpt.NewStateTrie(root, addrHash, db)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage trie of %x at %x: %w", addrHash, root, err)
	}
	db.storages[addrHash] = tr
	return tr, nil
}
