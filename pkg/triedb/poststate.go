package triedb

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth-state/triedb/pkg/mpt"
)

// HashedStorage holds the storage changes of one account in a post-state
// batch. A zero-length slot value deletes the slot. Wiped means the
// storage was destroyed and must be rebuilt from an empty trie before the
// slot values are applied.
type HashedStorage struct {
	Wiped bool
	Slots map[common.Hash][]byte
}

// NewHashedStorage constructs an empty per-account storage change set.
func NewHashedStorage(wiped bool) *HashedStorage {
	return &HashedStorage{
		Wiped: wiped,
		Slots: make(map[common.Hash][]byte),
	}
}

// HashedPostState is one block worth of state changes addressed by hashed
// keys. A nil account marks a destroyed account.
type HashedPostState struct {
	Accounts map[common.Hash]*mpt.StateAccount
	Storages map[common.Hash]*HashedStorage
}

// NewHashedPostState constructs an empty post-state batch.
func NewHashedPostState() *HashedPostState {
	return &HashedPostState{
		Accounts: make(map[common.Hash]*mpt.StateAccount),
		Storages: make(map[common.Hash]*HashedStorage),
	}
}

// AddAccount records an account upsert.
func (post *HashedPostState) AddAccount(addrHash common.Hash, acct *mpt.StateAccount) {
	post.Accounts[addrHash] = acct
}

// DestroyAccount records an account destruction: the account leaves the
// account trie and its storage is wiped.
func (post *HashedPostState) DestroyAccount(addrHash common.Hash) {
	post.Accounts[addrHash] = nil
	post.Storages[addrHash] = NewHashedStorage(true)
}

// AddStorage records a slot write for an account. A zero-length value
// deletes the slot.
func (post *HashedPostState) AddStorage(addrHash, slotHash common.Hash, value []byte) {
	st, ok := post.Storages[addrHash]
	if !ok {
		st = NewHashedStorage(false)
		post.Storages[addrHash] = st
	}
	st.Slots[slotHash] = value
}

// UpdateAll applies a post-state batch to the open tries. Destructions
// run before insertions, so an account recreated in the same batch starts
// from a clean slate instead of resurrecting old state.
func (db *TrieDB) UpdateAll(post *HashedPostState) error {
	for addrHash, acct := range post.Accounts {
		if acct != nil {
			continue
		}
		if err := db.accounts.DeleteAccountByHash(addrHash); err != nil {
			return err
		}
	}
	for addrHash, st := range post.Storages {
		if st.Wiped {
			tr, err := mpt.NewStateTrie(mpt.EmptyRootHash, addrHash, db)
			if err != nil {
				return err
			}
			db.storages[addrHash] = tr
		}
		for slot, value := range st.Slots {
			if len(value) != 0 {
				continue
			}
			tr, err := db.storageTrie(addrHash)
			if err != nil {
				return err
			}
			if err := tr.DeleteStorageByHash(slot); err != nil {
				return err
			}
		}
	}
	for addrHash, acct := range post.Accounts {
		if acct == nil {
			continue
		}
		// An account update without a wipe must not disturb the storage
		// trie: keep the root the account already has. The committed
		// storage root overrides it anyway when slots were touched.
		st := post.Storages[addrHash]
		if st == nil || !st.Wiped {
			prev, err := db.accounts.GetAccountByHash(addrHash)
			if err != nil {
				return err
			}
			if prev != nil && prev.Root != acct.Root {
				acct = acct.Copy()
				acct.Root = prev.Root
			}
		}
		if err := db.accounts.UpdateAccountByHash(addrHash, acct); err != nil {
			return err
		}
	}
	for addrHash, st := range post.Storages {
		for slot, value := range st.Slots {
			if len(value) == 0 {
				continue
			}
			tr, err := db.storageTrie(addrHash)
			if err != nil {
				return err
			}
			if err := tr.UpdateStorageByHash(slot, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// CommitHashedPostState applies the batch and commits, returning the new
// state root and the diff layer holding the dirty nodes. The layer is
// what a later Flush persists.
func (db *TrieDB) CommitHashedPostState(post *HashedPostState) (common.Hash, *DiffLayer, error) {
	if err := db.UpdateAll(post); err != nil {
		return common.Hash{}, nil, err
	}
	root, _, err := db.Commit(true)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return root, db.head, nil
}
