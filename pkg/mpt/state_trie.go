package mpt

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// StateTrie wraps Trie with key hashing: all access operations hash the
// key with keccak256 first, so externally chosen keys cannot degrade the
// trie into a long chain. Account values are RLP-encoded StateAccounts,
// storage slot values are RLP-encoded with leading zeroes trimmed.
//
// The ByHash operation variants accept keys that the caller hashed
// already, which is how post-state batches address accounts and slots.
//
// StateTrie is not safe for concurrent use.
type StateTrie struct {
	trie       Trie
	hashKeyBuf [common.HashLength]byte
}

// NewStateTrie creates a secure trie with an existing root node from a
// reader. The owner is zero for the account trie and the hashed owning
// address for storage tries.
func NewStateTrie(root, owner common.Hash, reader NodeReader) (*StateTrie, error) {
	trie, err := New(root, owner, reader)
	if err != nil {
		return nil, err
	}
	return &StateTrie{trie: *trie}, nil
}

// Owner returns the associated trie owner.
func (t *StateTrie) Owner() common.Hash {
	return t.trie.Owner()
}

// GetStorage returns the decoded value of a storage slot.
func (t *StateTrie) GetStorage(key []byte) ([]byte, error) {
	return t.GetStorageByHash(common.BytesToHash(t.hashKey(key)))
}

// GetStorageByHash is GetStorage for a pre-hashed slot key.
func (t *StateTrie) GetStorageByHash(keyHash common.Hash) ([]byte, error) {
	enc, err := t.trie.Get(keyHash.Bytes())
	if err != nil || len(enc) == 0 {
		return nil, err
	}
	_, content, _, err := rlp.Split(enc)
	return content, err
}

// UpdateStorage associates a storage slot with the given value.
func (t *StateTrie) UpdateStorage(key, value []byte) error {
	return t.UpdateStorageByHash(common.BytesToHash(t.hashKey(key)), value)
}

// UpdateStorageByHash is UpdateStorage for a pre-hashed slot key.
func (t *StateTrie) UpdateStorageByHash(keyHash common.Hash, value []byte) error {
	v, err := rlp.EncodeToBytes(common.TrimLeftZeroes(value))
	if err != nil {
		return err
	}
	return t.trie.Update(keyHash.Bytes(), v)
}

// DeleteStorage removes a storage slot from the trie.
func (t *StateTrie) DeleteStorage(key []byte) error {
	return t.DeleteStorageByHash(common.BytesToHash(t.hashKey(key)))
}

// DeleteStorageByHash is DeleteStorage for a pre-hashed slot key.
func (t *StateTrie) DeleteStorageByHash(keyHash common.Hash) error {
	return t.trie.Delete(keyHash.Bytes())
}

// GetAccount returns the account associated with the address, nil if it
// is not present in the trie.
func (t *StateTrie) GetAccount(address common.Address) (*StateAccount, error) {
	return t.GetAccountByHash(common.BytesToHash(t.hashKey(address.Bytes())))
}

// GetAccountByHash is GetAccount for a pre-hashed address.
func (t *StateTrie) GetAccountByHash(addrHash common.Hash) (*StateAccount, error) {
	res, err := t.trie.Get(addrHash.Bytes())
	if err != nil || res == nil {
		return nil, err
	}
	return FullAccount(res)
}

// UpdateAccount associates the address with the given account.
func (t *StateTrie) UpdateAccount(address common.Address, acc *StateAccount) error {
	return t.UpdateAccountByHash(common.BytesToHash(t.hashKey(address.Bytes())), acc)
}

// UpdateAccountByHash is UpdateAccount for a pre-hashed address.
func (t *StateTrie) UpdateAccountByHash(addrHash common.Hash, acc *StateAccount) error {
	return t.trie.Update(addrHash.Bytes(), acc.Bytes())
}

// DeleteAccount removes the account from the trie.
func (t *StateTrie) DeleteAccount(address common.Address) error {
	return t.DeleteAccountByHash(common.BytesToHash(t.hashKey(address.Bytes())))
}

// DeleteAccountByHash is DeleteAccount for a pre-hashed address.
func (t *StateTrie) DeleteAccountByHash(addrHash common.Hash) error {
	return t.trie.Delete(addrHash.Bytes())
}

// Hash returns the root hash of the trie without writing to the store.
func (t *StateTrie) Hash() common.Hash {
	return t.trie.Hash()
}

// Commit collects all dirty nodes in the trie and replaces the actual
// trie with the node hashes, see Trie.Commit.
func (t *StateTrie) Commit(collectLeaf bool) (common.Hash, *NodeSet, error) {
	return t.trie.Commit(collectLeaf)
}

// Copy returns a copy sharing all unmodified nodes with the original.
func (t *StateTrie) Copy() *StateTrie {
	return &StateTrie{trie: *t.trie.Copy()}
}

// hashKey returns keccak256 of the key. The returned slice is only valid
// until the next call to hashKey.
func (t *StateTrie) hashKey(key []byte) []byte {
	h := newHasher(false)
	h.sha.Reset()
	h.sha.Write(key)
	h.sha.Read(t.hashKeyBuf[:])
	returnHasherToPool(h)
	return t.hashKeyBuf[:]
}
