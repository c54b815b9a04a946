package mpt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// EmptyCodeHash is keccak256 of empty code.
var EmptyCodeHash = common.HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

// StateAccount is the consensus representation of an account stored in
// the account trie: values are the RLP encoding of this structure keyed
// by hashed address.
type StateAccount struct {
	Nonce    uint64
	Balance  *uint256.Int
	Root     common.Hash // root of the account's storage trie
	CodeHash []byte
}

// NewEmptyStateAccount constructs an account with no code, no storage and
// zero balance.
func NewEmptyStateAccount() *StateAccount {
	return &StateAccount{
		Balance:  new(uint256.Int),
		Root:     EmptyRootHash,
		CodeHash: EmptyCodeHash.Bytes(),
	}
}

// Copy returns a deep-copied state account object.
func (acct *StateAccount) Copy() *StateAccount {
	var balance *uint256.Int
	if acct.Balance != nil {
		balance = new(uint256.Int).Set(acct.Balance)
	}
	return &StateAccount{
		Nonce:    acct.Nonce,
		Balance:  balance,
		Root:     acct.Root,
		CodeHash: common.CopyBytes(acct.CodeHash),
	}
}

// Bytes returns the canonical RLP encoding of the account.
func (acct *StateAccount) Bytes() []byte {
	data, err := rlp.EncodeToBytes(acct)
	if err != nil {
		panic(fmt.Sprintf("can't encode account: %v", err))
	}
	return data
}

// TrieHash returns keccak256 of the canonical encoding, the value the
// account contributes to merkle hashing.
func (acct *StateAccount) TrieHash() common.Hash {
	return crypto.Keccak256Hash(acct.Bytes())
}

// FullAccount decodes the account from its canonical RLP encoding.
func FullAccount(data []byte) (*StateAccount, error) {
	acct := new(StateAccount)
	if err := rlp.DecodeBytes(data, acct); err != nil {
		return nil, err
	}
	return acct, nil
}
