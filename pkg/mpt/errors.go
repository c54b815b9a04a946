package mpt

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// MissingNodeError is returned when a node required by an operation is not
// present in the backing reader. It carries enough information to identify
// the node in the path-keyed store.
type MissingNodeError struct {
	Owner    common.Hash // owning storage trie, zero for the account trie
	NodeHash common.Hash
	Path     []byte // nibble path from the trie root
	err      error
}

func (err *MissingNodeError) Unwrap() error {
	return err.err
}

func (err *MissingNodeError) Error() string {
	if err.Owner == (common.Hash{}) {
		return fmt.Sprintf("missing trie node %x (path %x) %v", err.NodeHash, err.Path, err.err)
	}
	return fmt.Sprintf("missing trie node %x (owner %x) (path %x) %v", err.NodeHash, err.Owner, err.Path, err.err)
}
