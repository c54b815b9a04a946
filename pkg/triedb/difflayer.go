package triedb

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/eth-state/triedb/pkg/mpt"
)

// DiffLayer is the in-memory result of committing one block worth of trie
// changes: every dirty node keyed by owner and path, plus the storage
// roots of the accounts whose storage changed. Layers are stacked on top
// of the persisted state until they are flushed.
//
// A layer is immutable once built.
type DiffLayer struct {
	// Root is the account trie root this layer leads to.
	Root common.Hash

	// Nodes maps owner (zero for the account trie, hashed address for
	// storage tries) to path-keyed dirty nodes. Deletion markers carry an
	// empty blob.
	Nodes map[common.Hash]map[string]*mpt.TrieNode

	// StorageRoots holds the storage trie roots recalculated in this
	// layer, keyed by hashed account address.
	StorageRoots map[common.Hash]common.Hash
}

// NewDiffLayer builds a layer from a merged commit result.
func NewDiffLayer(root common.Hash, nodes *mpt.MergedNodeSet, storageRoots map[common.Hash]common.Hash) *DiffLayer {
	flat := make(map[common.Hash]map[string]*mpt.TrieNode)
	if nodes != nil {
		flat = nodes.Flatten()
	}
	if storageRoots == nil {
		storageRoots = make(map[common.Hash]common.Hash)
	}
	return &DiffLayer{
		Root:         root,
		Nodes:        flat,
		StorageRoots: storageRoots,
	}
}

// node returns the dirty node recorded for the given owner and path.
func (dl *DiffLayer) node(owner common.Hash, path []byte) (*mpt.TrieNode, bool) {
	subset, ok := dl.Nodes[owner]
	if !ok {
		return nil, false
	}
	n, ok := subset[string(path)]
	return n, ok
}

// storageRoot returns the storage root recorded for the given account.
func (dl *DiffLayer) storageRoot(addrHash common.Hash) (common.Hash, bool) {
	root, ok := dl.StorageRoots[addrHash]
	return root, ok
}

// NodeCount returns the number of node entries, deletions included.
func (dl *DiffLayer) NodeCount() int {
	var count int
	for _, subset := range dl.Nodes {
		count += len(subset)
	}
	return count
}
