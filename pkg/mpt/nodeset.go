package mpt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// TrieNode is a committed node: its hash and canonical encoding. An empty
// blob marks a deletion.
type TrieNode struct {
	Hash common.Hash
	Blob []byte
}

// Size returns the total memory size used by this node.
func (n *TrieNode) Size() int {
	return len(n.Blob) + common.HashLength
}

// IsDeleted reports whether the node marks a deletion.
func (n *TrieNode) IsDeleted() bool {
	return len(n.Blob) == 0
}

// NewTrieNode constructs a node with the provided content.
func NewTrieNode(hash common.Hash, blob []byte) *TrieNode {
	return &TrieNode{Hash: hash, Blob: blob}
}

// NewDeleted constructs a deletion marker.
func NewDeleted() *TrieNode {
	return NewTrieNode(common.Hash{}, nil)
}

// leaf is a trie value preserved by a commit for external consumers.
type leaf struct {
	Blob   []byte      // raw value of the leaf
	Parent common.Hash // hash of the leaf node containing it
}

// NodeSet holds the dirty nodes collected by committing a single trie,
// keyed by the string representation of the node path.
type NodeSet struct {
	Owner   common.Hash
	Leaves  []*leaf
	Nodes   map[string]*TrieNode
	updates int // number of updated and inserted nodes
	deletes int // number of deleted nodes
}

// NewNodeSet initializes a node set. The owner is zero for the account
// trie and the hashed address for storage tries.
func NewNodeSet(owner common.Hash) *NodeSet {
	return &NodeSet{
		Owner: owner,
		Nodes: make(map[string]*TrieNode),
	}
}

// ForEachWithOrder iterates the nodes with deeper paths first, which is
// the order the bottom-up committer produced them in.
func (set *NodeSet) ForEachWithOrder(callback func(path string, n *TrieNode)) {
	paths := make([]string, 0, len(set.Nodes))
	for path := range set.Nodes {
		paths = append(paths, path)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	for _, path := range paths {
		callback(path, set.Nodes[path])
	}
}

// AddNode adds the provided node into set.
func (set *NodeSet) AddNode(path []byte, n *TrieNode) {
	if n.IsDeleted() {
		set.deletes += 1
	} else {
		set.updates += 1
	}
	set.Nodes[string(path)] = n
}

// MergeSet merges the provided set into the local one. The assumption is
// held that two sets with the same owner never contain the same path.
func (set *NodeSet) MergeSet(other *NodeSet) error {
	if set.Owner != other.Owner {
		return fmt.Errorf("nodesets belong to different owner are not mergeable %x-%x", set.Owner, other.Owner)
	}
	for path, n := range other.Nodes {
		set.Nodes[path] = n
	}
	set.deletes += other.deletes
	set.updates += other.updates
	set.Leaves = append(set.Leaves, other.Leaves...)
	return nil
}

// AddLeaf collects a leaf value.
func (set *NodeSet) AddLeaf(parent common.Hash, blob []byte) {
	set.Leaves = append(set.Leaves, &leaf{Blob: blob, Parent: parent})
}

// Size returns the number of dirty nodes in set.
func (set *NodeSet) Size() (int, int) {
	return set.updates, set.deletes
}

// Summary returns a string-representation of the NodeSet.
func (set *NodeSet) Summary() string {
	var out = new(strings.Builder)
	fmt.Fprintf(out, "nodeset owner: %v\n", set.Owner)
	for path, n := range set.Nodes {
		if n.IsDeleted() {
			fmt.Fprintf(out, "  [-]: %x\n", path)
		} else {
			fmt.Fprintf(out, "  [+]: %x -> %v\n", path, n.Hash)
		}
	}
	for _, n := range set.Leaves {
		fmt.Fprintf(out, "[leaf]: %v\n", n)
	}
	return out.String()
}

// MergedNodeSet represents a merged node set for a group of tries.
type MergedNodeSet struct {
	Sets map[common.Hash]*NodeSet
}

// NewMergedNodeSet initializes an empty merged set.
func NewMergedNodeSet() *MergedNodeSet {
	return &MergedNodeSet{Sets: make(map[common.Hash]*NodeSet)}
}

// NewWithNodeSet constructs a merged node set with the provided single
// node set.
func NewWithNodeSet(set *NodeSet) *MergedNodeSet {
	merged := NewMergedNodeSet()
	merged.Merge(set)
	return merged
}

// Merge merges the provided dirty nodes of a trie into the set. The
// assumption is held that no duplicated set belonging to the same trie
// will be merged twice.
func (set *MergedNodeSet) Merge(other *NodeSet) error {
	subset, present := set.Sets[other.Owner]
	if present {
		return subset.MergeSet(other)
	}
	set.Sets[other.Owner] = other
	return nil
}

// Flatten returns a two-dimensional map for internal nodes.
func (set *MergedNodeSet) Flatten() map[common.Hash]map[string]*TrieNode {
	nodes := make(map[common.Hash]map[string]*TrieNode, len(set.Sets))
	for owner, s := range set.Sets {
		nodes[owner] = s.Nodes
	}
	return nodes
}
