package mpt

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// EmptyRootHash is the root of an empty trie, keccak256 of the RLP
// encoding of the empty string.
var EmptyRootHash = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// Trie is a Merkle Patricia Trie. Use New to create a trie that sits on
// top of a node reader. Updates never modify nodes in place: the path
// from the root to the touched node is copied and everything else is
// shared, so tries obtained before a change keep their content.
//
// Trie is not safe for concurrent use.
type Trie struct {
	root  Node
	owner common.Hash

	// Keep track of the number of leaves which have been inserted since
	// the last hashing and commit operation, used to decide when the
	// concurrent paths pay off.
	unhashed    int
	uncommitted int

	reader *trieReader

	// tracer is the tool to track the trie changes.
	tracer *tracer
}

// New creates the trie with the given root on top of a node reader. The
// owner distinguishes storage tries from the account trie in path-keyed
// node lookups.
func New(root, owner common.Hash, reader NodeReader) (*Trie, error) {
	r, err := newTrieReader(root, owner, reader)
	if err != nil {
		return nil, err
	}
	t := &Trie{
		owner:  owner,
		reader: r,
		tracer: newTracer(),
	}
	if root != (common.Hash{}) && root != EmptyRootHash {
		rootnode, err := t.resolveAndTrack(root[:], nil)
		if err != nil {
			return nil, err
		}
		t.root = rootnode
	}
	return t, nil
}

// NewEmpty builds an empty trie, mostly used for testing and the fresh
// tries of accounts without prior storage.
func NewEmpty(reader NodeReader) *Trie {
	t, _ := New(EmptyRootHash, common.Hash{}, reader)
	return t
}

// Owner returns the associated trie owner.
func (t *Trie) Owner() common.Hash {
	return t.owner
}

// Copy returns a copy sharing all unmodified nodes with the original.
func (t *Trie) Copy() *Trie {
	return &Trie{
		root:        t.root,
		owner:       t.owner,
		unhashed:    t.unhashed,
		uncommitted: t.uncommitted,
		reader:      t.reader,
		tracer:      t.tracer.copy(),
	}
}

// Get returns the value for key stored in the trie. The value bytes must
// not be modified by the caller. An absent key yields a nil value and no
// error.
func (t *Trie) Get(key []byte) ([]byte, error) {
	value, newroot, didResolve, err := t.get(t.root, toNibbles(key), 0)
	if err == nil && didResolve {
		t.root = newroot
	}
	return value, err
}

func (t *Trie) get(origNode Node, key []byte, pos int) (value []byte, newnode Node, didResolve bool, err error) {
	switch n := origNode.(type) {
	case nil:
		return nil, nil, false, nil
	case *LeafNode:
		if !bytes.Equal(n.Key, key[pos:]) {
			return nil, n, false, nil
		}
		return n.Value, n, false, nil
	case *ExtensionNode:
		if len(key)-pos < len(n.Key) || !bytes.Equal(n.Key, key[pos:pos+len(n.Key)]) {
			return nil, n, false, nil
		}
		value, newnode, didResolve, err = t.get(n.Child, key, pos+len(n.Key))
		if err == nil && didResolve {
			n = n.copy()
			n.Child = newnode
		}
		return value, n, didResolve, err
	case *BranchNode:
		if pos == len(key) {
			return n.Value, n, false, nil
		}
		value, newnode, didResolve, err = t.get(n.Children[key[pos]], key, pos+1)
		if err == nil && didResolve {
			n = n.copy()
			n.Children[key[pos]] = newnode
		}
		return value, n, didResolve, err
	case HashNode:
		child, err := t.resolveAndTrack(n, key[:pos])
		if err != nil {
			return nil, n, true, err
		}
		value, newnode, _, err := t.get(child, key, pos)
		return value, newnode, true, err
	default:
		panic(fmt.Sprintf("%T: invalid node: %v", origNode, origNode))
	}
}

// Update associates key with value in the trie. The value bytes are
// retained by the trie, the caller must not modify them afterwards. A
// zero-length value removes any existing entry.
func (t *Trie) Update(key, value []byte) error {
	t.unhashed++
	t.uncommitted++
	k := toNibbles(key)
	if len(value) == 0 {
		_, n, err := t.delete(t.root, nil, k)
		if err != nil {
			return err
		}
		t.root = n
		return nil
	}
	_, n, err := t.insert(t.root, nil, k, value)
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

// Delete removes any existing value for key from the trie. Deleting an
// absent key is a no-op.
func (t *Trie) Delete(key []byte) error {
	t.unhashed++
	t.uncommitted++
	_, n, err := t.delete(t.root, nil, toNibbles(key))
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

func (t *Trie) insert(n Node, prefix, key []byte, value []byte) (bool, Node, error) {
	switch n := n.(type) {
	case nil:
		t.tracer.onInsert(prefix)
		return true, newLeafNode(key, value), nil
	case *LeafNode:
		matchlen := commonPrefix(key, n.Key)
		// If the whole key matches, only update the value.
		if matchlen == len(n.Key) && matchlen == len(key) {
			if bytes.Equal(value, n.Value) {
				return false, n, nil
			}
			return true, newLeafNode(key, value), nil
		}
		// Otherwise branch out at the index where the keys differ.
		branch := newBranchNode()
		if matchlen == len(n.Key) {
			branch.Value = n.Value
		} else {
			t.tracer.onInsert(append(prefix, n.Key[:matchlen+1]...))
			branch.Children[n.Key[matchlen]] = newLeafNode(n.Key[matchlen+1:], n.Value)
		}
		if matchlen == len(key) {
			branch.Value = value
		} else {
			t.tracer.onInsert(append(prefix, key[:matchlen+1]...))
			branch.Children[key[matchlen]] = newLeafNode(key[matchlen+1:], value)
		}
		// Replace this leaf with the branch if it occurs at index 0.
		if matchlen == 0 {
			return true, branch, nil
		}
		// The branch is a new node created as a child of the extension
		// leading up to it, track it in the tracer.
		t.tracer.onInsert(append(prefix, key[:matchlen]...))
		return true, newExtensionNode(key[:matchlen], branch), nil
	case *ExtensionNode:
		matchlen := commonPrefix(key, n.Key)
		// If the whole prefix matches, keep this extension as is and
		// recurse into its child.
		if matchlen == len(n.Key) {
			dirty, nn, err := t.insert(n.Child, append(prefix, key[:matchlen]...), key[matchlen:], value)
			if !dirty || err != nil {
				return false, n, err
			}
			return true, newExtensionNode(n.Key, nn), nil
		}
		// Otherwise branch out at the index where the prefix diverges.
		branch := newBranchNode()
		if matchlen+1 == len(n.Key) {
			// A single spare nibble, the child hangs off the branch
			// directly.
			branch.Children[n.Key[matchlen]] = n.Child
		} else {
			t.tracer.onInsert(append(prefix, n.Key[:matchlen+1]...))
			branch.Children[n.Key[matchlen]] = newExtensionNode(n.Key[matchlen+1:], n.Child)
		}
		if matchlen == len(key) {
			branch.Value = value
		} else {
			t.tracer.onInsert(append(prefix, key[:matchlen+1]...))
			branch.Children[key[matchlen]] = newLeafNode(key[matchlen+1:], value)
		}
		if matchlen == 0 {
			return true, branch, nil
		}
		t.tracer.onInsert(append(prefix, key[:matchlen]...))
		return true, newExtensionNode(key[:matchlen], branch), nil
	case *BranchNode:
		if len(key) == 0 {
			if bytes.Equal(value, n.Value) {
				return false, n, nil
			}
			n = n.copy()
			n.BaseNode = newFlag()
			n.Value = value
			return true, n, nil
		}
		dirty, nn, err := t.insert(n.Children[key[0]], append(prefix, key[0]), key[1:], value)
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.BaseNode = newFlag()
		n.Children[key[0]] = nn
		return true, n, nil
	case HashNode:
		// The node has not been resolved yet, load it and insert into
		// the resolved copy.
		rn, err := t.resolveAndTrack(n, prefix)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.insert(rn, prefix, key, value)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil
	default:
		panic(fmt.Sprintf("%T: invalid node: %v", n, n))
	}
}

func (t *Trie) delete(n Node, prefix, key []byte) (bool, Node, error) {
	switch n := n.(type) {
	case nil:
		return false, nil, nil
	case *LeafNode:
		matchlen := commonPrefix(key, n.Key)
		if matchlen != len(n.Key) || matchlen != len(key) {
			return false, n, nil // the key is absent
		}
		// The matched leaf is deleted entirely, track it as deleted.
		t.tracer.onDelete(prefix)
		return true, nil, nil
	case *ExtensionNode:
		matchlen := commonPrefix(key, n.Key)
		if matchlen < len(n.Key) {
			return false, n, nil // the key is absent
		}
		// The key is longer than n.Key, remove the remaining suffix from
		// the subtrie. The child cannot be nil here since the subtrie
		// must contain at least two other values with keys longer than
		// n.Key.
		dirty, child, err := t.delete(n.Child, append(prefix, key[:len(n.Key)]...), key[len(n.Key):])
		if !dirty || err != nil {
			return false, n, err
		}
		switch child := child.(type) {
		case *LeafNode:
			// The child is merged into its parent, track it as deleted.
			t.tracer.onDelete(append(prefix, n.Key...))
			return true, newLeafNode(concat(n.Key, child.Key...), child.Value), nil
		case *ExtensionNode:
			t.tracer.onDelete(append(prefix, n.Key...))
			return true, newExtensionNode(concat(n.Key, child.Key...), child.Child), nil
		default:
			return true, newExtensionNode(n.Key, child), nil
		}
	case *BranchNode:
		if len(key) == 0 {
			if n.Value == nil {
				return false, n, nil
			}
			n = n.copy()
			n.BaseNode = newFlag()
			n.Value = nil
			return t.collapseBranch(n, prefix)
		}
		dirty, nn, err := t.delete(n.Children[key[0]], append(prefix, key[0]), key[1:])
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.BaseNode = newFlag()
		n.Children[key[0]] = nn
		return t.collapseBranch(n, prefix)
	case HashNode:
		rn, err := t.resolveAndTrack(n, prefix)
		if err != nil {
			return false, nil, err
		}
		dirty, nn, err := t.delete(rn, prefix, key)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil
	default:
		panic(fmt.Sprintf("%T: invalid node: %v (%v)", n, n, key))
	}
}

// collapseBranch reduces a branch left with less than two references
// after a deletion. A branch with a single remaining child is replaced by
// an extension or, when the child is a leaf or this branch only holds a
// value, by a leaf.
func (t *Trie) collapseBranch(n *BranchNode, prefix []byte) (bool, Node, error) {
	// Count how many references are left. pos stays at the only used
	// index when there is exactly one, 16 meaning the value slot.
	pos := -1
	for i, cld := range &n.Children {
		if cld != nil {
			if pos == -1 {
				pos = i
			} else {
				pos = -2
				break
			}
		}
	}
	if n.Value != nil {
		if pos == -1 {
			pos = childrenCount
		} else if pos >= 0 {
			pos = -2
		}
	}
	if pos == -2 {
		return true, n, nil // still a valid branch
	}
	if pos == childrenCount {
		// Only the value slot is used, the branch degrades to a leaf at
		// the same path.
		return true, newLeafNode(nil, n.Value), nil
	}
	// The single remaining child may be a leaf or extension to merge the
	// freed-up nibble into, but it needs to be resolved first to know.
	child := n.Children[pos]
	if hn, ok := child.(HashNode); ok {
		rn, err := t.resolveAndTrack(hn, append(prefix, byte(pos)))
		if err != nil {
			return false, nil, err
		}
		child = rn
	}
	switch child := child.(type) {
	case *LeafNode:
		t.tracer.onDelete(append(prefix, byte(pos)))
		return true, newLeafNode(concat([]byte{byte(pos)}, child.Key...), child.Value), nil
	case *ExtensionNode:
		t.tracer.onDelete(append(prefix, byte(pos)))
		return true, newExtensionNode(concat([]byte{byte(pos)}, child.Key...), child.Child), nil
	default:
		return true, newExtensionNode([]byte{byte(pos)}, child), nil
	}
}

func concat(s1 []byte, s2 ...byte) []byte {
	r := make([]byte, len(s1)+len(s2))
	copy(r, s1)
	copy(r[len(s1):], s2)
	return r
}

// resolveAndTrack loads the node from the reader, caches its original
// blob in the tracer and decodes it.
func (t *Trie) resolveAndTrack(n HashNode, prefix []byte) (Node, error) {
	blob, err := t.reader.node(prefix, common.BytesToHash(n))
	if err != nil {
		return nil, err
	}
	t.tracer.onRead(prefix, blob)
	return decodeNode(n, blob)
}

// Hash returns the root hash of the trie. It does not write to the
// backing store even if the trie does not have one.
func (t *Trie) Hash() common.Hash {
	hash, cached := t.hashRoot()
	t.root = cached
	return common.BytesToHash(hash.(HashNode))
}

// hashRoot calculates the root hash of the given trie.
func (t *Trie) hashRoot() (Node, Node) {
	if t.root == nil {
		return HashNode(EmptyRootHash.Bytes()), nil
	}
	// If the number of changes is below 100, let the concurrency stay
	// out of it, the goroutines overhead dominates on small tries.
	h := newHasher(t.unhashed >= 100)
	defer returnHasherToPool(h)
	hashed, cached := h.hash(t.root, true)
	t.unhashed = 0
	return hashed, cached
}

// Commit collects all dirty nodes in the trie and replaces the actual
// trie with the node hashes. The returned NodeSet is nil when the trie
// has no changes to commit; the caller flushes collected sets into the
// store in a later batch.
//
// Committing resets the internal change tracking, the trie keeps working
// on top of the new state afterwards.
func (t *Trie) Commit(collectLeaf bool) (common.Hash, *NodeSet, error) {
	defer func() {
		t.tracer.reset()
		t.uncommitted = 0
	}()
	// The trie may be emptied by deletions, in which case the nodes
	// removed from the store are all the tracer saw vanish.
	if t.root == nil {
		paths := t.tracer.deletedNodes()
		if len(paths) == 0 {
			return EmptyRootHash, nil, nil
		}
		nodes := NewNodeSet(t.owner)
		for _, path := range paths {
			nodes.AddNode([]byte(path), NewDeleted())
		}
		return EmptyRootHash, nodes, nil
	}
	rootHash := t.Hash()

	// If the root is clean, the trie holds no dirty nodes at all.
	if hashedNode, dirty := t.root.cache(); !dirty {
		t.root = hashedNode
		return rootHash, nil, nil
	}
	nodes := NewNodeSet(t.owner)
	for _, path := range t.tracer.deletedNodes() {
		nodes.AddNode([]byte(path), NewDeleted())
	}
	t.root = newCommitter(nodes, t.tracer, collectLeaf).Commit(t.root, t.uncommitted >= 100)
	return rootHash, nodes, nil
}
