package mpt

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// committer collapses a hashed trie into a NodeSet of dirty nodes keyed
// by path. The trie must have been hashed before committing.
type committer struct {
	nodes       *NodeSet
	tracer      *tracer
	collectLeaf bool
}

func newCommitter(nodeset *NodeSet, tracer *tracer, collectLeaf bool) *committer {
	return &committer{
		nodes:       nodeset,
		tracer:      tracer,
		collectLeaf: collectLeaf,
	}
}

// Commit collapses a node down into a hash node and collects all dirty
// nodes along the way.
func (c *committer) Commit(n Node, parallel bool) HashNode {
	return c.commit(nil, n, parallel).(HashNode)
}

// commit collapses a node down into a hash node and returns it.
func (c *committer) commit(path []byte, n Node, parallel bool) Node {
	// If the node's cached hash is available and the node is clean, the
	// node is committed already.
	hash, dirty := n.cache()
	if hash != nil && !dirty {
		return hash
	}
	switch cn := n.(type) {
	case *LeafNode:
		hashedNode := c.store(path, cn)
		if hn, ok := hashedNode.(HashNode); ok {
			return hn
		}
		return cn
	case *ExtensionNode:
		collapsed := cn.copy()
		// Commit child node first, it is always a branch if not yet
		// collapsed to a hash reference.
		if _, ok := cn.Child.(HashNode); !ok {
			collapsed.Child = c.commit(append(path, cn.Key...), cn.Child, false)
		}
		hashedNode := c.store(path, collapsed)
		if hn, ok := hashedNode.(HashNode); ok {
			return hn
		}
		return collapsed
	case *BranchNode:
		hashedKids := c.commitChildren(path, cn, parallel)
		collapsed := cn.copy()
		collapsed.Children = hashedKids
		hashedNode := c.store(path, collapsed)
		if hn, ok := hashedNode.(HashNode); ok {
			return hn
		}
		return collapsed
	case HashNode:
		return cn
	default:
		panic(fmt.Sprintf("%T: invalid node: %v", n, n))
	}
}

// commitChildren commits the children of the given branch node.
func (c *committer) commitChildren(path []byte, n *BranchNode, parallel bool) [childrenCount]Node {
	var (
		wg       sync.WaitGroup
		nodesMu  sync.Mutex
		children [childrenCount]Node
	)
	for i := 0; i < childrenCount; i++ {
		child := n.Children[i]
		if child == nil {
			continue
		}
		// If it is the hash of a referenced node, commit is skipped, the
		// node is already committed.
		if hn, ok := child.(HashNode); ok {
			children[i] = hn
			continue
		}
		// Commit the child recursively. Note the path is a nibble array,
		// grown by the child index.
		if !parallel {
			children[i] = c.commit(append(path, byte(i)), child, false)
			continue
		}
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			p := append(append([]byte(nil), path...), byte(index))
			childSet := NewNodeSet(c.nodes.Owner)
			childCommitter := newCommitter(childSet, c.tracer, c.collectLeaf)
			children[index] = childCommitter.commit(p, child, false)
			nodesMu.Lock()
			c.nodes.MergeSet(childSet)
			nodesMu.Unlock()
		}(i)
	}
	if parallel {
		wg.Wait()
	}
	return children
}

// store hashes the node n and adds it into the dirty node set. If the
// node is too small to be hashed it remains embedded in its parent, but
// a previously persisted version of it must still be deleted.
func (c *committer) store(path []byte, n Node) Node {
	hash, _ := n.cache()
	if hash == nil {
		// The node was not hashed because it is smaller than 32 bytes.
		// If a node with the same path existed in the database before,
		// mark it as deleted now that it got embedded.
		if _, ok := c.tracer.accessList[string(path)]; ok {
			c.nodes.AddNode(path, NewDeleted())
		}
		return n
	}
	nhash := common.BytesToHash(hash)
	c.nodes.AddNode(path, NewTrieNode(nhash, nodeToBytes(n)))
	// Collect the corresponding leaf value if it is required. Leaves
	// embedded into their parent are skipped, external consumers only
	// resolve hash-addressed nodes.
	if c.collectLeaf {
		if ln, ok := n.(*LeafNode); ok {
			c.nodes.AddLeaf(nhash, ln.Value)
		}
	}
	return hash
}
