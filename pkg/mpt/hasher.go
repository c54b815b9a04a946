package mpt

import (
	"hash"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/sha3"
)

// keccakState extends hash.Hash with Read, which is much faster than Sum
// because it does not copy the internal sponge state.
type keccakState interface {
	hash.Hash
	Read([]byte) (int, error)
}

// hasher computes node hashes bottom-up. A node whose encoding is shorter
// than 32 bytes is left in place to be embedded in its parent; the root is
// always hashed via the force flag.
type hasher struct {
	sha      keccakState
	tmp      []byte
	encbuf   rlp.EncoderBuffer
	parallel bool // whether to hash branch children concurrently
}

var hasherPool = sync.Pool{
	New: func() any {
		return &hasher{
			tmp:    make([]byte, 0, 550), // cap is enough for a full branch node
			sha:    sha3.NewLegacyKeccak256().(keccakState),
			encbuf: rlp.NewEncoderBuffer(nil),
		}
	},
}

func newHasher(parallel bool) *hasher {
	h := hasherPool.Get().(*hasher)
	h.parallel = parallel
	return h
}

func returnHasherToPool(h *hasher) {
	hasherPool.Put(h)
}

// hash collapses a node down into a hash node, returning a copy of the
// original node initialized with the computed hash.
func (h *hasher) hash(n Node, force bool) (hashed Node, cached Node) {
	// Return the cached hash if it is available.
	if hash, _ := n.cache(); hash != nil {
		return hash, n
	}
	switch n := n.(type) {
	case *LeafNode:
		cached := n.copy()
		hashed := h.nodeToHash(n, force)
		if hn, ok := hashed.(HashNode); ok {
			cached.hash = hn
		} else {
			cached.hash = nil
		}
		return hashed, cached
	case *ExtensionNode:
		collapsed, cached := h.hashExtensionChild(n)
		hashed := h.nodeToHash(collapsed, force)
		if hn, ok := hashed.(HashNode); ok {
			cached.hash = hn
		} else {
			cached.hash = nil
		}
		return hashed, cached
	case *BranchNode:
		collapsed, cached := h.hashBranchChildren(n)
		hashed := h.nodeToHash(collapsed, force)
		if hn, ok := hashed.(HashNode); ok {
			cached.hash = hn
		} else {
			cached.hash = nil
		}
		return hashed, cached
	default:
		// Value and hash nodes have no children to hash.
		return n, n
	}
}

// hashExtensionChild replaces the child with its hash, returning the
// collapsed node to encode and a cached copy holding the child with all
// hashes filled in.
func (h *hasher) hashExtensionChild(n *ExtensionNode) (collapsed, cached *ExtensionNode) {
	collapsed, cached = n.copy(), n.copy()
	switch n.Child.(type) {
	case *BranchNode, *ExtensionNode, *LeafNode:
		collapsed.Child, cached.Child = h.hash(n.Child, false)
	}
	return collapsed, cached
}

func (h *hasher) hashBranchChildren(n *BranchNode) (collapsed, cached *BranchNode) {
	collapsed, cached = n.copy(), n.copy()
	if h.parallel {
		var wg sync.WaitGroup
		wg.Add(childrenCount)
		for i := 0; i < childrenCount; i++ {
			go func(i int) {
				defer wg.Done()
				if child := n.Children[i]; child != nil {
					hasher := newHasher(false)
					collapsed.Children[i], cached.Children[i] = hasher.hash(child, false)
					returnHasherToPool(hasher)
				}
			}(i)
		}
		wg.Wait()
	} else {
		for i := 0; i < childrenCount; i++ {
			if child := n.Children[i]; child != nil {
				collapsed.Children[i], cached.Children[i] = h.hash(child, false)
			}
		}
	}
	return collapsed, cached
}

// nodeToHash encodes the collapsed node and hashes it unless the encoding
// is short enough to be embedded in the parent.
func (h *hasher) nodeToHash(n Node, force bool) Node {
	n.encode(h.encbuf)
	enc := h.encodedBytes()
	if len(enc) < hashLen && !force {
		return n // node embeds into its parent
	}
	return h.hashData(enc)
}

// encodedBytes drains the encoder buffer filled by a preceding encode
// call. It is not concurrency safe, each goroutine needs its own hasher.
func (h *hasher) encodedBytes() []byte {
	h.tmp = h.encbuf.AppendToBytes(h.tmp[:0])
	h.encbuf.Reset(nil)
	return h.tmp
}

// hashData hashes the provided data.
func (h *hasher) hashData(data []byte) HashNode {
	n := make(HashNode, hashLen)
	h.sha.Reset()
	h.sha.Write(data)
	h.sha.Read(n)
	return n
}
