package mpt

import "github.com/ethereum/go-ethereum/rlp"

// LeafNode terminates a key and stores its value. Key holds the remaining
// nibbles of the key below the parent and may be empty.
type LeafNode struct {
	BaseNode
	Key   []byte
	Value []byte
}

func newLeafNode(key, value []byte) *LeafNode {
	return &LeafNode{BaseNode: newFlag(), Key: key, Value: value}
}

func (n *LeafNode) copy() *LeafNode {
	cpy := *n
	return &cpy
}

func (n *LeafNode) encode(w rlp.EncoderBuffer) {
	offset := w.List()
	w.WriteBytes(nibblesToCompact(n.Key, true))
	w.WriteBytes(n.Value)
	w.ListEnd(offset)
}
