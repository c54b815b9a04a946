package mpt

import "github.com/ethereum/go-ethereum/rlp"

// childrenCount is the number of children of a branch node, one per
// possible nibble value.
const childrenCount = 16

// BranchNode fans out on the next nibble of the key. Value holds the
// value of a key that is exhausted at this node.
type BranchNode struct {
	BaseNode
	Children [childrenCount]Node
	Value    []byte
}

func newBranchNode() *BranchNode {
	return &BranchNode{BaseNode: newFlag()}
}

func (n *BranchNode) copy() *BranchNode {
	cpy := *n
	return &cpy
}

func (n *BranchNode) encode(w rlp.EncoderBuffer) {
	offset := w.List()
	for _, c := range n.Children {
		if c != nil {
			c.encode(w)
		} else {
			w.Write(rlp.EmptyString)
		}
	}
	w.WriteBytes(n.Value)
	w.ListEnd(offset)
}
