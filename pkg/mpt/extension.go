package mpt

import "github.com/ethereum/go-ethereum/rlp"

// ExtensionNode compresses a run of nibbles shared by every key below it.
// Key is stored as raw nibbles and compacted on encoding.
type ExtensionNode struct {
	BaseNode
	Key   []byte
	Child Node
}

func newExtensionNode(key []byte, child Node) *ExtensionNode {
	return &ExtensionNode{BaseNode: newFlag(), Key: key, Child: child}
}

func (n *ExtensionNode) copy() *ExtensionNode {
	cpy := *n
	return &cpy
}

func (n *ExtensionNode) encode(w rlp.EncoderBuffer) {
	offset := w.List()
	w.WriteBytes(nibblesToCompact(n.Key, false))
	if n.Child != nil {
		n.Child.encode(w)
	} else {
		w.Write(rlp.EmptyString)
	}
	w.ListEnd(offset)
}
