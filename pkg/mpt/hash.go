package mpt

import "github.com/ethereum/go-ethereum/rlp"

// HashNode is the 32-byte keccak256 reference to a node that has not been
// resolved from the backing reader.
type HashNode []byte

func (n HashNode) cache() (HashNode, bool) {
	return n, false
}

func (n HashNode) encode(w rlp.EncoderBuffer) {
	w.WriteBytes(n)
}
