package mpt

import (
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Node is an element of the trie. Concrete kinds are BranchNode,
// ExtensionNode, LeafNode and HashNode; a nil Node stands for an empty
// (sub)trie.
type Node interface {
	cache() (HashNode, bool)
	encode(w rlp.EncoderBuffer)
}

const hashLen = common.HashLength

// nodeToBytes returns the canonical RLP encoding of n. Children that are
// not embedded must already be collapsed to HashNode references.
func nodeToBytes(n Node) []byte {
	w := rlp.NewEncoderBuffer(nil)
	n.encode(w)
	result := w.ToBytes()
	w.Flush()
	return result
}

// decodeNode parses the RLP encoding of a trie node. The blob is copied,
// so the caller may reuse it afterwards.
func decodeNode(hash, buf []byte) (Node, error) {
	return decodeNodeUnsafe(hash, common.CopyBytes(buf))
}

// decodeNodeUnsafe parses a trie node, retaining references into buf.
func decodeNodeUnsafe(hash, buf []byte) (Node, error) {
	if len(buf) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	elems, _, err := rlp.SplitList(buf)
	if err != nil {
		return nil, fmt.Errorf("decode error: %w", err)
	}
	switch c, _ := rlp.CountValues(elems); c {
	case 2:
		n, err := decodeShort(hash, elems)
		return n, wrapError(err, "short")
	case 17:
		n, err := decodeFull(hash, elems)
		return n, wrapError(err, "full")
	default:
		return nil, fmt.Errorf("invalid number of list elements: %v", c)
	}
}

func mustDecodeNode(hash, buf []byte) Node {
	n, err := decodeNode(hash, buf)
	if err != nil {
		panic(fmt.Sprintf("node %x: %v", hash, err))
	}
	return n
}

func decodeShort(hash, elems []byte) (Node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	flag := BaseNode{hash: HashNode(hash)}
	key, leaf := compactToNibbles(kbuf)
	if leaf {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid value node: %w", err)
		}
		return &LeafNode{BaseNode: flag, Key: key, Value: val}, nil
	}
	child, _, err := decodeRef(rest)
	if err != nil {
		return nil, wrapError(err, "child")
	}
	return &ExtensionNode{BaseNode: flag, Key: key, Child: child}, nil
}

func decodeFull(hash, elems []byte) (*BranchNode, error) {
	n := &BranchNode{BaseNode: BaseNode{hash: HashNode(hash)}}
	for i := 0; i < childrenCount; i++ {
		cld, rest, err := decodeRef(elems)
		if err != nil {
			return nil, wrapError(err, fmt.Sprintf("[%d]", i))
		}
		n.Children[i], elems = cld, rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	if len(val) > 0 {
		n.Value = val
	}
	return n, nil
}

// decodeRef parses a child reference. A reference is either a node whose
// encoding was shorter than 32 bytes, embedded in place, or the 32-byte
// hash of the child's encoding.
func decodeRef(buf []byte) (Node, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, buf, err
	}
	switch {
	case kind == rlp.List:
		// Embedded nodes must be smaller than a hash to be valid.
		if size := len(buf) - len(rest); size > hashLen {
			return nil, buf, fmt.Errorf("oversized embedded node (size is %d bytes, want size < %d)", size, hashLen)
		}
		n, err := decodeNodeUnsafe(nil, buf[:len(buf)-len(rest)])
		return n, rest, err
	case kind == rlp.String && len(val) == 0:
		// Empty node reference.
		return nil, rest, nil
	case kind == rlp.String && len(val) == hashLen:
		return HashNode(val), rest, nil
	default:
		return nil, nil, fmt.Errorf("invalid RLP string size %d (want 0 or 32)", len(val))
	}
}

// decodeError keeps track of the path within the node where decoding
// failed.
type decodeError struct {
	what  error
	stack []string
}

func wrapError(err error, ctx string) error {
	if err == nil {
		return nil
	}
	if decErr, ok := err.(*decodeError); ok {
		decErr.stack = append(decErr.stack, ctx)
		return decErr
	}
	return &decodeError{err, []string{ctx}}
}

func (err *decodeError) Error() string {
	return fmt.Sprintf("%v (decode path: %s)", err.what, strings.Join(err.stack, "<-"))
}
