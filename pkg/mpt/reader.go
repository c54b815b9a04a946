package mpt

import "github.com/ethereum/go-ethereum/common"

// NodeReader resolves trie nodes by their path-keyed location. The owner
// is the hashed account address for storage tries and the zero hash for
// the account trie. Implementations return the node blob whose keccak256
// equals hash, or a nil blob when the node is unknown.
type NodeReader interface {
	Node(owner common.Hash, path []byte, hash common.Hash) ([]byte, error)
}

// trieReader wraps a NodeReader with the owner of the trie being read and
// converts unknown nodes into MissingNodeError.
type trieReader struct {
	owner  common.Hash
	reader NodeReader
}

// newTrieReader initializes the reader for the given root. An empty trie
// resolves nothing at first, but it keeps the reader: the handle stays in
// use after commits and must be able to load its own collapsed nodes
// back.
func newTrieReader(root, owner common.Hash, reader NodeReader) (*trieReader, error) {
	if reader == nil && root != (common.Hash{}) && root != EmptyRootHash {
		return nil, &MissingNodeError{Owner: owner, NodeHash: root}
	}
	return &trieReader{owner: owner, reader: reader}, nil
}

// node retrieves the blob of the node with the given path and hash.
func (r *trieReader) node(path []byte, hash common.Hash) ([]byte, error) {
	if r.reader == nil {
		return nil, &MissingNodeError{Owner: r.owner, NodeHash: hash, Path: path}
	}
	blob, err := r.reader.Node(r.owner, path, hash)
	if err != nil || len(blob) == 0 {
		return nil, &MissingNodeError{Owner: r.owner, NodeHash: hash, Path: path, err: err}
	}
	return blob, nil
}
