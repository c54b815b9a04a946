package mpt

// BaseNode carries the cached hash and dirty state shared by all
// modifiable node kinds. A nil hash means the node has not been hashed
// since its last modification; dirty means it has changes not yet
// committed to a NodeSet.
type BaseNode struct {
	hash  HashNode
	dirty bool
}

// newFlag returns the cache state for a freshly created or modified node.
func newFlag() BaseNode {
	return BaseNode{dirty: true}
}

func (b *BaseNode) cache() (HashNode, bool) {
	return b.hash, b.dirty
}

// invalidateCache drops the cached hash and marks the node dirty.
func (b *BaseNode) invalidateCache() {
	b.hash = nil
	b.dirty = true
}
