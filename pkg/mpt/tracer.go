package mpt

// tracer tracks the changes of trie nodes over a commit cycle. Paths are
// nibble sequences keyed as strings. An insert and a delete of the same
// path cancel out. The access list holds the original blob of every node
// resolved from the reader, which is how the committer knows a node
// existed before the cycle.
type tracer struct {
	inserts    map[string]struct{}
	deletes    map[string]struct{}
	accessList map[string][]byte
}

func newTracer() *tracer {
	return &tracer{
		inserts:    make(map[string]struct{}),
		deletes:    make(map[string]struct{}),
		accessList: make(map[string][]byte),
	}
}

// onRead records the original blob of a node resolved from the reader.
func (t *tracer) onRead(path []byte, val []byte) {
	t.accessList[string(path)] = val
}

// onInsert marks a path as newly created. A path deleted earlier in the
// same cycle is merely resurrected.
func (t *tracer) onInsert(path []byte) {
	if _, present := t.deletes[string(path)]; present {
		delete(t.deletes, string(path))
		return
	}
	t.inserts[string(path)] = struct{}{}
}

// onDelete marks a path as removed. A path created earlier in the same
// cycle simply vanishes.
func (t *tracer) onDelete(path []byte) {
	if _, present := t.inserts[string(path)]; present {
		delete(t.inserts, string(path))
		return
	}
	t.deletes[string(path)] = struct{}{}
}

// reset clears the tracked state, to be called after each commit cycle.
func (t *tracer) reset() {
	t.inserts = make(map[string]struct{})
	t.deletes = make(map[string]struct{})
	t.accessList = make(map[string][]byte)
}

func (t *tracer) copy() *tracer {
	inserts := make(map[string]struct{}, len(t.inserts))
	for path := range t.inserts {
		inserts[path] = struct{}{}
	}
	deletes := make(map[string]struct{}, len(t.deletes))
	for path := range t.deletes {
		deletes[path] = struct{}{}
	}
	accessList := make(map[string][]byte, len(t.accessList))
	for path, blob := range t.accessList {
		accessList[path] = blob
	}
	return &tracer{
		inserts:    inserts,
		deletes:    deletes,
		accessList: accessList,
	}
}

// deletedNodes returns the paths of nodes that existed in the reader
// before the cycle and are gone now.
func (t *tracer) deletedNodes() []string {
	var paths []string
	for path := range t.deletes {
		if _, ok := t.accessList[path]; ok {
			paths = append(paths, path)
		}
	}
	return paths
}
