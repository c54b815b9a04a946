package triedb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Keys of the persisted state metadata. They share the atomic change set
// with the trie nodes, so the store never holds nodes of a state whose
// root was not recorded.
const (
	// StateRootKey is the store key of the persisted account trie root.
	StateRootKey = "state_root"
	// BlockNumberKey is the store key of the persisted block number.
	BlockNumberKey = "block_number"
)

// ErrStaleBlock is returned by Flush when the block number does not grow.
var ErrStaleBlock = errors.New("stale block number")

// Flush writes the diff layer down to the store in one atomic change set
// together with the new state root and block number. Block numbers must
// be strictly increasing. The flushed layer stops being searched by node
// lookups, reads are served from the store afterwards.
func (db *TrieDB) Flush(blockNumber uint64, root common.Hash, diff *DiffLayer) error {
	start := time.Now()
	if diff.Root != root {
		return fmt.Errorf("flushing mismatched layer: have root %x, want %x", diff.Root, root)
	}
	if block, _, ok := db.LatestPersistState(); ok && blockNumber <= block {
		return fmt.Errorf("%w: flushing %d on top of %d", ErrStaleBlock, blockNumber, block)
	}
	puts := make(map[string][]byte)
	for owner, subset := range diff.Nodes {
		for path, n := range subset {
			key := string(nodeKey(owner, []byte(path)))
			if n.IsDeleted() {
				puts[key] = nil
			} else {
				puts[key] = n.Blob
			}
		}
	}
	var blockBuf [8]byte
	binary.BigEndian.PutUint64(blockBuf[:], blockNumber)
	puts[StateRootKey] = root.Bytes()
	puts[BlockNumberKey] = blockBuf[:]
	if err := db.store.PutChangeSet(puts); err != nil {
		return fmt.Errorf("failed to flush block %d: %w", blockNumber, err)
	}
	// Move the freshly persisted blobs over to the clean cache and drop
	// the layer from the lookup stack.
	for owner, subset := range diff.Nodes {
		for path, n := range subset {
			key := string(nodeKey(owner, []byte(path)))
			if n.IsDeleted() {
				db.cleans.Remove(key)
			} else {
				db.cleans.Add(key, n.Blob)
			}
		}
	}
	for i, layer := range db.layers {
		if layer == diff {
			db.layers = append(db.layers[:i:i], db.layers[i+1:]...)
			break
		}
	}
	flushedNodesCount.Add(float64(diff.NodeCount()))
	flushDuration.Observe(time.Since(start).Seconds())
	db.log.Info("flushed state",
		zap.Uint64("block", blockNumber),
		zap.Stringer("root", root),
		zap.Int("nodes", diff.NodeCount()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// LatestPersistState returns the block number and state root recorded by
// the latest flush. It reports false when the store holds no state yet.
func (db *TrieDB) LatestPersistState() (uint64, common.Hash, bool) {
	rootBlob, err := db.store.Get([]byte(StateRootKey))
	if err != nil || len(rootBlob) != common.HashLength {
		return 0, common.Hash{}, false
	}
	numBlob, err := db.store.Get([]byte(BlockNumberKey))
	if err != nil || len(numBlob) != 8 {
		return 0, common.Hash{}, false
	}
	return binary.BigEndian.Uint64(numBlob), common.BytesToHash(rootBlob), true
}
