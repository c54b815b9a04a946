package triedb

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eth-state/triedb/pkg/mpt"
)

// CalculateHash returns the state root the pending changes lead to,
// without committing anything. Storage tries are hashed concurrently and
// their roots are written into the owning accounts before the account
// trie itself is hashed.
func (db *TrieDB) CalculateHash() (common.Hash, error) {
	roots, err := db.hashStorageTries()
	if err != nil {
		return common.Hash{}, err
	}
	if err := db.applyStorageRoots(roots); err != nil {
		return common.Hash{}, err
	}
	return db.accounts.Hash(), nil
}

// hashStorageTries hashes every open storage trie concurrently.
func (db *TrieDB) hashStorageTries() (map[common.Hash]common.Hash, error) {
	var (
		mut   sync.Mutex
		roots = make(map[common.Hash]common.Hash, len(db.storages))
		g     errgroup.Group
	)
	for addrHash, tr := range db.storages {
		addrHash, tr := addrHash, tr
		g.Go(func() error {
			root := tr.Hash()
			mut.Lock()
			roots[addrHash] = root
			mut.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return roots, nil
}

// applyStorageRoots writes recalculated storage roots into the owning
// accounts. Roots of accounts that were destroyed in the meantime are
// dropped.
func (db *TrieDB) applyStorageRoots(roots map[common.Hash]common.Hash) error {
	for addrHash, root := range roots {
		acct, err := db.accounts.GetAccountByHash(addrHash)
		if err != nil {
			return err
		}
		if acct == nil || acct.Root == root {
			continue
		}
		acct.Root = root
		if err := db.accounts.UpdateAccountByHash(addrHash, acct); err != nil {
			return err
		}
	}
	return nil
}

// Commit seals the pending changes of all open tries: storage tries are
// committed concurrently, their new roots are written into the owning
// accounts and the account trie is committed last. The merged dirty nodes
// are also stacked as a new DiffLayer, so the database remains readable
// before the layer is flushed.
func (db *TrieDB) Commit(collectLeaf bool) (common.Hash, *mpt.MergedNodeSet, error) {
	start := time.Now()
	var (
		mut    sync.Mutex
		merged = mpt.NewMergedNodeSet()
		roots  = make(map[common.Hash]common.Hash, len(db.storages))
		g      errgroup.Group
	)
	for addrHash, tr := range db.storages {
		addrHash, tr := addrHash, tr
		g.Go(func() error {
			root, set, err := tr.Commit(collectLeaf)
			if err != nil {
				return err
			}
			mut.Lock()
			defer mut.Unlock()
			roots[addrHash] = root
			if set != nil {
				return merged.Merge(set)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return common.Hash{}, nil, err
	}
	if err := db.applyStorageRoots(roots); err != nil {
		return common.Hash{}, nil, err
	}
	root, set, err := db.accounts.Commit(collectLeaf)
	if err != nil {
		return common.Hash{}, nil, err
	}
	if set != nil {
		if err := merged.Merge(set); err != nil {
			return common.Hash{}, nil, err
		}
	}
	layer := NewDiffLayer(root, merged, roots)
	db.layers = append([]*DiffLayer{layer}, db.layers...)
	db.head = layer

	commitDuration.Observe(time.Since(start).Seconds())
	db.log.Debug("committed state",
		zap.Stringer("root", root),
		zap.Int("nodes", layer.NodeCount()),
		zap.Duration("took", time.Since(start)))
	return root, merged, nil
}
