package mpt

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func newEmptyStateTrie(t *testing.T, reader NodeReader) *StateTrie {
	t.Helper()
	tr, err := NewStateTrie(EmptyRootHash, common.Hash{}, reader)
	require.NoError(t, err)
	return tr
}

func TestStateTrieStorageKnownRoot(t *testing.T) {
	tr := newEmptyStateTrie(t, nil)
	for _, kv := range wikiPairs {
		require.NoError(t, tr.UpdateStorage([]byte(kv[0]), []byte(kv[1])))
	}
	require.Equal(t,
		common.HexToHash("67d72f3a538c7df7a5eefceb526834837c1ba41506b21a2821204e22b1a53279"),
		tr.Hash())

	require.NoError(t, tr.DeleteStorage([]byte("doge")))
	require.Equal(t,
		common.HexToHash("58acbf2fd0d83a56fe2a213f8d689170526e9344feb90f735037f2d6acd4677a"),
		tr.Hash())
}

func TestStateTrieStorageKnownRootMany(t *testing.T) {
	tr := newEmptyStateTrie(t, nil)
	for i := 0; i < 100; i++ {
		require.NoError(t, tr.UpdateStorage(
			[]byte(fmt.Sprintf("key-%d", i)),
			[]byte(fmt.Sprintf("value-%d", i))))
	}
	require.Equal(t,
		common.HexToHash("c4b2d55a86947fd7af630f51d34a0ab60c213dad741c0a8558745b836f65421f"),
		tr.Hash())
}

func TestStateTrieStorageRoundTrip(t *testing.T) {
	tr := newEmptyStateTrie(t, nil)

	// Leading zeroes are trimmed on write, the fetched value is the
	// canonical short form.
	slot := common.HexToHash("01").Bytes()
	require.NoError(t, tr.UpdateStorage(slot, common.HexToHash("083d").Bytes()))
	v, err := tr.GetStorage(slot)
	require.NoError(t, err)
	require.Equal(t, []byte{0x08, 0x3d}, v)

	absent, err := tr.GetStorage(common.HexToHash("02").Bytes())
	require.NoError(t, err)
	require.Nil(t, absent)

	require.NoError(t, tr.DeleteStorage(slot))
	v, err = tr.GetStorage(slot)
	require.NoError(t, err)
	require.Nil(t, v)
	require.Equal(t, EmptyRootHash, tr.Hash())
}

func TestStateTrieAccounts(t *testing.T) {
	tr := newEmptyStateTrie(t, nil)
	addr := common.HexToAddress("0xaabbccddeeff00112233445566778899aabbccdd")

	acct, err := tr.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, acct)

	want := NewEmptyStateAccount()
	want.Nonce = 7
	want.Balance = uint256.NewInt(1_000_000)
	require.NoError(t, tr.UpdateAccount(addr, want))

	acct, err = tr.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, want.Nonce, acct.Nonce)
	require.Equal(t, want.Balance, acct.Balance)
	require.Equal(t, EmptyRootHash, acct.Root)
	require.Equal(t, EmptyCodeHash.Bytes(), acct.CodeHash)

	require.NoError(t, tr.DeleteAccount(addr))
	acct, err = tr.GetAccount(addr)
	require.NoError(t, err)
	require.Nil(t, acct)
}

func TestStateTrieByHashMatchesPlain(t *testing.T) {
	plain := newEmptyStateTrie(t, nil)
	byHash := newEmptyStateTrie(t, nil)
	addr := common.HexToAddress("0x00aa00bb00cc00dd00ee00ff00aa00bb00cc00dd")
	addrHash := common.BytesToHash(hashKeyOf(addr.Bytes()))

	acct := NewEmptyStateAccount()
	acct.Nonce = 3
	require.NoError(t, plain.UpdateAccount(addr, acct))
	require.NoError(t, byHash.UpdateAccountByHash(addrHash, acct))
	require.Equal(t, plain.Hash(), byHash.Hash())

	got, err := byHash.GetAccountByHash(addrHash)
	require.NoError(t, err)
	require.Equal(t, acct.Nonce, got.Nonce)
}

// hashKeyOf mirrors the key hashing of StateTrie for test comparisons.
func hashKeyOf(key []byte) []byte {
	h := newHasher(false)
	defer returnHasherToPool(h)
	return h.hashData(key)
}

func TestStateTrieCommitReload(t *testing.T) {
	store := newMapReader()
	tr, err := NewStateTrie(EmptyRootHash, common.Hash{}, store)
	require.NoError(t, err)
	for _, kv := range wikiPairs {
		require.NoError(t, tr.UpdateStorage([]byte(kv[0]), []byte(kv[1])))
	}
	root, set, err := tr.Commit(false)
	require.NoError(t, err)
	store.apply(t, set)

	reloaded, err := NewStateTrie(root, common.Hash{}, store)
	require.NoError(t, err)
	for _, kv := range wikiPairs {
		v, err := reloaded.GetStorage([]byte(kv[0]))
		require.NoError(t, err)
		require.Equal(t, []byte(kv[1]), v)
	}
}

func TestStateTrieCopy(t *testing.T) {
	tr := newEmptyStateTrie(t, nil)
	require.NoError(t, tr.UpdateStorage([]byte("dog"), []byte("puppy")))
	root := tr.Hash()

	cp := tr.Copy()
	require.NoError(t, cp.UpdateStorage([]byte("dog"), []byte("wolf")))
	require.NotEqual(t, root, cp.Hash())
	require.Equal(t, root, tr.Hash())
}
