package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providers(t *testing.T) map[string]IterableProvider {
	t.Helper()
	dir := t.TempDir()

	level, err := NewLevelDBProvider(filepath.Join(dir, "level"))
	require.NoError(t, err)
	bolt, err := NewBoltDBProvider(filepath.Join(dir, "wallet.bolt"))
	require.NoError(t, err)

	all := map[string]IterableProvider{
		"leveldb": level,
		"bolt":    bolt,
		"memory":  NewMemoryProvider(),
	}
	t.Cleanup(func() {
		for _, p := range all {
			_ = p.Close()
		}
	})
	return all
}

func TestProviderGetPutDelete(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			value, err := p.Get([]byte("missing"))
			require.NoError(t, err)
			assert.Nil(t, value)

			require.NoError(t, p.Put([]byte("k"), []byte("v1")))
			value, err = p.Get([]byte("k"))
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), value)

			has, err := p.Has([]byte("k"))
			require.NoError(t, err)
			assert.True(t, has)

			require.NoError(t, p.Delete([]byte("k")))
			has, err = p.Has([]byte("k"))
			require.NoError(t, err)
			assert.False(t, has)
		})
	}
}

func TestProviderBatchAndPrefix(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Put([]byte("utxo:stale"), []byte("x")))
			require.NoError(t, p.Put([]byte("other:1"), []byte("y")))

			batch := p.Batch()
			batch.Put([]byte("utxo:b"), []byte("2"))
			batch.Put([]byte("utxo:a"), []byte("1"))
			batch.Delete([]byte("utxo:stale"))
			require.NoError(t, batch.Write())
			batch.Close()

			var keys []string
			require.NoError(t, p.IteratePrefix([]byte("utxo:"), func(key, value []byte) bool {
				keys = append(keys, string(key))
				return true
			}))
			assert.Equal(t, []string{"utxo:a", "utxo:b"}, keys)

			var first []string
			require.NoError(t, p.IteratePrefix([]byte("utxo:"), func(key, value []byte) bool {
				first = append(first, string(key))
				return false
			}))
			assert.Len(t, first, 1)
		})
	}
}

func TestProviderCloseIsIdempotent(t *testing.T) {
	for name, p := range providers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, p.Close())
			assert.NoError(t, p.Close())
		})
	}
}
