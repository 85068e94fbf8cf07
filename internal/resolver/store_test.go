package resolver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVaultStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaults", "store.json")
	s := NewVaultStore(path)

	// 文件不存在按空表处理
	entries, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)

	mint := pkOf(1).ToBase58()
	vault := pkOf(2).ToBase58()
	require.NoError(t, s.Put(mint, vault))

	mint2 := pkOf(3).ToBase58()
	vault2 := pkOf(4).ToBase58()
	require.NoError(t, s.Put(mint2, vault2))

	entries, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{mint: vault, mint2: vault2}, entries)

	// 覆盖写同一 mint
	require.NoError(t, s.Put(mint, vault2))
	entries, err = s.Load()
	require.NoError(t, err)
	assert.Equal(t, vault2, entries[mint])
}

func TestVaultStoreSkipsBadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	raw := `{"` + pkOf(1).ToBase58() + `": "` + pkOf(2).ToBase58() + `", "not-base58!!": "x"}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	s := NewVaultStore(path)
	entries, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, entries, 1, "坏条目应被跳过")
}
