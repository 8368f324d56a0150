package tokenstore

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewFileStore(fs, "/home/alice/.config/billsight/token")
	ctx := context.Background()

	token, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "missing file reads as no token")

	require.NoError(t, store.Save(ctx, "abc.def.ghi"))
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	info, err := fs.Stat("/home/alice/.config/billsight/token")
	require.NoError(t, err)
	assert.Equal(t, filePerm, info.Mode().Perm())

	exists, err := afero.Exists(fs, "/home/alice/.config/billsight/token.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, "replaced"))
	token, _ = store.Load(ctx)
	assert.Equal(t, "replaced", token)

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx), "deleting twice is fine")
	token, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileStore_SaveFailsOnReadOnlyFs(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	err := NewFileStore(fs, "/token").Save(context.Background(), "abc")
	assert.Error(t, err)
}

func TestFileStore_TrimsWhitespace(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/token", []byte("abc\n"), 0o600))
	token, err := NewFileStore(fs, "/token").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}
