package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePutOverwrites(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	loc, err := store.Put(ctx, RawKey("ancestor_currency"), []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BaseDir, "acquire", "ancestor_currency.csv"), loc)

	_, err = store.Put(ctx, RawKey("ancestor_currency"), []byte("second"))
	require.NoError(t, err)

	data, err := store.Get(ctx, RawKey("ancestor_currency"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Join(store.BaseDir, "acquire"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileStoreGetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), CleanedKey("nope"))
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.csv", "/etc/passwd", "", "."} {
		_, err := store.Put(context.Background(), key, []byte("x"))
		assert.Error(t, err, key)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "acquire/affliction_currency.csv", RawKey("affliction_currency"))
	assert.Equal(t, "clean/affliction_currency_cleaned.csv", CleanedKey("affliction_currency"))
	assert.Equal(t, "affliction_currency_analysis.json", AnalysisKey("affliction_currency"))
}

func TestMinioConfigValidate(t *testing.T) {
	valid := MinioConfig{Endpoint: "localhost:9000", Bucket: "market-pipeline"}
	assert.NoError(t, valid.Validate())

	invalid := valid
	invalid.Endpoint = "http://localhost:9000"
	assert.Error(t, invalid.Validate())

	invalid = valid
	invalid.Bucket = ""
	assert.Error(t, invalid.Validate())
}
