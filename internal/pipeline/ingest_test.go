package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/model"
)

func TestHTTPFetcherSchemes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.csv")
	require.NoError(t, os.WriteFile(path, []byte(rawSample), 0o644))

	srv := staticSources(t)
	f := NewHTTPFetcher(5*time.Second, 0, 1)
	ctx := context.Background()

	for _, source := range []string{srv.URL + "/good", "file://" + path, path} {
		data, err := f.Fetch(ctx, source)
		require.NoError(t, err, source)
		assert.Equal(t, rawSample, string(data), source)
	}

	_, err := f.Fetch(ctx, srv.URL+"/missing")
	assert.EqualError(t, err, "status 404")

	_, err = f.Fetch(ctx, "ftp://example.com/x.csv")
	assert.ErrorContains(t, err, "unsupported source scheme")

	_, err = f.Fetch(ctx, filepath.Join(dir, "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestHTTPFetcherRateLimit(t *testing.T) {
	srv := sourceServer(t, func(w http.ResponseWriter, _ *http.Request) { fmt.Fprint(w, "x") })
	f := NewHTTPFetcher(time.Second, 20, 1)

	start := time.Now()
	for range 3 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// burst 1 at 20/s: the second and third requests wait ~50ms each
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestAcquireClassifiesErrors(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srv := staticSources(t)
	a := NewAcquirer(NewHTTPFetcher(5*time.Second, 0, 1), store, nil)

	out := a.Acquire(context.Background(), model.DatasetSpec{Name: "good", Source: srv.URL + "/good"})
	require.True(t, out.OK())
	assert.Equal(t, len(rawSample), out.Payload.Size)
	got, err := store.Get(context.Background(), artifact.RawKey("good"))
	require.NoError(t, err)
	assert.Equal(t, rawSample, string(got))

	out = a.Acquire(context.Background(), model.DatasetSpec{Name: "gone", Source: srv.URL + "/gone"})
	require.False(t, out.OK())
	assert.True(t, errors.Is(out.Err, ErrSourceUnavailable))
	assert.True(t, IsRetryable(out.Err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = a.Acquire(ctx, model.DatasetSpec{Name: "good", Source: srv.URL + "/good"})
	require.False(t, out.OK())
	assert.False(t, IsRetryable(out.Err))
	assert.ErrorIs(t, out.Err, context.Canceled)
}
