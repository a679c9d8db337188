package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"market-pipeline/internal/artifact"
	"market-pipeline/internal/model"
	"market-pipeline/pkg/logger"
)

// maxRawSize caps how much of a single source is read into memory.
const maxRawSize = 256 << 20

// Fetcher retrieves the raw bytes behind a dataset source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// HTTPFetcher reads http(s) URLs with a shared rate limit, and file:// URLs
// or bare paths from the local filesystem.
type HTTPFetcher struct {
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewHTTPFetcher builds a fetcher. ratePerSec <= 0 disables throttling.
func NewHTTPFetcher(timeout time.Duration, ratePerSec float64, burst int) *HTTPFetcher {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	if burst < 1 {
		burst = 1
	}
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: timeout},
		Limiter: rate.NewLimiter(limit, burst),
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("invalid source %q: %w", source, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return f.get(ctx, source)
	case "file":
		return readFile(u.Path)
	case "":
		return readFile(source)
	default:
		return nil, fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
}

func (f *HTTPFetcher) get(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to GET source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRawSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(body) > maxRawSize {
		return nil, fmt.Errorf("source larger than %d bytes", maxRawSize)
	}
	return body, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}
	return data, nil
}

// ------------------- Acquisition -------------------

// Acquirer fetches raw snapshots and stores them verbatim.
type Acquirer struct {
	fetcher Fetcher
	store   artifact.Store
	log     logger.Logger
}

func NewAcquirer(fetcher Fetcher, store artifact.Store, log logger.Logger) *Acquirer {
	if log == nil {
		log = logger.Discard()
	}
	return &Acquirer{fetcher: fetcher, store: store, log: log.Named("acquirer")}
}

// Acquire fetches spec.Source and writes it under the dataset's raw key,
// replacing whatever an earlier run stored there.
func (a *Acquirer) Acquire(ctx context.Context, spec model.DatasetSpec) model.StageOutcome[model.RawTable] {
	a.log.Debug(ctx, "fetching source", logger.String("dataset", spec.Name), logger.String("source", spec.Source))

	data, err := a.fetcher.Fetch(ctx, spec.Source)
	if err != nil {
		return model.Failed[model.RawTable](newStageError(model.StageAcquisition, spec.Name,
			ErrSourceUnavailable, ctx.Err() == nil, err, "fetch %s", spec.Source))
	}

	key := artifact.RawKey(spec.Name)
	loc, err := a.store.Put(ctx, key, data)
	if err != nil {
		return model.Failed[model.RawTable](newStageError(model.StageAcquisition, spec.Name,
			ErrArtifactWrite, ctx.Err() == nil, err, "store raw snapshot"))
	}

	a.log.Info(ctx, "source acquired",
		logger.String("dataset", spec.Name),
		logger.Int("bytes", len(data)),
		logger.String("location", loc),
	)
	return model.Succeeded(model.RawTable{Dataset: spec.Name, Key: key, Location: loc, Size: len(data)})
}
