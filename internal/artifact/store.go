// Package artifact stores the per-dataset files produced by each pipeline stage.
package artifact

import (
	"context"
	"errors"
	"path"
)

// ErrNotFound is returned by Get when no artifact exists under a key.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts under slash-separated keys. Put overwrites any
// existing artifact with the same key and returns its location.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// RawKey is where the acquirer writes a dataset's raw bytes.
func RawKey(dataset string) string {
	return path.Join("acquire", dataset+".csv")
}

// CleanedKey is where the cleaner writes a dataset's cleaned table.
func CleanedKey(dataset string) string {
	return path.Join("clean", dataset+"_cleaned.csv")
}

// AnalysisKey is where the analyzer writes a dataset's analysis JSON.
func AnalysisKey(dataset string) string {
	return dataset + "_analysis.json"
}
