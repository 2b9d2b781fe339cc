package storage

import (
	"context"
	"errors"
	"time"

	"archcheck/internal/graph"
)

// ErrRunNotFound is returned when a run id (or any run at all) is missing.
var ErrRunNotFound = errors.New("snapshot run not found")

// Run describes one persisted graph snapshot.
type Run struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	CreatedAt    time.Time `json:"created_at"`
	Modules      int       `json:"modules"`
	Dependencies int       `json:"dependencies"`
}

// Store persists imported graphs as snapshots.
type Store interface {
	// SaveGraph stores the imported modules of g under a new run id.
	SaveGraph(ctx context.Context, key string, g *graph.Graph) (string, error)

	// LoadGraph rebuilds the graph of a run.
	LoadGraph(ctx context.Context, runID string) (*graph.Graph, error)

	// LatestRun returns the most recently saved run.
	LatestRun(ctx context.Context) (Run, error)

	// Runs lists every run, newest first.
	Runs(ctx context.Context) ([]Run, error)

	Close() error
}
