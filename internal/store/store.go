// Package store provides the feed storage interface and SQLite implementation.
package store

import (
	"context"
	"time"

	"github.com/rcliao/research-feed/internal/model"
)

// EventQuery holds filters for listing feed events.
type EventQuery struct {
	DaysBack     int // lower bound on event time, in days before now (default 7)
	MinRelevance float64
	Repo         string // exact repo full name, empty for all
	Context      string // exact matched context name, empty for all
	Limit        int    // default 100
}

// CandidateQuery holds filters for listing discovery candidates.
type CandidateQuery struct {
	MinScore float64
	Context  string // exact matched context name, empty for all
	Limit    int    // default 20
}

// Store defines the feed storage interface.
type Store interface {
	// WatchRepo adds a repo to the watch list. Re-watching is a no-op;
	// it reports whether the repo was newly added.
	WatchRepo(ctx context.Context, fullName, source string) (bool, error)

	// ListWatchedRepos returns the full watch list, newest first.
	ListWatchedRepos(ctx context.Context) ([]model.WatchedRepo, error)

	// UnwatchRepo removes a repo from the watch list.
	UnwatchRepo(ctx context.Context, fullName string) (bool, error)

	// SetRepoChecked advances the repo's last-checked timestamp.
	SetRepoChecked(ctx context.Context, fullName string, at time.Time) error

	// SetRepoSummary stores the latest generated summary for the repo.
	SetRepoSummary(ctx context.Context, fullName, summary string) error

	// SetRepoEmbedding caches the repo's semantic embedding.
	SetRepoEmbedding(ctx context.Context, fullName string, vec []float32) error

	// InsertFeedEvent writes a feed event keyed by (repo, type, time).
	// Re-inserting an existing key is a silent no-op; the return value
	// reports whether a row was actually written.
	InsertFeedEvent(ctx context.Context, ev model.FeedEvent) (bool, error)

	// ListFeedEvents returns events matching the query, ordered by
	// relevance score then event time, both descending.
	ListFeedEvents(ctx context.Context, q EventQuery) ([]model.FeedEvent, error)

	// UpsertContext creates or replaces a project context by name.
	// Description, embedding and updated_at are always refreshed together.
	UpsertContext(ctx context.Context, name, description string, vec []float32) error

	// ListContexts returns all project contexts ordered by name.
	ListContexts(ctx context.Context) ([]model.ProjectContext, error)

	// GetContext returns one context by name, or nil if absent.
	GetContext(ctx context.Context, name string) (*model.ProjectContext, error)

	// RemoveContext deletes a context by name.
	RemoveContext(ctx context.Context, name string) (bool, error)

	// UpsertCandidate creates or refreshes a discovery candidate. On
	// conflict the stored similarity score is the maximum ever seen while
	// the descriptive fields take the latest values.
	UpsertCandidate(ctx context.Context, c model.DiscoveryCandidate) error

	// ListCandidates returns non-dismissed candidates matching the query,
	// ordered by similarity score descending.
	ListCandidates(ctx context.Context, q CandidateQuery) ([]model.DiscoveryCandidate, error)

	// DismissCandidate soft-deletes a candidate.
	DismissCandidate(ctx context.Context, fullName string) (bool, error)

	// Close closes the store.
	Close() error
}
