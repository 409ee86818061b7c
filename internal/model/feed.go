// Package model defines the core feed data types.
package model

import "time"

// Event types for feed events.
const (
	EventRelease     = "release"
	EventCommitBurst = "commit_burst"
)

// WatchedRepo is a repository on the watch list.
type WatchedRepo struct {
	FullName    string     `json:"full_name"`
	Source      string     `json:"source"`
	AddedAt     time.Time  `json:"added_at"`
	LastChecked *time.Time `json:"last_checked,omitempty"`
	LastSummary string     `json:"last_summary,omitempty"`
	Embedding   []float32  `json:"-"`
}

// FeedEvent is one detected unit of new activity for a watched repo.
// The (RepoFullName, EventType, EventAt) triple is unique; re-detecting
// the same event is a no-op.
type FeedEvent struct {
	ID             string         `json:"id"`
	RepoFullName   string         `json:"repo_full_name"`
	EventType      string         `json:"event_type"`
	EventAt        time.Time      `json:"event_at"`
	Title          string         `json:"title"`
	Summary        string         `json:"summary,omitempty"`
	RelevanceScore float64        `json:"relevance_score"`
	MatchedContext string         `json:"matched_context,omitempty"`
	RawData        map[string]any `json:"raw_data,omitempty"`
}

// ProjectContext is a named, embedded description of an area of interest.
type ProjectContext struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DiscoveryCandidate is a repo found by discovery that scored well enough
// against some project context to keep around.
type DiscoveryCandidate struct {
	FullName        string    `json:"full_name"`
	DiscoveredAt    time.Time `json:"discovered_at"`
	SimilarityScore float64   `json:"similarity_score"`
	MatchedContext  string    `json:"matched_context,omitempty"`
	Description     string    `json:"description,omitempty"`
	Stars           int       `json:"stars"`
	Language        string    `json:"language,omitempty"`
	Dismissed       bool      `json:"dismissed"`
}
