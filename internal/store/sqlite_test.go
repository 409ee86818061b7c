package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/research-feed/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWatchRepoIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	added, err := s.WatchRepo(ctx, "acme/widget", "manual")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !added {
		t.Error("expected first watch to add")
	}

	added, err = s.WatchRepo(ctx, "acme/widget", "starred")
	if err != nil {
		t.Fatalf("re-watch: %v", err)
	}
	if added {
		t.Error("expected re-watch to be a no-op")
	}

	repos, err := s.ListWatchedRepos(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("expected 1 repo, got %d", len(repos))
	}
	// First write wins for the provenance tag too
	if repos[0].Source != "manual" {
		t.Errorf("expected source 'manual', got %q", repos[0].Source)
	}
	if repos[0].LastChecked != nil {
		t.Error("expected nil last_checked for a never-polled repo")
	}
}

func TestUnwatchRepo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.WatchRepo(ctx, "acme/widget", "manual")

	removed, err := s.UnwatchRepo(ctx, "acme/widget")
	if err != nil {
		t.Fatalf("unwatch: %v", err)
	}
	if !removed {
		t.Error("expected removal")
	}

	removed, _ = s.UnwatchRepo(ctx, "acme/widget")
	if removed {
		t.Error("expected second unwatch to be a no-op")
	}
}

func TestRepoCheckpointAndEmbedding(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.WatchRepo(ctx, "acme/widget", "manual")

	checked := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := s.SetRepoChecked(ctx, "acme/widget", checked); err != nil {
		t.Fatalf("set checked: %v", err)
	}
	if err := s.SetRepoEmbedding(ctx, "acme/widget", []float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("set embedding: %v", err)
	}
	if err := s.SetRepoSummary(ctx, "acme/widget", "builds widgets"); err != nil {
		t.Fatalf("set summary: %v", err)
	}

	repos, _ := s.ListWatchedRepos(ctx)
	r := repos[0]
	if r.LastChecked == nil || !r.LastChecked.Equal(checked) {
		t.Errorf("expected last_checked %v, got %v", checked, r.LastChecked)
	}
	if len(r.Embedding) != 3 || r.Embedding[2] != 0.3 {
		t.Errorf("embedding round-trip failed: %v", r.Embedding)
	}
	if r.LastSummary != "builds widgets" {
		t.Errorf("expected summary, got %q", r.LastSummary)
	}
}

func TestInsertFeedEventFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	at := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	ev := model.FeedEvent{
		RepoFullName:   "a/b",
		EventType:      model.EventRelease,
		EventAt:        at,
		Title:          "Release v1.0.0",
		Summary:        "first",
		RelevanceScore: 0.5,
	}

	inserted, err := s.InsertFeedEvent(ctx, ev)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted {
		t.Error("expected first insert to write")
	}

	// Same composite key, different score and summary: silent no-op.
	ev.Summary = "second"
	ev.RelevanceScore = 0.8
	inserted, err = s.InsertFeedEvent(ctx, ev)
	if err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if inserted {
		t.Error("expected re-insert to be a no-op")
	}

	events, _ := s.ListFeedEvents(ctx, EventQuery{DaysBack: 36500})
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].RelevanceScore != 0.5 {
		t.Errorf("expected score 0.5 from first write, got %f", events[0].RelevanceScore)
	}
	if events[0].Summary != "first" {
		t.Errorf("expected summary 'first', got %q", events[0].Summary)
	}
}

func TestListFeedEventsFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now().UTC()
	mk := func(repo string, score float64, matched string, offset time.Duration) {
		t.Helper()
		_, err := s.InsertFeedEvent(ctx, model.FeedEvent{
			RepoFullName:   repo,
			EventType:      model.EventRelease,
			EventAt:        now.Add(offset),
			Title:          "Release",
			RelevanceScore: score,
			MatchedContext: matched,
		})
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	mk("a/b", 0.9, "agents", -1*time.Hour)
	mk("a/b", 0.3, "agents", -2*time.Hour)
	mk("c/d", 0.6, "infra", -3*time.Hour)
	mk("e/f", 0.7, "", -30*24*time.Hour) // outside the default 7-day window

	events, err := s.ListFeedEvents(ctx, EventQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events in window, got %d", len(events))
	}
	// Ordered by relevance descending
	if events[0].RelevanceScore != 0.9 || events[2].RelevanceScore != 0.3 {
		t.Errorf("unexpected order: %v", events)
	}

	events, _ = s.ListFeedEvents(ctx, EventQuery{MinRelevance: 0.5})
	if len(events) != 2 {
		t.Errorf("expected 2 events above 0.5, got %d", len(events))
	}

	events, _ = s.ListFeedEvents(ctx, EventQuery{Repo: "c/d"})
	if len(events) != 1 || events[0].RepoFullName != "c/d" {
		t.Errorf("repo filter failed: %v", events)
	}

	events, _ = s.ListFeedEvents(ctx, EventQuery{Context: "agents"})
	if len(events) != 2 {
		t.Errorf("context filter failed: %v", events)
	}
}

func TestFeedEventRawDataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.InsertFeedEvent(ctx, model.FeedEvent{
		RepoFullName: "a/b",
		EventType:    model.EventCommitBurst,
		EventAt:      time.Now().UTC(),
		Title:        "3 new commits",
		RawData:      map[string]any{"count": float64(3), "sample_messages": []any{"fix", "feat"}},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	events, _ := s.ListFeedEvents(ctx, EventQuery{})
	if events[0].RawData["count"] != float64(3) {
		t.Errorf("expected count 3, got %v", events[0].RawData["count"])
	}
}

func TestUpsertContextRefreshesTogether(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpsertContext(ctx, "agents", "agent frameworks", []float32{1, 0}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	first, _ := s.GetContext(ctx, "agents")

	if err := s.UpsertContext(ctx, "agents", "LLM agent frameworks", []float32{0, 1}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	second, err := s.GetContext(ctx, "agents")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if second.Description != "LLM agent frameworks" {
		t.Errorf("expected refreshed description, got %q", second.Description)
	}
	if second.Embedding[0] != 0 || second.Embedding[1] != 1 {
		t.Errorf("expected refreshed embedding, got %v", second.Embedding)
	}
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Error("expected updated_at to advance")
	}
	// created_at survives the upsert
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("expected created_at unchanged, got %v vs %v", second.CreatedAt, first.CreatedAt)
	}

	contexts, _ := s.ListContexts(ctx)
	if len(contexts) != 1 {
		t.Errorf("expected 1 context, got %d", len(contexts))
	}
}

func TestGetContextAbsent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c, err := s.GetContext(ctx, "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if c != nil {
		t.Errorf("expected nil for absent context, got %v", c)
	}
}

func TestUpsertCandidateKeepsMaxScore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	put := func(score float64, desc string) {
		t.Helper()
		err := s.UpsertCandidate(ctx, model.DiscoveryCandidate{
			FullName:        "x/y",
			SimilarityScore: score,
			MatchedContext:  "agents",
			Description:     desc,
			Stars:           100,
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	put(0.4, "first")
	put(0.2, "second")

	cands, _ := s.ListCandidates(ctx, CandidateQuery{})
	if len(cands) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(cands))
	}
	if cands[0].SimilarityScore != 0.4 {
		t.Errorf("expected max score 0.4 retained, got %f", cands[0].SimilarityScore)
	}
	// Descriptive fields always take the latest values
	if cands[0].Description != "second" {
		t.Errorf("expected latest description, got %q", cands[0].Description)
	}

	put(0.6, "third")
	cands, _ = s.ListCandidates(ctx, CandidateQuery{})
	if cands[0].SimilarityScore != 0.6 {
		t.Errorf("expected score raised to 0.6, got %f", cands[0].SimilarityScore)
	}
}

func TestDismissCandidate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertCandidate(ctx, model.DiscoveryCandidate{FullName: "x/y", SimilarityScore: 0.8})
	s.UpsertCandidate(ctx, model.DiscoveryCandidate{FullName: "x/z", SimilarityScore: 0.7})

	dismissed, err := s.DismissCandidate(ctx, "x/y")
	if err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if !dismissed {
		t.Error("expected dismissal")
	}

	cands, _ := s.ListCandidates(ctx, CandidateQuery{})
	if len(cands) != 1 || cands[0].FullName != "x/z" {
		t.Errorf("expected dismissed candidate excluded, got %v", cands)
	}

	dismissed, _ = s.DismissCandidate(ctx, "nope/nope")
	if dismissed {
		t.Error("expected dismissing unknown candidate to report false")
	}
}

func TestListCandidatesMinScore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertCandidate(ctx, model.DiscoveryCandidate{FullName: "a/a", SimilarityScore: 0.9})
	s.UpsertCandidate(ctx, model.DiscoveryCandidate{FullName: "b/b", SimilarityScore: 0.4})

	cands, err := s.ListCandidates(ctx, CandidateQuery{MinScore: 0.5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cands) != 1 || cands[0].FullName != "a/a" {
		t.Errorf("min-score filter failed: %v", cands)
	}
}
