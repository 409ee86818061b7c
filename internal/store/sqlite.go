package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/research-feed/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS watched_repos (
		full_name    TEXT PRIMARY KEY,
		source       TEXT NOT NULL DEFAULT 'manual',
		added_at     TEXT NOT NULL,
		last_checked TEXT,
		last_summary TEXT,
		embedding    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_watched_added ON watched_repos(added_at DESC);

	CREATE TABLE IF NOT EXISTS feed_events (
		id              TEXT PRIMARY KEY,
		repo_full_name  TEXT NOT NULL,
		event_type      TEXT NOT NULL,
		event_at        TEXT NOT NULL,
		title           TEXT NOT NULL,
		summary         TEXT,
		relevance_score REAL NOT NULL DEFAULT 0.0,
		matched_context TEXT,
		raw_data        TEXT,
		UNIQUE(repo_full_name, event_type, event_at)
	);
	CREATE INDEX IF NOT EXISTS idx_events_repo ON feed_events(repo_full_name);
	CREATE INDEX IF NOT EXISTS idx_events_at ON feed_events(event_at);
	CREATE INDEX IF NOT EXISTS idx_events_relevance ON feed_events(relevance_score);

	CREATE TABLE IF NOT EXISTS project_contexts (
		name        TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		embedding   TEXT,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS discovery_candidates (
		full_name        TEXT PRIMARY KEY,
		discovered_at    TEXT NOT NULL,
		similarity_score REAL NOT NULL,
		matched_context  TEXT,
		description      TEXT,
		stars            INTEGER NOT NULL DEFAULT 0,
		language         TEXT,
		dismissed        INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_score ON discovery_candidates(similarity_score);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- serialization helpers ---

// Vectors cross the store boundary as JSON-encoded text; in memory they are
// plain float32 slices.
func encodeVector(vec []float32) (*string, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	s := string(b)
	return &s, nil
}

func decodeVector(raw sql.NullString) ([]float32, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal([]byte(raw.String), &vec); err != nil {
		return nil, fmt.Errorf("decode embedding: %w", err)
	}
	return vec, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// --- Watched repos ---

func (s *SQLiteStore) WatchRepo(ctx context.Context, fullName, source string) (bool, error) {
	if source == "" {
		source = "manual"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO watched_repos (full_name, source, added_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(full_name) DO NOTHING`,
		fullName, source, fmtTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("watch repo: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ListWatchedRepos(ctx context.Context) ([]model.WatchedRepo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT full_name, source, added_at, last_checked, last_summary, embedding
		 FROM watched_repos ORDER BY added_at DESC, full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.WatchedRepo
	for rows.Next() {
		r, err := scanRepo(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func (s *SQLiteStore) UnwatchRepo(ctx context.Context, fullName string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watched_repos WHERE full_name = ?`, fullName)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) SetRepoChecked(ctx context.Context, fullName string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watched_repos SET last_checked = ? WHERE full_name = ?`,
		fmtTime(at), fullName)
	return err
}

func (s *SQLiteStore) SetRepoSummary(ctx context.Context, fullName, summary string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watched_repos SET last_summary = ? WHERE full_name = ?`,
		summary, fullName)
	return err
}

func (s *SQLiteStore) SetRepoEmbedding(ctx context.Context, fullName string, vec []float32) error {
	enc, err := encodeVector(vec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE watched_repos SET embedding = ? WHERE full_name = ?`,
		enc, fullName)
	return err
}

// --- Feed events ---

func (s *SQLiteStore) InsertFeedEvent(ctx context.Context, ev model.FeedEvent) (bool, error) {
	var rawJSON *string
	if len(ev.RawData) > 0 {
		b, err := json.Marshal(ev.RawData)
		if err != nil {
			return false, fmt.Errorf("encode raw data: %w", err)
		}
		s := string(b)
		rawJSON = &s
	}

	var summary, matched *string
	if ev.Summary != "" {
		summary = &ev.Summary
	}
	if ev.MatchedContext != "" {
		matched = &ev.MatchedContext
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO feed_events
		 (id, repo_full_name, event_type, event_at, title, summary, relevance_score, matched_context, raw_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repo_full_name, event_type, event_at) DO NOTHING`,
		s.newID(), ev.RepoFullName, ev.EventType, fmtTime(ev.EventAt),
		ev.Title, summary, ev.RelevanceScore, matched, rawJSON)
	if err != nil {
		return false, fmt.Errorf("insert feed event: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) ListFeedEvents(ctx context.Context, q EventQuery) ([]model.FeedEvent, error) {
	daysBack := q.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	cutoff := fmtTime(time.Now().Add(-time.Duration(daysBack) * 24 * time.Hour))

	where := []string{"event_at >= ?", "relevance_score >= ?"}
	args := []interface{}{cutoff, q.MinRelevance}

	if q.Repo != "" {
		where = append(where, "repo_full_name = ?")
		args = append(args, q.Repo)
	}
	if q.Context != "" {
		where = append(where, "matched_context = ?")
		args = append(args, q.Context)
	}

	query := fmt.Sprintf(`
		SELECT id, repo_full_name, event_type, event_at, title, summary, relevance_score, matched_context, raw_data
		FROM feed_events
		WHERE %s
		ORDER BY relevance_score DESC, event_at DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.FeedEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// --- Project contexts ---

func (s *SQLiteStore) UpsertContext(ctx context.Context, name, description string, vec []float32) error {
	enc, err := encodeVector(vec)
	if err != nil {
		return err
	}
	now := fmtTime(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_contexts (name, description, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		     description = excluded.description,
		     embedding = excluded.embedding,
		     updated_at = excluded.updated_at`,
		name, description, enc, now, now)
	if err != nil {
		return fmt.Errorf("upsert context: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListContexts(ctx context.Context) ([]model.ProjectContext, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, embedding, created_at, updated_at
		 FROM project_contexts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contexts []model.ProjectContext
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}

func (s *SQLiteStore) GetContext(ctx context.Context, name string) (*model.ProjectContext, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, description, embedding, created_at, updated_at
		 FROM project_contexts WHERE name = ?`, name)
	c, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) RemoveContext(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_contexts WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// --- Discovery candidates ---

func (s *SQLiteStore) UpsertCandidate(ctx context.Context, c model.DiscoveryCandidate) error {
	var matched, desc, lang *string
	if c.MatchedContext != "" {
		matched = &c.MatchedContext
	}
	if c.Description != "" {
		desc = &c.Description
	}
	if c.Language != "" {
		lang = &c.Language
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO discovery_candidates
		 (full_name, discovered_at, similarity_score, matched_context, description, stars, language)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(full_name) DO UPDATE SET
		     similarity_score = MAX(excluded.similarity_score, similarity_score),
		     matched_context = excluded.matched_context,
		     description = excluded.description,
		     stars = excluded.stars,
		     language = excluded.language`,
		c.FullName, fmtTime(time.Now()), c.SimilarityScore, matched, desc, c.Stars, lang)
	if err != nil {
		return fmt.Errorf("upsert candidate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListCandidates(ctx context.Context, q CandidateQuery) ([]model.DiscoveryCandidate, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"dismissed = 0", "similarity_score >= ?"}
	args := []interface{}{q.MinScore}

	if q.Context != "" {
		where = append(where, "matched_context = ?")
		args = append(args, q.Context)
	}

	query := fmt.Sprintf(`
		SELECT full_name, discovered_at, similarity_score, matched_context, description, stars, language, dismissed
		FROM discovery_candidates
		WHERE %s
		ORDER BY similarity_score DESC
		LIMIT ?`, strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []model.DiscoveryCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (s *SQLiteStore) DismissCandidate(ctx context.Context, fullName string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_candidates SET dismissed = 1 WHERE full_name = ?`, fullName)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- scanners ---

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRepo(row scanner) (model.WatchedRepo, error) {
	var r model.WatchedRepo
	var addedAt string
	var lastChecked, lastSummary, embedding sql.NullString

	if err := row.Scan(&r.FullName, &r.Source, &addedAt, &lastChecked, &lastSummary, &embedding); err != nil {
		return r, err
	}

	r.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
	if lastChecked.Valid {
		t, _ := time.Parse(time.RFC3339, lastChecked.String)
		r.LastChecked = &t
	}
	if lastSummary.Valid {
		r.LastSummary = lastSummary.String
	}
	vec, err := decodeVector(embedding)
	if err != nil {
		return r, err
	}
	r.Embedding = vec
	return r, nil
}

func scanEvent(row scanner) (model.FeedEvent, error) {
	var ev model.FeedEvent
	var eventAt string
	var summary, matched, rawJSON sql.NullString

	if err := row.Scan(&ev.ID, &ev.RepoFullName, &ev.EventType, &eventAt,
		&ev.Title, &summary, &ev.RelevanceScore, &matched, &rawJSON); err != nil {
		return ev, err
	}

	ev.EventAt, _ = time.Parse(time.RFC3339, eventAt)
	if summary.Valid {
		ev.Summary = summary.String
	}
	if matched.Valid {
		ev.MatchedContext = matched.String
	}
	if rawJSON.Valid && rawJSON.String != "" {
		if err := json.Unmarshal([]byte(rawJSON.String), &ev.RawData); err != nil {
			return ev, fmt.Errorf("decode raw data: %w", err)
		}
	}
	return ev, nil
}

func scanContext(row scanner) (model.ProjectContext, error) {
	var c model.ProjectContext
	var createdAt, updatedAt string
	var embedding sql.NullString

	if err := row.Scan(&c.Name, &c.Description, &embedding, &createdAt, &updatedAt); err != nil {
		return c, err
	}

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	vec, err := decodeVector(embedding)
	if err != nil {
		return c, err
	}
	c.Embedding = vec
	return c, nil
}

func scanCandidate(row scanner) (model.DiscoveryCandidate, error) {
	var c model.DiscoveryCandidate
	var discoveredAt string
	var matched, desc, lang sql.NullString
	var dismissed int

	if err := row.Scan(&c.FullName, &discoveredAt, &c.SimilarityScore,
		&matched, &desc, &c.Stars, &lang, &dismissed); err != nil {
		return c, err
	}

	c.DiscoveredAt, _ = time.Parse(time.RFC3339, discoveredAt)
	if matched.Valid {
		c.MatchedContext = matched.String
	}
	if desc.Valid {
		c.Description = desc.String
	}
	if lang.Valid {
		c.Language = lang.String
	}
	c.Dismissed = dismissed != 0
	return c, nil
}
