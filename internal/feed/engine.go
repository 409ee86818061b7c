// Package feed implements the polling, event detection, and relevance
// scoring engine over the watch list.
package feed

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rcliao/research-feed/internal/embedding"
	"github.com/rcliao/research-feed/internal/github"
	"github.com/rcliao/research-feed/internal/model"
	"github.com/rcliao/research-feed/internal/store"
)

const (
	releaseFetchLimit = 5
	commitFetchLimit  = 20
	commitWindow      = 7 * 24 * time.Hour
)

// GitHub is the slice of the GitHub client the engine depends on.
type GitHub interface {
	GetRepo(ctx context.Context, fullName string) (*github.Repo, error)
	GetReadme(ctx context.Context, fullName string) (string, error)
	GetReleases(ctx context.Context, fullName string, limit int) ([]github.Release, error)
	GetCommits(ctx context.Context, fullName string, since time.Time, limit int) ([]github.Commit, error)
	SearchRepos(ctx context.Context, query, language string, minStars, limit int) ([]github.Repo, error)
}

// Summarizer generates short natural-language summaries of repo activity.
type Summarizer interface {
	SummarizeRepo(ctx context.Context, repoName, description, readmeExcerpt, projectContext string) (string, error)
	SummarizeRelease(ctx context.Context, repoName, version, releaseNotes, projectContext string) (string, error)
	SummarizeCommitBurst(ctx context.Context, repoName string, commitMessages []string, projectContext string) (string, error)
	SummarizeDigest(ctx context.Context, events []model.FeedEvent, projectContext string) (string, error)
}

// Config tunes the engine's scoring thresholds.
type Config struct {
	// MinRelevance is the default floor for digest queries.
	MinRelevance float64
	// StoreThreshold is the minimum similarity score at which a discovery
	// result is persisted as a candidate.
	StoreThreshold float64
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{MinRelevance: 0.4, StoreThreshold: 0.35}
}

// Engine polls watched repos, detects new events, scores them against
// project contexts, and runs repo discovery.
type Engine struct {
	store      store.Store
	github     GitHub
	embedder   embedding.Embedder
	summarizer Summarizer
	cfg        Config
	log        zerolog.Logger
	now        func() time.Time
}

// New creates an engine with explicit collaborators.
func New(st store.Store, gh GitHub, emb embedding.Embedder, sum Summarizer, cfg Config, log zerolog.Logger) *Engine {
	if cfg.StoreThreshold == 0 {
		cfg.StoreThreshold = 0.35
	}
	if cfg.MinRelevance == 0 {
		cfg.MinRelevance = 0.4
	}
	return &Engine{
		store:      st,
		github:     gh,
		embedder:   emb,
		summarizer: sum,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// PollCounts aggregates the results of one poll cycle.
type PollCounts struct {
	Releases     int `json:"releases"`
	Commits      int `json:"commits"`
	ReposChecked int `json:"repos_checked"`
}

// PollAll polls every watched repo for new events. Repos and contexts are
// loaded once, as a snapshot for the whole cycle. A failing repo is logged
// and skipped; it never aborts the cycle. Context cancellation aborts the
// remaining unprocessed repos.
func (e *Engine) PollAll(ctx context.Context) (PollCounts, error) {
	var counts PollCounts

	repos, err := e.store.ListWatchedRepos(ctx)
	if err != nil {
		return counts, fmt.Errorf("load watch list: %w", err)
	}
	contexts, err := e.store.ListContexts(ctx)
	if err != nil {
		return counts, fmt.Errorf("load contexts: %w", err)
	}

	for _, repo := range repos {
		if ctx.Err() != nil {
			return counts, ctx.Err()
		}
		releases, commits, err := e.pollRepo(ctx, repo, contexts)
		if err != nil {
			e.log.Error().Err(err).Str("repo", repo.FullName).Msg("poll failed")
			continue
		}
		counts.Releases += releases
		counts.Commits += commits
		counts.ReposChecked++
	}

	e.log.Info().
		Int("repos_checked", counts.ReposChecked).
		Int("releases", counts.Releases).
		Int("commits", counts.Commits).
		Msg("poll cycle complete")
	return counts, nil
}

// pollRepo polls a single repo. The checkpoint only advances when every
// step succeeded, so a failed repo retries its full window next cycle.
func (e *Engine) pollRepo(ctx context.Context, repo model.WatchedRepo, contexts []model.ProjectContext) (releases, commits int, err error) {
	meta, err := e.github.GetRepo(ctx, repo.FullName)
	if err != nil {
		return 0, 0, err
	}

	vec := repo.Embedding
	if len(vec) == 0 {
		readme, err := e.github.GetReadme(ctx, repo.FullName)
		if err != nil {
			return 0, 0, err
		}
		vec, err = e.embedder.Embed(ctx, embedding.BuildRepoText(repoText(meta), readme))
		if err != nil {
			return 0, 0, fmt.Errorf("embed %s: %w", repo.FullName, err)
		}
		if err := e.store.SetRepoEmbedding(ctx, repo.FullName, vec); err != nil {
			return 0, 0, err
		}
	}

	bestScore, bestContext, err := embedding.ScoreAgainstContexts(vec, contexts)
	if err != nil {
		return 0, 0, err
	}

	newReleases, err := e.pollReleases(ctx, repo, bestScore, bestContext)
	if err != nil {
		return 0, 0, err
	}
	newCommits, err := e.pollCommits(ctx, repo, bestScore, bestContext)
	if err != nil {
		return 0, 0, err
	}

	if err := e.store.SetRepoChecked(ctx, repo.FullName, e.now()); err != nil {
		return 0, 0, err
	}
	return newReleases, newCommits, nil
}

func (e *Engine) pollReleases(ctx context.Context, repo model.WatchedRepo, score float64, matched string) (int, error) {
	rels, err := e.github.GetReleases(ctx, repo.FullName, releaseFetchLimit)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, rel := range rels {
		// Unpublished releases cannot be ordered or deduplicated.
		if rel.PublishedAt == nil {
			continue
		}
		if repo.LastChecked != nil && !rel.PublishedAt.After(*repo.LastChecked) {
			continue
		}

		tag := rel.TagName
		if tag == "" {
			tag = "?"
		}
		summary, err := e.summarizer.SummarizeRelease(ctx, repo.FullName, tag, rel.Body, matched)
		if err != nil {
			return count, err
		}

		inserted, err := e.store.InsertFeedEvent(ctx, model.FeedEvent{
			RepoFullName:   repo.FullName,
			EventType:      model.EventRelease,
			EventAt:        *rel.PublishedAt,
			Title:          "Release " + tag,
			Summary:        summary,
			RelevanceScore: score,
			MatchedContext: matched,
			RawData:        map[string]any{"tag": rel.TagName, "url": rel.HTMLURL},
		})
		if err != nil {
			return count, err
		}
		if inserted {
			count++
		}
	}
	return count, nil
}

func (e *Engine) pollCommits(ctx context.Context, repo model.WatchedRepo, score float64, matched string) (int, error) {
	since := e.now().Add(-commitWindow)
	if repo.LastChecked != nil {
		since = *repo.LastChecked
	}

	commits, err := e.github.GetCommits(ctx, repo.FullName, since, commitFetchLimit)
	if err != nil {
		return 0, err
	}
	if len(commits) == 0 {
		return 0, nil
	}

	messages := make([]string, 0, len(commits))
	for _, c := range commits {
		line, _, _ := strings.Cut(c.Commit.Message, "\n")
		messages = append(messages, line)
	}

	summary, err := e.summarizer.SummarizeCommitBurst(ctx, repo.FullName, messages, matched)
	if err != nil {
		return 0, err
	}

	// Commits come back newest first.
	eventAt := commits[0].Commit.Author.Date
	if eventAt.IsZero() {
		eventAt = since
	}

	sample := messages
	if len(sample) > 5 {
		sample = sample[:5]
	}

	inserted, err := e.store.InsertFeedEvent(ctx, model.FeedEvent{
		RepoFullName:   repo.FullName,
		EventType:      model.EventCommitBurst,
		EventAt:        eventAt,
		Title:          fmt.Sprintf("%d new commits", len(commits)),
		Summary:        summary,
		RelevanceScore: score,
		MatchedContext: matched,
		RawData:        map[string]any{"count": len(commits), "sample_messages": sample},
	})
	if err != nil {
		return 0, err
	}
	if !inserted {
		return 0, nil
	}
	return len(commits), nil
}

// DiscoverQuery holds the discovery inputs.
type DiscoverQuery struct {
	Query    string
	Language string
	MinStars int
	Limit    int
}

// Discovery is one ranked discovery result.
type Discovery struct {
	FullName        string  `json:"full_name"`
	Description     string  `json:"description,omitempty"`
	Stars           int     `json:"stars"`
	Language        string  `json:"language,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
	MatchedContext  string  `json:"matched_context,omitempty"`
}

// Discover searches GitHub and scores each result against all project
// contexts. Results at or above the store threshold are persisted as
// candidates; the returned list is the top N by score regardless of the
// threshold. With no contexts registered it degrades to plain search.
func (e *Engine) Discover(ctx context.Context, q DiscoverQuery) ([]Discovery, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	contexts, err := e.store.ListContexts(ctx)
	if err != nil {
		return nil, err
	}

	if len(contexts) == 0 {
		raw, err := e.github.SearchRepos(ctx, q.Query, q.Language, q.MinStars, limit)
		if err != nil {
			return nil, err
		}
		if len(raw) > limit {
			raw = raw[:limit]
		}
		results := make([]Discovery, 0, len(raw))
		for _, r := range raw {
			results = append(results, Discovery{
				FullName:    fullName(r),
				Description: r.Description,
				Stars:       r.Stars,
				Language:    r.Language,
			})
		}
		return results, nil
	}

	// Over-fetch to survive post-filtering and give ranking a better pool.
	raw, err := e.github.SearchRepos(ctx, q.Query, q.Language, q.MinStars, limit*2)
	if err != nil {
		return nil, err
	}

	candidates := make([]Discovery, 0, len(raw))
	for _, r := range raw {
		vec, err := e.embedder.Embed(ctx, embedding.BuildRepoText(repoText(&r), ""))
		if err != nil {
			return nil, fmt.Errorf("embed %s: %w", fullName(r), err)
		}
		score, matched, err := embedding.ScoreAgainstContexts(vec, contexts)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, Discovery{
			FullName:        fullName(r),
			Description:     r.Description,
			Stars:           r.Stars,
			Language:        r.Language,
			SimilarityScore: round3(score),
			MatchedContext:  matched,
		})

		if score >= e.cfg.StoreThreshold {
			if err := e.store.UpsertCandidate(ctx, model.DiscoveryCandidate{
				FullName:        fullName(r),
				SimilarityScore: score,
				MatchedContext:  matched,
				Description:     r.Description,
				Stars:           r.Stars,
				Language:        r.Language,
			}); err != nil {
				return nil, err
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SimilarityScore > candidates[j].SimilarityScore
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// DigestQuery holds the digest inputs.
type DigestQuery struct {
	DaysBack     int
	MinRelevance float64
	Context      string
	Summarize    bool
}

// Digest is a ranked slice of recent feed events with an optional
// AI-generated summary.
type Digest struct {
	PeriodDays int               `json:"period_days"`
	EventCount int               `json:"event_count"`
	Summary    string            `json:"digest_summary,omitempty"`
	Events     []model.FeedEvent `json:"events"`
}

// GetDigest returns recent feed events sorted by relevance.
func (e *Engine) GetDigest(ctx context.Context, q DigestQuery) (*Digest, error) {
	daysBack := q.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	events, err := e.store.ListFeedEvents(ctx, store.EventQuery{
		DaysBack:     daysBack,
		MinRelevance: q.MinRelevance,
		Context:      q.Context,
		Limit:        50,
	})
	if err != nil {
		return nil, err
	}

	d := &Digest{PeriodDays: daysBack, EventCount: len(events), Events: events}
	if q.Summarize && len(events) > 0 {
		summary, err := e.summarizer.SummarizeDigest(ctx, events, q.Context)
		if err != nil {
			return nil, err
		}
		d.Summary = summary
	}
	return d, nil
}

// RepoReport is a live summary of one repo, optionally scored against a
// project context.
type RepoReport struct {
	FullName       string  `json:"full_name"`
	Description    string  `json:"description,omitempty"`
	Stars          int     `json:"stars"`
	Language       string  `json:"language,omitempty"`
	Summary        string  `json:"summary"`
	RelevanceScore float64 `json:"relevance_score,omitempty"`
	MatchedContext string  `json:"matched_context,omitempty"`
}

// RepoSummary fetches live repo metadata and README and generates a
// tailored summary. With a context name, it also scores relevance.
func (e *Engine) RepoSummary(ctx context.Context, repoName, contextName string) (*RepoReport, error) {
	meta, err := e.github.GetRepo(ctx, repoName)
	if err != nil {
		return nil, err
	}
	readme, err := e.github.GetReadme(ctx, repoName)
	if err != nil {
		return nil, err
	}

	report := &RepoReport{
		FullName:    meta.FullName,
		Description: meta.Description,
		Stars:       meta.Stars,
		Language:    meta.Language,
	}

	if contextName != "" {
		pc, err := e.store.GetContext(ctx, contextName)
		if err != nil {
			return nil, err
		}
		if pc == nil {
			return nil, fmt.Errorf("unknown project context %q", contextName)
		}
		if len(pc.Embedding) > 0 {
			vec, err := e.embedder.Embed(ctx, embedding.BuildRepoText(repoText(meta), readme))
			if err != nil {
				return nil, err
			}
			score, err := embedding.CosineSimilarity(vec, pc.Embedding)
			if err != nil {
				return nil, err
			}
			report.RelevanceScore = round3(score)
			report.MatchedContext = pc.Name
		}
	}

	summary, err := e.summarizer.SummarizeRepo(ctx, repoName, meta.Description, readme, contextName)
	if err != nil {
		return nil, err
	}
	report.Summary = summary

	// Cache the summary when the repo is watched. Best effort.
	if err := e.store.SetRepoSummary(ctx, repoName, summary); err != nil {
		e.log.Warn().Err(err).Str("repo", repoName).Msg("cache summary failed")
	}
	return report, nil
}

// RegisterContext embeds a context description and upserts it by name.
// Re-registering refreshes description, embedding, and updated timestamp.
func (e *Engine) RegisterContext(ctx context.Context, name, description string) (*model.ProjectContext, error) {
	vec, err := e.embedder.Embed(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embed context %q: %w", name, err)
	}
	if err := e.store.UpsertContext(ctx, name, description, vec); err != nil {
		return nil, err
	}
	return e.store.GetContext(ctx, name)
}

// RefreshContextEmbeddings re-embeds every registered context in one batch,
// e.g. after switching embedding models. Returns the number refreshed.
func (e *Engine) RefreshContextEmbeddings(ctx context.Context) (int, error) {
	contexts, err := e.store.ListContexts(ctx)
	if err != nil {
		return 0, err
	}
	if len(contexts) == 0 {
		return 0, nil
	}

	texts := make([]string, len(contexts))
	for i, c := range contexts {
		texts[i] = c.Description
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed contexts: %w", err)
	}

	for i, c := range contexts {
		if err := e.store.UpsertContext(ctx, c.Name, c.Description, vecs[i]); err != nil {
			return i, err
		}
	}
	return len(contexts), nil
}

func repoText(r *github.Repo) embedding.RepoText {
	return embedding.RepoText{
		FullName:    r.FullName,
		Description: r.Description,
		Topics:      r.Topics,
		Language:    r.Language,
	}
}

func fullName(r github.Repo) string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Owner.Login + "/" + r.Name
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
