// Package github is a rate-limit-aware client for the GitHub REST API.
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.github.com"

// maxRateLimitRetries bounds how many times a request waits out a rate-limit
// window before the error is surfaced.
const maxRateLimitRetries = 3

// ErrNotFound indicates the requested resource does not exist upstream.
var ErrNotFound = errors.New("github: not found")

// Repo is GitHub repository metadata.
type Repo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
	Language    string   `json:"language"`
	Stars       int      `json:"stargazers_count"`
	HTMLURL     string   `json:"html_url"`
}

// Release is a published GitHub release.
type Release struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Body        string     `json:"body"`
	PublishedAt *time.Time `json:"published_at"`
	HTMLURL     string     `json:"html_url"`
}

// Commit is one entry from the repo commits listing.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

type readmeResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type searchResponse struct {
	Items []Repo `json:"items"`
}

// Client talks to the GitHub REST API.
type Client struct {
	http *resty.Client
	now  func() time.Time
}

// NewClient creates a GitHub client authenticated with the given token.
func NewClient(token string) *Client {
	c := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetTimeout(30 * time.Second)
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	return &Client{http: c, now: time.Now}
}

// SetBaseURL overrides the API base URL, mainly for tests.
func (c *Client) SetBaseURL(u string) { c.http.SetBaseURL(u) }

// get performs a GET with rate-limit handling: when a request fails with zero
// remaining quota and a known reset time, it sleeps until the reset and
// retries, up to maxRateLimitRetries, then surfaces the last error.
func (c *Client) get(ctx context.Context, path string, params map[string]string, headers map[string]string, out any) error {
	for attempt := 0; ; attempt++ {
		req := c.http.R().SetContext(ctx).SetResult(out)
		if params != nil {
			req.SetQueryParams(params)
		}
		if headers != nil {
			req.SetHeaders(headers)
		}
		resp, err := req.Get(path)
		if err != nil {
			return fmt.Errorf("github get %s: %w", path, err)
		}
		if !resp.IsError() {
			return nil
		}
		if resp.StatusCode() == 404 {
			return fmt.Errorf("github get %s: %w", path, ErrNotFound)
		}
		if attempt < maxRateLimitRetries {
			if wait, ok := rateLimitWait(resp, c.now()); ok {
				if err := sleepCtx(ctx, wait); err != nil {
					return err
				}
				continue
			}
		}
		return fmt.Errorf("github get %s: status %d: %s", path, resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
}

// rateLimitWait reads the rate-limit headers of a failed response and reports
// how long to wait for the quota reset. The wait is clamped to non-negative.
func rateLimitWait(resp *resty.Response, now time.Time) (time.Duration, bool) {
	remaining := resp.Header().Get("X-RateLimit-Remaining")
	reset := resp.Header().Get("X-RateLimit-Reset")
	if remaining == "" || reset == "" {
		return 0, false
	}
	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return 0, false
	}
	resetAt, err := strconv.ParseInt(reset, 10, 64)
	if err != nil {
		return 0, false
	}
	wait := time.Unix(resetAt, 0).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// GetRepo fetches repo metadata, including topics.
func (c *Client) GetRepo(ctx context.Context, fullName string) (*Repo, error) {
	var repo Repo
	// topics are only returned with the mercy-preview accept header
	headers := map[string]string{"Accept": "application/vnd.github.mercy-preview+json"}
	if err := c.get(ctx, "/repos/"+fullName, nil, headers, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// GetReadme fetches and decodes the repo README. A missing README is not an
// error; it returns an empty string.
func (c *Client) GetReadme(ctx context.Context, fullName string) (string, error) {
	var r readmeResponse
	if err := c.get(ctx, "/repos/"+fullName+"/readme", nil, nil, &r); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if r.Encoding == "base64" {
		b, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(r.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode readme: %w", err)
		}
		return string(b), nil
	}
	return r.Content, nil
}

// GetReleases fetches the most recent releases, newest first.
func (c *Client) GetReleases(ctx context.Context, fullName string, limit int) ([]Release, error) {
	var releases []Release
	params := map[string]string{"per_page": strconv.Itoa(limit)}
	if err := c.get(ctx, "/repos/"+fullName+"/releases", params, nil, &releases); err != nil {
		return nil, err
	}
	return releases, nil
}

// GetCommits fetches recent commits, newest first. A zero since fetches
// without a lower bound.
func (c *Client) GetCommits(ctx context.Context, fullName string, since time.Time, limit int) ([]Commit, error) {
	var commits []Commit
	params := map[string]string{"per_page": strconv.Itoa(limit)}
	if !since.IsZero() {
		params["since"] = since.UTC().Format(time.RFC3339)
	}
	if err := c.get(ctx, "/repos/"+fullName+"/commits", params, nil, &commits); err != nil {
		return nil, err
	}
	return commits, nil
}

// SearchRepos searches repositories by query string, filtered by minimum
// stars and optionally language, sorted by stars descending.
func (c *Client) SearchRepos(ctx context.Context, query, language string, minStars, limit int) ([]Repo, error) {
	q := fmt.Sprintf("%s stars:>=%d", query, minStars)
	if language != "" {
		q += " language:" + language
	}
	perPage := limit
	if perPage > 100 {
		perPage = 100
	}
	var result searchResponse
	params := map[string]string{
		"q":        q,
		"sort":     "stars",
		"order":    "desc",
		"per_page": strconv.Itoa(perPage),
	}
	if err := c.get(ctx, "/search/repositories", params, nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// GetOrgRepos lists an org's repos filtered by language and minimum stars,
// paginating until limit is reached.
func (c *Client) GetOrgRepos(ctx context.Context, org, language string, minStars, limit int) ([]Repo, error) {
	var repos []Repo
	page := 1
	const perPage = 100
	for len(repos) < limit {
		var batch []Repo
		params := map[string]string{
			"per_page": strconv.Itoa(perPage),
			"page":     strconv.Itoa(page),
			"sort":     "updated",
		}
		if err := c.get(ctx, "/orgs/"+org+"/repos", params, nil, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, r := range batch {
			if r.Stars < minStars {
				continue
			}
			if language != "" && !strings.EqualFold(r.Language, language) {
				continue
			}
			repos = append(repos, r)
		}
		if len(batch) < perPage {
			break
		}
		page++
	}
	if len(repos) > limit {
		repos = repos[:limit]
	}
	return repos, nil
}

// GetStarred fetches a user's starred repos, paginating up to limit.
func (c *Client) GetStarred(ctx context.Context, username string, limit int) ([]Repo, error) {
	var repos []Repo
	page := 1
	for len(repos) < limit {
		perPage := limit - len(repos)
		if perPage > 100 {
			perPage = 100
		}
		var batch []Repo
		params := map[string]string{
			"per_page": strconv.Itoa(perPage),
			"page":     strconv.Itoa(page),
		}
		if err := c.get(ctx, "/users/"+username+"/starred", params, nil, &batch); err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		repos = append(repos, batch...)
		if len(batch) < perPage {
			break
		}
		page++
	}
	if len(repos) > limit {
		repos = repos[:limit]
	}
	return repos, nil
}
