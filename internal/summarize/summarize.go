// Package summarize generates short natural-language summaries of repo
// activity using the Anthropic messages API.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rcliao/research-feed/internal/model"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-haiku-4-5-20251001"
	apiVersion     = "2023-06-01"
)

// Client summarizes via the Anthropic messages endpoint.
type Client struct {
	http  *resty.Client
	model string
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewClient creates a summarizer client. An empty model selects the default.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	c := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("Content-Type", "application/json").
		SetTimeout(60 * time.Second)
	return &Client{http: c, model: model}
}

// SetBaseURL overrides the API base URL, mainly for tests.
func (c *Client) SetBaseURL(u string) { c.http.SetBaseURL(u) }

func (c *Client) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var result messagesResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&messagesRequest{
			Model:     c.model,
			MaxTokens: maxTokens,
			Messages:  []message{{Role: "user", Content: prompt}},
		}).
		SetResult(&result).
		Post("/v1/messages")
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("anthropic error %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response")
	}
	return strings.TrimSpace(result.Content[0].Text), nil
}

// SummarizeRepo generates a 2-3 sentence summary of a repo. If projectContext
// is set, the summary is framed in terms of relevance to it.
func (c *Client) SummarizeRepo(ctx context.Context, repoName, description, readmeExcerpt, projectContext string) (string, error) {
	parts := []string{"Repository: " + repoName}
	if description != "" {
		parts = append(parts, "Description: "+description)
	}
	if readmeExcerpt != "" {
		if len(readmeExcerpt) > 3000 {
			readmeExcerpt = readmeExcerpt[:3000]
		}
		parts = append(parts, "README excerpt:\n"+readmeExcerpt)
	}

	hint := ""
	if projectContext != "" {
		hint = "\nFrame the summary in terms of relevance to: " + projectContext
	}

	prompt := fmt.Sprintf(`Summarize this GitHub repository in 2-3 sentences. Be specific about what it does and who would use it.%s

%s

Summary:`, hint, strings.Join(parts, "\n"))

	return c.complete(ctx, prompt, 300)
}

// SummarizeRelease summarizes a release in 1-2 sentences.
func (c *Client) SummarizeRelease(ctx context.Context, repoName, version, releaseNotes, projectContext string) (string, error) {
	if releaseNotes == "" {
		releaseNotes = "No release notes provided."
	}
	if len(releaseNotes) > 2000 {
		releaseNotes = releaseNotes[:2000]
	}

	hint := ""
	if projectContext != "" {
		hint = " Focus on what matters for: " + projectContext + "."
	}

	prompt := fmt.Sprintf(`Summarize this GitHub release in 1-2 sentences. What changed and why does it matter?%s

Repository: %s
Version: %s
Release notes:
%s

Summary:`, hint, repoName, version, releaseNotes)

	return c.complete(ctx, prompt, 150)
}

// SummarizeCommitBurst summarizes a batch of recent commit messages in 1-2
// sentences. At most 20 messages are included in the prompt.
func (c *Client) SummarizeCommitBurst(ctx context.Context, repoName string, commitMessages []string, projectContext string) (string, error) {
	if len(commitMessages) > 20 {
		commitMessages = commitMessages[:20]
	}
	var lines []string
	for _, m := range commitMessages {
		lines = append(lines, "- "+m)
	}

	hint := ""
	if projectContext != "" {
		hint = " Frame relevance to: " + projectContext + "."
	}

	prompt := fmt.Sprintf(`Summarize these recent commits to %s in 1-2 sentences. What's the overall direction of recent work?%s

Recent commits:
%s

Summary:`, repoName, hint, strings.Join(lines, "\n"))

	return c.complete(ctx, prompt, 150)
}

// SummarizeDigest generates a high-level digest from a list of feed events.
func (c *Client) SummarizeDigest(ctx context.Context, events []model.FeedEvent, projectContext string) (string, error) {
	if len(events) == 0 {
		return "No new activity in the feed for this period.", nil
	}
	if len(events) > 30 {
		events = events[:30]
	}

	var lines []string
	for _, e := range events {
		marker := "->"
		if e.RelevanceScore >= 0.7 {
			marker = "**"
		}
		lines = append(lines, fmt.Sprintf("%s [%s] %s: %s", marker, e.RepoFullName, e.Title, e.Summary))
	}

	hint := ""
	if projectContext != "" {
		hint = " for " + projectContext + " research"
	}

	prompt := fmt.Sprintf(`Here are recent GitHub feed events%s. Write a 3-5 sentence digest highlighting the most significant developments and any patterns worth noting.

Events:
%s

Digest:`, hint, strings.Join(lines, "\n"))

	return c.complete(ctx, prompt, 400)
}
