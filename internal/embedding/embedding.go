// Package embedding provides text embedding providers and cosine-similarity
// scoring against project contexts.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rcliao/research-feed/internal/model"
)

// Vector is a float32 embedding vector.
type Vector = []float32

// MaxTextChars bounds text sent to a provider, keeping well under token limits.
const MaxTextChars = 8000

// Embedder generates embedding vectors from text.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	// EmbedBatch embeds multiple texts. The output order matches the input order.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// DimensionError indicates two embeddings of different dimensionality were
// compared, i.e. outputs of different embedding models got mixed.
type DimensionError struct {
	A, B int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: %d vs %d", e.A, e.B)
}

// CosineSimilarity computes cosine similarity between two vectors.
// Vectors of unequal length are an error; a zero-magnitude vector yields 0.
func CosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionError{A: len(a), B: len(b)}
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ScoreAgainstContexts scores a vector against every project context that has
// an embedding and returns the best score with the matching context name.
// Contexts without an embedding are skipped. With nothing to score against it
// returns (0, ""). Equal scores keep the earliest context.
func ScoreAgainstContexts(vec Vector, contexts []model.ProjectContext) (float64, string, error) {
	bestScore := 0.0
	bestName := ""
	for _, ctx := range contexts {
		if len(ctx.Embedding) == 0 {
			continue
		}
		score, err := CosineSimilarity(vec, ctx.Embedding)
		if err != nil {
			return 0, "", fmt.Errorf("score context %q: %w", ctx.Name, err)
		}
		if score > bestScore {
			bestScore = score
			bestName = ctx.Name
		}
	}
	return bestScore, bestName, nil
}

// RepoText holds the descriptive fields of a repo used to build embedding input.
type RepoText struct {
	FullName    string
	Description string
	Topics      []string
	Language    string
}

// BuildRepoText assembles the text representation of a repo for embedding.
// The README excerpt, when present, is capped at 2000 chars and the whole
// text at MaxTextChars.
func BuildRepoText(r RepoText, readme string) string {
	var parts []string
	if r.FullName != "" {
		parts = append(parts, "Repository: "+r.FullName)
	}
	if r.Description != "" {
		parts = append(parts, "Description: "+r.Description)
	}
	if len(r.Topics) > 0 {
		parts = append(parts, "Topics: "+strings.Join(r.Topics, ", "))
	}
	if r.Language != "" {
		parts = append(parts, "Language: "+r.Language)
	}
	if readme != "" {
		parts = append(parts, "README: "+truncate(readme, 2000))
	}
	return truncate(strings.Join(parts, "\n"), MaxTextChars)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// --- Ollama Provider ---

// OllamaEmbedder uses a local Ollama instance for embeddings.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
func NewOllamaEmbedder(baseURL, model string) *OllamaEmbedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	body, _ := json.Marshal(ollamaRequest{Model: e.model, Prompt: truncate(text, MaxTextChars)})
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(b))
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

// EmbedBatch embeds texts one at a time; the Ollama embeddings endpoint takes
// a single prompt per call.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	out := make([]Vector, 0, len(texts))
	for _, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// --- OpenAI-compatible Provider ---

// OpenAIEmbedder uses any OpenAI-compatible embedding API.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

type openaiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openaiEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAIEmbedder creates an embedder using an OpenAI-compatible API.
func NewOpenAIEmbedder(baseURL, apiKey, model string) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &OpenAIEmbedder{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (Vector, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds all texts in one API call. The response is re-ordered by
// index so the output always matches the input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = truncate(t, MaxTextChars)
	}
	body, _ := json.Marshal(openaiEmbedRequest{Input: input, Model: e.model})
	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai error %d: %s", resp.StatusCode, string(b))
	}

	var result openaiEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}
	out := make([]Vector, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// --- Factory ---

// New creates an embedder for the given provider name.
func New(provider, baseURL, apiKey, model string) (Embedder, error) {
	switch provider {
	case "ollama":
		return NewOllamaEmbedder(baseURL, model), nil
	case "openai", "":
		return NewOpenAIEmbedder(baseURL, apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}
