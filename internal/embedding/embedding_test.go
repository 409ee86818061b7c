package embedding

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rcliao/research-feed/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Vector
		expected float64
		delta    float64
	}{
		{"identical", Vector{1, 0, 0}, Vector{1, 0, 0}, 1.0, 0.001},
		{"orthogonal", Vector{1, 0, 0}, Vector{0, 1, 0}, 0.0, 0.001},
		{"opposite", Vector{1, 0, 0}, Vector{-1, 0, 0}, -1.0, 0.001},
		{"similar", Vector{1, 1, 0}, Vector{1, 0, 0}, 0.707, 0.01},
		{"zero vector", Vector{0, 0, 0}, Vector{1, 0, 0}, 0.0, 0.001},
		{"both zero", Vector{0, 0}, Vector{0, 0}, 0.0, 0.001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if err != nil {
				t.Fatalf("CosineSimilarity(%v, %v): %v", tt.a, tt.b, err)
			}
			if math.Abs(got-tt.expected) > tt.delta {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f (±%f)", tt.a, tt.b, got, tt.expected, tt.delta)
			}
		})
	}
}

func TestCosineSimilaritySymmetry(t *testing.T) {
	a := Vector{0.3, 0.5, 0.2}
	b := Vector{0.1, 0.9, 0.4}

	ab, err := CosineSimilarity(a, b)
	if err != nil {
		t.Fatal(err)
	}
	ba, err := CosineSimilarity(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if ab != ba {
		t.Errorf("expected symmetry, got %f vs %f", ab, ba)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity(Vector{1, 0}, Vector{1, 0, 0})
	if err == nil {
		t.Fatal("expected error for mismatched lengths")
	}
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %T", err)
	}
	if dimErr.A != 2 || dimErr.B != 3 {
		t.Errorf("expected dims 2 and 3, got %d and %d", dimErr.A, dimErr.B)
	}
}

func TestScoreAgainstContexts(t *testing.T) {
	contexts := []model.ProjectContext{
		{Name: "no-embedding"},
		{Name: "orthogonal", Embedding: Vector{0, 1, 0}},
		{Name: "aligned", Embedding: Vector{1, 0, 0}},
	}

	score, name, err := ScoreAgainstContexts(Vector{1, 0, 0}, contexts)
	if err != nil {
		t.Fatal(err)
	}
	if name != "aligned" {
		t.Errorf("expected best context 'aligned', got %q", name)
	}
	if math.Abs(score-1.0) > 0.001 {
		t.Errorf("expected score 1.0, got %f", score)
	}
}

func TestScoreAgainstContextsEmpty(t *testing.T) {
	// No contexts at all
	score, name, err := ScoreAgainstContexts(Vector{1, 0}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 || name != "" {
		t.Errorf("expected (0, empty), got (%f, %q)", score, name)
	}

	// Contexts exist but none carry an embedding
	score, name, err = ScoreAgainstContexts(Vector{1, 0}, []model.ProjectContext{
		{Name: "a"}, {Name: "b"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 || name != "" {
		t.Errorf("expected (0, empty), got (%f, %q)", score, name)
	}
}

func TestScoreAgainstContextsTieKeepsEarliest(t *testing.T) {
	// Two contexts with identical embeddings score equally; the first wins.
	contexts := []model.ProjectContext{
		{Name: "first", Embedding: Vector{1, 1, 0}},
		{Name: "second", Embedding: Vector{1, 1, 0}},
	}

	_, name, err := ScoreAgainstContexts(Vector{1, 1, 0}, contexts)
	if err != nil {
		t.Fatal(err)
	}
	if name != "first" {
		t.Errorf("expected tie to keep 'first', got %q", name)
	}
}

func TestScoreAgainstContextsDimensionMismatch(t *testing.T) {
	contexts := []model.ProjectContext{
		{Name: "bad", Embedding: Vector{1, 0}},
	}
	_, _, err := ScoreAgainstContexts(Vector{1, 0, 0}, contexts)
	var dimErr *DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestBuildRepoText(t *testing.T) {
	text := BuildRepoText(RepoText{
		FullName:    "acme/widget",
		Description: "A widget factory",
		Topics:      []string{"widgets", "factory"},
		Language:    "Go",
	}, "This is the README.")

	for _, want := range []string{
		"Repository: acme/widget",
		"Description: A widget factory",
		"Topics: widgets, factory",
		"Language: Go",
		"README: This is the README.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected text to contain %q\ngot: %s", want, text)
		}
	}
}

func TestBuildRepoTextTruncatesReadme(t *testing.T) {
	long := strings.Repeat("x", 5000)
	text := BuildRepoText(RepoText{FullName: "a/b"}, long)

	if len(text) > len("Repository: a/b\nREADME: ")+2000 {
		t.Errorf("expected README capped at 2000 chars, got total %d", len(text))
	}
}

func TestBuildRepoTextSkipsEmptyFields(t *testing.T) {
	text := BuildRepoText(RepoText{FullName: "a/b"}, "")
	if text != "Repository: a/b" {
		t.Errorf("expected only repository line, got %q", text)
	}
}
