package index

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/embedding"
)

// DefaultThreshold is the minimum cosine similarity for a match
const DefaultThreshold = 0.65

var (
	// ErrDimensionMismatch is returned when vectors disagree on length
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding is returned when an entry has no components
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// Entry is one (embedding, label) pair. Embedding must already be unit-norm.
type Entry struct {
	Label     string
	Embedding []float32
}

// Stats describes the published snapshot
type Stats struct {
	Kind      string    `json:"kind"`
	Size      int       `json:"size"`
	Dimension int       `json:"dimension"`
	Threshold float64   `json:"threshold"`
	BuiltAt   time.Time `json:"built_at"`
}

// Index is an in-memory nearest-neighbour structure over normalized embeddings.
// Rebuild publishes a complete new snapshot; concurrent searches see either the
// old or the new contents, never a mix.
type Index interface {
	// Rebuild replaces the contents with entries, in order.
	Rebuild(entries []Entry) error
	// Reset publishes an empty snapshot.
	Reset()
	// Search returns the best match for a unit-norm query. An empty index
	// reports unknown with score 0.
	Search(query []float32) (domain.MatchResult, error)
	// SearchTopK returns up to k candidates by descending similarity.
	SearchTopK(query []float32, k int) ([]domain.Candidate, error)
	// Len is the number of entries in the current snapshot.
	Len() int
	Stats() Stats
}

// New returns the index implementation named by kind, defaulting to Flat
func New(kind string, threshold float64) Index {
	if kind == KindHNSW {
		return NewHNSW(threshold)
	}
	return NewFlat(threshold)
}

// snapshot is immutable once published
type snapshot struct {
	labels  []string
	vectors [][]float32
	dim     int
	builtAt time.Time
}

func newSnapshot(entries []Entry) (*snapshot, error) {
	s := &snapshot{
		labels:  make([]string, len(entries)),
		vectors: make([][]float32, len(entries)),
		builtAt: time.Now(),
	}

	for i, e := range entries {
		if len(e.Embedding) == 0 {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.Label, ErrEmptyEmbedding)
		}
		if s.dim == 0 {
			s.dim = len(e.Embedding)
		} else if len(e.Embedding) != s.dim {
			return nil, fmt.Errorf("entry %d (%s): %w: got %d, want %d",
				i, e.Label, ErrDimensionMismatch, len(e.Embedding), s.dim)
		}

		vec := make([]float32, len(e.Embedding))
		copy(vec, e.Embedding)
		s.labels[i] = e.Label
		s.vectors[i] = vec
	}

	return s, nil
}

func (s *snapshot) checkQuery(query []float32) error {
	if len(query) != s.dim {
		return fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), s.dim)
	}
	return nil
}

// best scans positions (all when nil) and keeps the first maximum.
// positions must be ascending so ties resolve to storage order.
func (s *snapshot) best(query []float32, positions []int) (int, float64) {
	bestIdx := -1
	bestScore := 0.0

	visit := func(i int) {
		score := embedding.Dot(query, s.vectors[i])
		if bestIdx < 0 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	if positions == nil {
		for i := range s.vectors {
			visit(i)
		}
	} else {
		for _, i := range positions {
			visit(i)
		}
	}

	return bestIdx, bestScore
}

func (s *snapshot) topK(query []float32, positions []int, k int) []domain.Candidate {
	if positions == nil {
		positions = make([]int, len(s.vectors))
		for i := range positions {
			positions[i] = i
		}
	}

	candidates := make([]domain.Candidate, len(positions))
	for n, i := range positions {
		candidates[n] = domain.Candidate{
			Label:      s.labels[i],
			Similarity: embedding.Dot(query, s.vectors[i]),
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Similarity > candidates[b].Similarity
	})

	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}

func decide(label string, score, threshold float64) domain.MatchResult {
	if score >= threshold {
		return domain.MatchResult{Status: domain.MatchStatusMatched, Label: label, Score: score}
	}
	return domain.MatchResult{Status: domain.MatchStatusUnknown, Label: domain.UnknownLabel, Score: score}
}

func emptyResult() domain.MatchResult {
	return domain.MatchResult{Status: domain.MatchStatusUnknown, Label: domain.UnknownLabel, Score: 0}
}
