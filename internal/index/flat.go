package index

import (
	"sync"
	"sync/atomic"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

const KindFlat = "flat"

// Flat is an exact inner-product index. Searches are lock-free reads of the
// current snapshot; rebuilds are serialized and swap the snapshot atomically.
type Flat struct {
	threshold float64
	mu        sync.Mutex
	current   atomic.Pointer[snapshot]
}

var _ Index = (*Flat)(nil)

// NewFlat creates an empty exact index
func NewFlat(threshold float64) *Flat {
	f := &Flat{threshold: threshold}
	f.current.Store(&snapshot{})
	return f
}

func (f *Flat) Rebuild(entries []Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, err := newSnapshot(entries)
	if err != nil {
		return err
	}
	f.current.Store(s)
	return nil
}

func (f *Flat) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current.Store(&snapshot{})
}

func (f *Flat) Search(query []float32) (domain.MatchResult, error) {
	s := f.current.Load()
	if len(s.vectors) == 0 {
		return emptyResult(), nil
	}
	if err := s.checkQuery(query); err != nil {
		return domain.MatchResult{}, err
	}

	idx, score := s.best(query, nil)
	return decide(s.labels[idx], score, f.threshold), nil
}

func (f *Flat) SearchTopK(query []float32, k int) ([]domain.Candidate, error) {
	s := f.current.Load()
	if len(s.vectors) == 0 || k <= 0 {
		return []domain.Candidate{}, nil
	}
	if err := s.checkQuery(query); err != nil {
		return nil, err
	}

	return s.topK(query, nil, k), nil
}

func (f *Flat) Len() int {
	return len(f.current.Load().vectors)
}

func (f *Flat) Stats() Stats {
	s := f.current.Load()
	return Stats{
		Kind:      KindFlat,
		Size:      len(s.vectors),
		Dimension: s.dim,
		Threshold: f.threshold,
		BuiltAt:   s.builtAt,
	}
}
