package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/coder/hnsw"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

const (
	KindHNSW = "hnsw"

	// HNSWMaxNeighbors is the M parameter of the graph
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size
	HNSWEfSearch = 100

	// HNSWCandidates is how many graph neighbours are rescored exactly.
	// Galleries at or below this size are scanned exhaustively.
	HNSWCandidates = 64
)

type graphSnapshot struct {
	*snapshot
	graph *hnsw.Graph[int]
}

// HNSW retrieves candidates from an approximate graph and rescores them with the
// exact inner product, so scores are identical to Flat for the candidates found.
type HNSW struct {
	threshold  float64
	candidates int
	mu         sync.Mutex
	current    atomic.Pointer[graphSnapshot]
}

var _ Index = (*HNSW)(nil)

// NewHNSW creates an empty graph-backed index
func NewHNSW(threshold float64) *HNSW {
	h := &HNSW{threshold: threshold, candidates: HNSWCandidates}
	h.current.Store(&graphSnapshot{snapshot: &snapshot{}})
	return h
}

func (h *HNSW) Rebuild(entries []Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := newSnapshot(entries)
	if err != nil {
		return err
	}

	gs := &graphSnapshot{snapshot: s}
	if len(s.vectors) > h.candidates {
		g := hnsw.NewGraph[int]()
		g.M = HNSWMaxNeighbors
		g.Ml = 1.0 / float64(HNSWMaxNeighbors)
		g.EfSearch = HNSWEfSearch
		g.Distance = hnsw.CosineDistance

		// keys are storage positions so duplicate labels never collide
		for i, vec := range s.vectors {
			g.Add(hnsw.MakeNode(i, vec))
		}
		gs.graph = g
	}

	h.current.Store(gs)
	return nil
}

func (h *HNSW) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current.Store(&graphSnapshot{snapshot: &snapshot{}})
}

// positions returns ascending storage positions of the graph neighbours,
// or nil to request an exhaustive scan.
func (gs *graphSnapshot) positions(query []float32, k int) []int {
	if gs.graph == nil {
		return nil
	}

	nodes := gs.graph.Search(query, k)
	if len(nodes) == 0 {
		return nil
	}

	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	sort.Ints(out)
	return out
}

func (h *HNSW) Search(query []float32) (domain.MatchResult, error) {
	gs := h.current.Load()
	if len(gs.vectors) == 0 {
		return emptyResult(), nil
	}
	if err := gs.checkQuery(query); err != nil {
		return domain.MatchResult{}, err
	}

	idx, score := gs.best(query, gs.positions(query, h.candidates))
	return decide(gs.labels[idx], score, h.threshold), nil
}

func (h *HNSW) SearchTopK(query []float32, k int) ([]domain.Candidate, error) {
	gs := h.current.Load()
	if len(gs.vectors) == 0 || k <= 0 {
		return []domain.Candidate{}, nil
	}
	if err := gs.checkQuery(query); err != nil {
		return nil, err
	}

	return gs.topK(query, gs.positions(query, max(k, h.candidates)), k), nil
}

func (h *HNSW) Len() int {
	return len(h.current.Load().vectors)
}

func (h *HNSW) Stats() Stats {
	gs := h.current.Load()
	return Stats{
		Kind:      KindHNSW,
		Size:      len(gs.vectors),
		Dimension: gs.dim,
		Threshold: h.threshold,
		BuiltAt:   gs.builtAt,
	}
}
