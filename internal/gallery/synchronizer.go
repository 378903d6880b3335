package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/embedding"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/index"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/repository"
)

// Store reads the persisted gallery
type Store interface {
	FetchAllWithEmbedding(ctx context.Context) ([]repository.StoredEmbedding, error)
}

// SyncReport summarizes one rebuild
type SyncReport struct {
	Loaded   int           `json:"loaded"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration_ns"`
	SyncedAt time.Time     `json:"synced_at"`
}

// Synchronizer rebuilds the in-memory index from the store. Rebuilds are
// serialized; searches keep running against the previous snapshot meanwhile.
type Synchronizer struct {
	store     Store
	index     index.Index
	dimension int
	logger    *slog.Logger

	mu   sync.Mutex
	last atomic.Pointer[SyncReport]
}

// NewSynchronizer creates a synchronizer. With dimension 0 the first
// decodable record fixes the length and records that disagree are skipped.
func NewSynchronizer(store Store, idx index.Index, dimension int, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		store:     store,
		index:     idx,
		dimension: dimension,
		logger:    logger,
	}
}

// Sync fetches every stored embedding, drops undecodable or zero-norm records
// and publishes the survivors. When the fetch fails the current snapshot is kept.
func (s *Synchronizer) Sync(ctx context.Context) (SyncReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	records, err := s.store.FetchAllWithEmbedding(ctx)
	if err != nil {
		s.logger.Error("gallery fetch failed, keeping previous index",
			"error", err,
			"index_size", s.index.Len(),
		)
		return SyncReport{}, domain.ErrGallerySync.WithError(err)
	}

	entries := make([]index.Entry, 0, len(records))
	skipped := 0
	dim := s.dimension

	for _, rec := range records {
		vec, err := embedding.Decode(rec.Raw, dim)
		if err == nil {
			vec, err = embedding.Normalize(vec)
		}
		if err == nil && dim == 0 {
			dim = len(vec)
		}
		if err != nil {
			skipped++
			s.logger.Warn("skipping gallery record",
				"label", rec.Label,
				"id", rec.ID,
				"error", err,
			)
			continue
		}

		entries = append(entries, index.Entry{Label: rec.Label, Embedding: vec})
	}

	if err := s.index.Rebuild(entries); err != nil {
		s.logger.Error("index rebuild failed, keeping previous index", "error", err)
		return SyncReport{}, domain.ErrGallerySync.WithError(fmt.Errorf("rebuild index: %w", err))
	}

	report := SyncReport{
		Loaded:   len(entries),
		Skipped:  skipped,
		Duration: time.Since(start),
		SyncedAt: time.Now(),
	}
	s.last.Store(&report)

	s.logger.Info("gallery synchronized",
		"loaded", report.Loaded,
		"skipped", report.Skipped,
		"duration", report.Duration,
	)

	return report, nil
}

// LastReport returns the most recent successful sync, if any
func (s *Synchronizer) LastReport() (SyncReport, bool) {
	r := s.last.Load()
	if r == nil {
		return SyncReport{}, false
	}
	return *r, true
}

// Index exposes the index kept in sync
func (s *Synchronizer) Index() index.Index {
	return s.index
}
