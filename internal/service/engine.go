package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/embedding"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/gallery"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/index"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/vision"
)

// GalleryStore is the persistent side of the gallery as seen by the engine
type GalleryStore interface {
	Insert(ctx context.Context, identity *domain.Identity, raw []byte) error
	Delete(ctx context.Context, label string) error
	GetByLabel(ctx context.Context, label string) (*domain.Identity, error)
	Count(ctx context.Context) (int, error)
	NearestInStore(ctx context.Context, query []float32, limit int) ([]domain.Candidate, error)
}

// Synchronizer rebuilds the in-memory index from the store
type Synchronizer interface {
	Sync(ctx context.Context) (gallery.SyncReport, error)
	LastReport() (gallery.SyncReport, bool)
}

// EngineConfig holds the operating points of the pipeline
type EngineConfig struct {
	RegisterThreshold float64
	ScanThreshold     float64
	Concurrency       int
}

// DefaultEngineConfig returns the standard detection thresholds
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RegisterThreshold: vision.RegisterThreshold,
		ScanThreshold:     vision.ScanThreshold,
		Concurrency:       4,
	}
}

// Engine runs the detect, extract, embed, normalize and search pipeline
type Engine struct {
	embedder    provider.Embedder
	register    *vision.Extractor
	scan        *vision.Extractor
	index       index.Index
	sync        Synchronizer
	store       GalleryStore
	logger      *slog.Logger
	concurrency int
}

func NewEngine(
	detector provider.Detector,
	embedder provider.Embedder,
	idx index.Index,
	sync Synchronizer,
	store GalleryStore,
	logger *slog.Logger,
	cfg EngineConfig,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}

	return &Engine{
		embedder:    embedder,
		register:    vision.NewExtractor(detector, cfg.RegisterThreshold),
		scan:        vision.NewExtractor(detector, cfg.ScanThreshold),
		index:       idx,
		sync:        sync,
		store:       store,
		logger:      logger,
		concurrency: cfg.Concurrency,
	}
}

// describe turns one image into a unit-norm embedding using the given extractor
func (e *Engine) describe(ctx context.Context, img image.Image, ex *vision.Extractor) ([]float32, error) {
	face, err := ex.Extract(ctx, img)
	if err != nil {
		return nil, err
	}

	raw, err := e.embedder.Embed(ctx, face.Crop)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, domain.ErrEmbeddingExtraction.WithError(err)
	}

	vec, err := embedding.Normalize(raw)
	if err != nil {
		return nil, err
	}

	return vec, nil
}

// Identify answers "who is this face" for a live or uploaded frame. A frame
// without a usable face is not an error: it yields status no_face, or
// extraction_failed when the face could not be embedded, with a reason.
func (e *Engine) Identify(ctx context.Context, img image.Image) (domain.MatchResult, error) {
	vec, err := e.describe(ctx, img, e.scan)
	if err != nil {
		if ctx.Err() != nil {
			return domain.MatchResult{}, err
		}
		switch {
		case errors.Is(err, domain.ErrNoFaceFound):
			return domain.MatchResult{
				Status: domain.MatchStatusNoFace,
				Label:  domain.UnknownLabel,
				Reason: vision.Reason(err),
			}, nil
		case errors.Is(err, domain.ErrDegenerateEmbedding), errors.Is(err, domain.ErrEmbeddingExtraction):
			e.logger.Warn("identify: no usable embedding", "error", err)
			return domain.MatchResult{
				Status: domain.MatchStatusExtractionFailed,
				Label:  domain.UnknownLabel,
				Reason: vision.Reason(err),
			}, nil
		}
		return domain.MatchResult{}, err
	}

	result, err := e.index.Search(vec)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("search index: %w", err)
	}

	e.logger.Debug("identify",
		"status", result.Status,
		"label", result.Label,
		"score", result.Score,
	)

	return result, nil
}

// Candidates returns the k best index entries for the face in img, matched or not
func (e *Engine) Candidates(ctx context.Context, img image.Image, k int) ([]domain.Candidate, error) {
	vec, err := e.describe(ctx, img, e.scan)
	if err != nil {
		return nil, err
	}

	return e.index.SearchTopK(vec, k)
}

// NearestInStore ranks the face in img against the database directly
func (e *Engine) NearestInStore(ctx context.Context, img image.Image, k int) ([]domain.Candidate, error) {
	vec, err := e.describe(ctx, img, e.scan)
	if err != nil {
		return nil, err
	}

	return e.store.NearestInStore(ctx, vec, k)
}

// RefreshGallery rebuilds the index from the store
func (e *Engine) RefreshGallery(ctx context.Context) (gallery.SyncReport, error) {
	return e.sync.Sync(ctx)
}

// Delete removes an identity from the store and resyncs
func (e *Engine) Delete(ctx context.Context, label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("label is required"))
	}

	if err := e.store.Delete(ctx, label); err != nil {
		return err
	}

	if _, err := e.sync.Sync(ctx); err != nil {
		e.logger.Error("resync after delete failed", "label", label, "error", err)
		return err
	}

	return nil
}

// Identity returns the stored record for label, metadata included
func (e *Engine) Identity(ctx context.Context, label string) (*domain.Identity, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("label is required"))
	}
	return e.store.GetByLabel(ctx, label)
}

// GalleryStats combines the live index with the store row count
type GalleryStats struct {
	Index    index.Stats         `json:"index"`
	Stored   int                 `json:"stored"`
	LastSync *gallery.SyncReport `json:"last_sync,omitempty"`
}

func (e *Engine) Stats(ctx context.Context) (*GalleryStats, error) {
	stored, err := e.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &GalleryStats{
		Index:  e.index.Stats(),
		Stored: stored,
	}
	if report, ok := e.sync.LastReport(); ok {
		stats.LastSync = &report
	}

	return stats, nil
}
