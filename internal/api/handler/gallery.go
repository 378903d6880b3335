package handler

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/gallery"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

const (
	defaultNearestK = 5
	maxNearestK     = 50

	SourceIndex = "index"
	SourceStore = "store"
)

type GalleryService interface {
	RefreshGallery(ctx context.Context) (gallery.SyncReport, error)
	Stats(ctx context.Context) (*service.GalleryStats, error)
	Candidates(ctx context.Context, img image.Image, k int) ([]domain.Candidate, error)
	NearestInStore(ctx context.Context, img image.Image, k int) ([]domain.Candidate, error)
}

type GalleryHandler struct {
	service   GalleryService
	publisher ws.Publisher
	logger    *slog.Logger
}

func NewGalleryHandler(service GalleryService, publisher ws.Publisher, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{
		service:   service,
		publisher: publisher,
		logger:    logger,
	}
}

type NearestResponse struct {
	Source     string             `json:"source"`
	Candidates []domain.Candidate `json:"candidates"`
}

// Refresh POST /v1/gallery/refresh - rebuild the index from the store
func (h *GalleryHandler) Refresh(c *fiber.Ctx) error {
	report, err := h.service.RefreshGallery(c.UserContext())
	if err != nil {
		return err
	}

	if h.publisher != nil {
		h.publisher.Publish(ws.EventGallerySynced, report)
	}

	return c.JSON(report)
}

// Stats GET /v1/gallery/stats
func (h *GalleryHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(stats)
}

// Nearest POST /v1/gallery/nearest - top-k candidates from the index or the store
func (h *GalleryHandler) Nearest(c *fiber.Ctx) error {
	k, err := parseK(c.FormValue("k"))
	if err != nil {
		return err
	}

	source := c.FormValue("source", SourceIndex)
	if source != SourceIndex && source != SourceStore {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("source must be %q or %q", SourceIndex, SourceStore))
	}

	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("nearest: %w", err)
	}

	img, err := decodeImage(imageBytes)
	if err != nil {
		return err
	}

	var candidates []domain.Candidate
	if source == SourceStore {
		candidates, err = h.service.NearestInStore(c.UserContext(), img, k)
	} else {
		candidates, err = h.service.Candidates(c.UserContext(), img, k)
	}
	if err != nil {
		return err
	}
	if candidates == nil {
		candidates = []domain.Candidate{}
	}

	return c.JSON(NearestResponse{
		Source:     source,
		Candidates: candidates,
	})
}

func parseK(raw string) (int, error) {
	if raw == "" {
		return defaultNearestK, nil
	}

	k, err := strconv.Atoi(raw)
	if err != nil || k < 1 || k > maxNearestK {
		return 0, domain.ErrValidationFailed.WithError(fmt.Errorf("k must be between 1 and %d", maxNearestK))
	}
	return k, nil
}
