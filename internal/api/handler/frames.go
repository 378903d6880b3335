package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/scanner"
)

type FrameScanner interface {
	Scan(ctx context.Context, frame []byte) (*scanner.ScanResult, error)
	Stats() scanner.Stats
}

type FrameHandler struct {
	scanner FrameScanner
}

func NewFrameHandler(scanner FrameScanner) *FrameHandler {
	return &FrameHandler{scanner: scanner}
}

type FrameResponse struct {
	FrameID   string `json:"frame_id"`
	LatencyMs int64  `json:"latency_ms"`
	IdentifyResponse
}

// Submit POST /v1/frames - identify one live frame, or skip it if the scanner is saturated
func (h *FrameHandler) Submit(c *fiber.Ctx) error {
	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}

	scan, err := h.scanner.Scan(c.UserContext(), imageBytes)
	if err != nil {
		return err
	}

	return c.JSON(FrameResponse{
		FrameID:          scan.FrameID.String(),
		LatencyMs:        scan.Latency.Milliseconds(),
		IdentifyResponse: newIdentifyResponse(scan.Result),
	})
}

// Stats GET /v1/frames/stats
func (h *FrameHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.scanner.Stats())
}
