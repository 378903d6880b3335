package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/vision"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
	// maxRegisterPhotos caps one registration request
	maxRegisterPhotos = 20
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// FaceService is the engine surface the face endpoints need
type FaceService interface {
	Identify(ctx context.Context, img image.Image) (domain.MatchResult, error)
	Register(ctx context.Context, req service.RegisterRequest) (*service.RegistrationResult, error)
	Delete(ctx context.Context, label string) error
	Identity(ctx context.Context, label string) (*domain.Identity, error)
}

// FaceHandler handles face-related requests
type FaceHandler struct {
	service   FaceService
	publisher ws.Publisher
	logger    *slog.Logger
}

// NewFaceHandler creates a new FaceHandler instance
func NewFaceHandler(service FaceService, publisher ws.Publisher, logger *slog.Logger) *FaceHandler {
	return &FaceHandler{
		service:   service,
		publisher: publisher,
		logger:    logger,
	}
}

// IdentifyResponse response for identify endpoint
type IdentifyResponse struct {
	Status  domain.MatchStatus `json:"status"`
	Matched bool               `json:"matched"`
	Label   string             `json:"label"`
	Score   float64            `json:"score"`
	Reason  string             `json:"reason,omitempty"`
}

// RegisterResponse response for register endpoint
type RegisterResponse struct {
	ID               string                 `json:"id"`
	Label            string                 `json:"label"`
	PhotosUsed       int                    `json:"photos_used"`
	PhotosSubmitted  int                    `json:"photos_submitted"`
	LowSampleWarning bool                   `json:"low_sample_warning"`
	Synced           bool                   `json:"synced"`
	Photos           []service.PhotoOutcome `json:"photos"`
}

// RegisterFailureResponse lists per-photo reasons when nothing could be registered
type RegisterFailureResponse struct {
	Error  fiber.Map              `json:"error"`
	Photos []service.PhotoOutcome `json:"photos"`
}

// Identify POST /v1/faces/identify - who is this face
func (h *FaceHandler) Identify(c *fiber.Ctx) error {
	imageBytes, err := extractAndValidateImage(c)
	if err != nil {
		return fmt.Errorf("identify face: %w", err)
	}

	img, err := decodeImage(imageBytes)
	if err != nil {
		return err
	}

	result, err := h.service.Identify(c.UserContext(), img)
	if err != nil {
		return err
	}

	return c.JSON(newIdentifyResponse(result))
}

// Register POST /v1/faces/register - register a new identity from one or more photos
func (h *FaceHandler) Register(c *fiber.Ctx) error {
	label := strings.TrimSpace(c.FormValue("label"))
	if label == "" {
		return domain.ErrValidationFailed.WithError(errors.New("label is required"))
	}

	metadata, err := parseMetadata(c.FormValue("metadata"))
	if err != nil {
		return err
	}

	photos, err := extractPhotos(c)
	if err != nil {
		return fmt.Errorf("register identity: %w", err)
	}

	result, err := h.service.Register(c.UserContext(), service.RegisterRequest{
		Label:    label,
		Metadata: metadata,
		Photos:   photos,
	})
	if err != nil {
		if result != nil && errors.Is(err, domain.ErrRegistration) {
			return c.Status(domain.ErrRegistration.StatusCode).JSON(RegisterFailureResponse{
				Error: fiber.Map{
					"code":    domain.ErrRegistration.Code,
					"message": domain.ErrRegistration.Message,
				},
				Photos: result.Photos,
			})
		}
		return err
	}

	h.publish(ws.EventIdentityRegistered, fiber.Map{
		"label":       label,
		"photos_used": result.Used,
	})

	return c.Status(fiber.StatusCreated).JSON(RegisterResponse{
		ID:               result.Identity.ID.String(),
		Label:            result.Identity.Label,
		PhotosUsed:       result.Used,
		PhotosSubmitted:  len(photos),
		LowSampleWarning: result.LowSampleWarning,
		Synced:           result.Synced,
		Photos:           result.Photos,
	})
}

// Delete DELETE /v1/faces/:label - remove an identity
func (h *FaceHandler) Delete(c *fiber.Ctx) error {
	label := strings.TrimSpace(c.Params("label"))
	if label == "" {
		return domain.ErrValidationFailed.WithError(errors.New("label is required"))
	}

	if err := h.service.Delete(c.UserContext(), label); err != nil {
		return err
	}

	h.publish(ws.EventIdentityDeleted, fiber.Map{"label": label})

	return c.SendStatus(fiber.StatusNoContent)
}

// Get GET /v1/faces/:label - stored record of an identity
func (h *FaceHandler) Get(c *fiber.Ctx) error {
	identity, err := h.service.Identity(c.UserContext(), c.Params("label"))
	if err != nil {
		return err
	}

	return c.JSON(identity)
}

func (h *FaceHandler) publish(eventType ws.EventType, data interface{}) {
	if h.publisher != nil {
		h.publisher.Publish(eventType, data)
	}
}

func newIdentifyResponse(result domain.MatchResult) IdentifyResponse {
	return IdentifyResponse{
		Status:  result.Status,
		Matched: result.Matched(),
		Label:   result.Label,
		Score:   result.Score,
		Reason:  result.Reason,
	}
}

func parseMetadata(raw string) (map[string]interface{}, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var metadata map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("metadata must be a JSON object: %w", err))
	}
	return metadata, nil
}

func decodeImage(data []byte) (image.Image, error) {
	img, err := vision.Decode(data)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	return img, nil
}

// extractAndValidateImage extracts and validates the image from the form
func extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	return readImageFile(file)
}

// extractPhotos reads every "images" part of a multipart registration
func extractPhotos(c *fiber.Ctx) ([][]byte, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	files := form.File["images"]
	if len(files) == 0 {
		return nil, domain.ErrValidationFailed.WithError(errors.New("at least one image is required"))
	}
	if len(files) > maxRegisterPhotos {
		return nil, domain.ErrValidationFailed.WithError(
			fmt.Errorf("at most %d images per registration", maxRegisterPhotos))
	}

	photos := make([][]byte, 0, len(files))
	for i, file := range files {
		data, err := readImageFile(file)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		photos = append(photos, data)
	}

	return photos, nil
}

func readImageFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > maxImageSize || file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image size %d out of range", file.Size))
	}

	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported content type %q", contentType))
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}
