package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

const (
	// detectorSkip disables detection; the crop is already a tight face region
	detectorSkip = "skip"
	jpegQuality  = 95
)

// Provider implements provider.Detector and provider.Embedder using DeepFace API
type Provider struct {
	client *Client
	config Config
}

// NewProvider creates a new DeepFace provider
func NewProvider(config Config) *Provider {
	return &Provider{
		client: NewClient(config),
		config: config,
	}
}

// DetectFaces runs the configured detector backend and reports every facial area.
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.DetectedFace, error) {
	payload, err := encodeImage(img)
	if err != nil {
		return nil, domain.ErrDetectionUnavailable.WithError(err)
	}

	resp, err := p.client.Represent(ctx, RepresentRequest{
		Img:             payload,
		DetectorBackend: p.config.Detector,
		// a frame without faces must come back as an empty list, not a 400
		EnforceDetection: false,
		Align:            true,
	})
	if err != nil {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("detect faces: %w", err))
	}

	faces := make([]provider.DetectedFace, 0, len(resp.Results))
	for _, result := range resp.Results {
		// with enforce_detection off DeepFace returns the whole frame at confidence 0
		if result.FaceConfidence <= 0 {
			continue
		}
		faces = append(faces, provider.DetectedFace{
			BoundingBox: provider.BoundingBox{
				X:      result.FacialArea.X,
				Y:      result.FacialArea.Y,
				Width:  result.FacialArea.W,
				Height: result.FacialArea.H,
			},
			Confidence: result.FaceConfidence,
		})
	}

	return faces, nil
}

// Embed extracts the raw embedding of an already cropped face.
func (p *Provider) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	payload, err := encodeImage(face)
	if err != nil {
		return nil, domain.ErrEmbeddingExtraction.WithError(err)
	}

	resp, err := p.client.Represent(ctx, RepresentRequest{
		Img:              payload,
		DetectorBackend:  detectorSkip,
		EnforceDetection: false,
	})
	if err != nil {
		return nil, domain.ErrEmbeddingExtraction.WithError(fmt.Errorf("represent: %w", err))
	}

	if len(resp.Results) == 0 || len(resp.Results[0].Embedding) == 0 {
		return nil, domain.ErrEmbeddingExtraction.WithError(ErrNoFaceInResponse)
	}

	raw := resp.Results[0].Embedding
	if p.config.Dimension > 0 && len(raw) != p.config.Dimension {
		return nil, domain.ErrEmbeddingExtraction.WithError(
			fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(raw), p.config.Dimension))
	}

	embedding := make([]float32, len(raw))
	for i, v := range raw {
		embedding[i] = float32(v)
	}

	return embedding, nil
}

// Dimension is the configured embedding length
func (p *Provider) Dimension() int {
	return p.config.Dimension
}

// encodeImage renders img as a base64 JPEG data URI accepted by DeepFace
func encodeImage(img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", fmt.Errorf("empty image")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Ensure Provider implements the capability interfaces
var (
	_ provider.Detector = (*Provider)(nil)
	_ provider.Embedder = (*Provider)(nil)
)
