package mock

import (
	"context"
	"crypto/sha256"
	"image"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

const (
	defaultDimension = 512
	// minFaceSide is the smallest frame side that yields a detection
	minFaceSide = 16
)

// Provider implementa provider.Detector e provider.Embedder para testes e desenvolvimento
type Provider struct {
	dimension  int
	confidence float64
}

// New cria uma nova instância do MockProvider
func New() *Provider {
	return &Provider{dimension: defaultDimension, confidence: 0.99}
}

// WithDimension returns a copy producing embeddings of length dim
func (p *Provider) WithDimension(dim int) *Provider {
	cp := *p
	cp.dimension = dim
	return &cp
}

// WithConfidence returns a copy reporting the given detection confidence
func (p *Provider) WithConfidence(confidence float64) *Provider {
	cp := *p
	cp.confidence = confidence
	return &cp
}

// DetectFaces simula detecção: one face covering the central 80% of the frame
func (p *Provider) DetectFaces(ctx context.Context, img image.Image) ([]provider.DetectedFace, error) {
	if img == nil {
		return nil, domain.ErrDetectionUnavailable
	}

	b := img.Bounds()
	if b.Dx() < minFaceSide || b.Dy() < minFaceSide {
		return []provider.DetectedFace{}, nil
	}

	return []provider.DetectedFace{
		{
			BoundingBox: provider.BoundingBox{
				X:      b.Min.X + b.Dx()/10,
				Y:      b.Min.Y + b.Dy()/10,
				Width:  b.Dx() * 8 / 10,
				Height: b.Dy() * 8 / 10,
			},
			Confidence: p.confidence,
		},
	}, nil
}

// Embed gera embedding determinístico baseado no hash dos pixels
func (p *Provider) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	if face == nil || face.Bounds().Empty() {
		return nil, domain.ErrEmbeddingExtraction
	}

	return generateEmbedding(face, p.dimension), nil
}

// Dimension is the embedding length
func (p *Provider) Dimension() int {
	return p.dimension
}

// generateEmbedding maps the pixel hash onto [-1,1]; the result is left raw
func generateEmbedding(img image.Image, dim int) []float32 {
	h := sha256.New()
	b := img.Bounds()
	px := make([]byte, 0, 4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			px = append(px[:0], byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
			_, _ = h.Write(px)
		}
	}
	hash := h.Sum(nil)

	embedding := make([]float32, dim)
	for i := range embedding {
		embedding[i] = (float32(hash[i%len(hash)])/255.0)*2 - 1
	}

	return embedding
}

var (
	_ provider.Detector = (*Provider)(nil)
	_ provider.Embedder = (*Provider)(nil)
)
