package face

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/config"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/deepface"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider/rekognition"
)

// ProviderType defines supported detection / embedding backends
type ProviderType string

const (
	// ProviderTypeDeepFace is the DeepFace HTTP service (detector and embedder)
	ProviderTypeDeepFace ProviderType = "deepface"
	// ProviderTypeRekognition is AWS Rekognition (detector only)
	ProviderTypeRekognition ProviderType = "rekognition"
	// ProviderTypeMock is deterministic and offline, for dev/test
	ProviderTypeMock ProviderType = "mock"
)

// Capabilities bundles the two model capabilities injected into the engine
type Capabilities struct {
	Detector provider.Detector
	Embedder provider.Embedder
}

// NewCapabilities builds the detector and embedder selected by configuration.
// When both are DeepFace they share one client.
//
// Environment variables:
//   - DETECTOR_TYPE: "deepface", "rekognition" or "mock" (default: "deepface")
//   - PROVIDER_TYPE: embedder, "deepface" or "mock" (default: "deepface")
//   - DEEPFACE_URL, DEEPFACE_MODEL, DEEPFACE_DETECTOR, EMBEDDING_DIM
//   - AWS_REGION and the AWS SDK credential chain for Rekognition
func NewCapabilities(ctx context.Context, cfg *config.Config) (*Capabilities, error) {
	var df *deepface.Provider
	deepFace := func() *deepface.Provider {
		if df == nil {
			df = createDeepFaceProvider(cfg)
		}
		return df
	}

	caps := &Capabilities{}

	switch ProviderType(cfg.DetectorType) {
	case ProviderTypeDeepFace, "":
		caps.Detector = deepFace()
	case ProviderTypeRekognition:
		det, err := rekognition.NewDetectorFromConfig(ctx, rekognition.Config{Region: cfg.AWSRegion})
		if err != nil {
			return nil, fmt.Errorf("create rekognition detector: %w", err)
		}
		caps.Detector = det
	case ProviderTypeMock:
		caps.Detector = mock.New()
	default:
		return nil, fmt.Errorf("unknown detector type: %s (supported: %s, %s, %s)",
			cfg.DetectorType, ProviderTypeDeepFace, ProviderTypeRekognition, ProviderTypeMock)
	}

	switch ProviderType(cfg.ProviderType) {
	case ProviderTypeDeepFace, "":
		caps.Embedder = deepFace()
	case ProviderTypeMock:
		caps.Embedder = mock.New().WithDimension(embeddingDim(cfg))
	default:
		return nil, fmt.Errorf("unknown provider type: %s (supported: %s, %s)",
			cfg.ProviderType, ProviderTypeDeepFace, ProviderTypeMock)
	}

	return caps, nil
}

// createDeepFaceProvider creates a DeepFace provider instance
func createDeepFaceProvider(cfg *config.Config) *deepface.Provider {
	deepfaceConfig := deepface.DefaultConfig()

	if cfg.DeepFaceURL != "" {
		deepfaceConfig.BaseURL = cfg.DeepFaceURL
	}
	if cfg.DeepFaceModel != "" {
		deepfaceConfig.Model = cfg.DeepFaceModel
	}
	if cfg.DeepFaceDetector != "" {
		deepfaceConfig.Detector = cfg.DeepFaceDetector
	}
	deepfaceConfig.Dimension = embeddingDim(cfg)

	return deepface.NewProvider(deepfaceConfig)
}

func embeddingDim(cfg *config.Config) int {
	if cfg.EmbeddingDim > 0 {
		return cfg.EmbeddingDim
	}
	return deepface.DefaultConfig().Dimension
}
