package rekognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

// Detector implements provider.Detector using AWS Rekognition DetectFaces.
// Rekognition reports boxes as ratios of the frame and confidence as a percentage;
// both are converted to the pixel / [0,1] conventions of the pipeline.
type Detector struct {
	api    DetectFacesAPI
	config Config
}

var _ provider.Detector = (*Detector)(nil)

// NewDetector wraps an existing API client
func NewDetector(api DetectFacesAPI, cfg Config) *Detector {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultConfig().MaxImageBytes
	}
	return &Detector{api: api, config: cfg}
}

// NewDetectorFromConfig builds the AWS client from the default credential chain
func NewDetectorFromConfig(ctx context.Context, cfg Config) (*Detector, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}
	return NewDetector(client, cfg), nil
}

// DetectFaces detects faces in an image using AWS Rekognition DetectFaces API
// Returns an empty slice if no faces are detected (not an error)
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]provider.DetectedFace, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("empty image"))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("encode jpeg: %w", err))
	}
	if buf.Len() > d.config.MaxImageBytes {
		return nil, domain.ErrDetectionUnavailable.WithError(
			fmt.Errorf("%w: %d bytes, maximum %d", ErrImageTooLarge, buf.Len(), d.config.MaxImageBytes))
	}

	output, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: buf.Bytes()},
		Attributes: []types.Attribute{types.AttributeDefault},
	})
	if err != nil {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("detect faces: %w", parseAPIError(err)))
	}

	bounds := img.Bounds()
	faces := make([]provider.DetectedFace, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil {
			continue
		}
		faces = append(faces, provider.DetectedFace{
			BoundingBox: toPixels(detail.BoundingBox, bounds),
			Confidence:  float64(deref(detail.Confidence)) / 100,
		})
	}

	return faces, nil
}

// toPixels converts a ratio box into source-image pixel coordinates.
// Left/Top may be negative for faces cut by the frame edge; they are kept as is.
func toPixels(box *types.BoundingBox, bounds image.Rectangle) provider.BoundingBox {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	return provider.BoundingBox{
		X:      bounds.Min.X + int(math.Round(float64(deref(box.Left))*w)),
		Y:      bounds.Min.Y + int(math.Round(float64(deref(box.Top))*h)),
		Width:  int(math.Round(float64(deref(box.Width)) * w)),
		Height: int(math.Round(float64(deref(box.Height)) * h)),
	}
}

func deref(v *float32) float32 {
	if v == nil {
		return 0
	}
	return *v
}
