package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

// Default detection confidence thresholds
const (
	RegisterThreshold = 0.90
	ScanThreshold     = 0.95
)

var (
	// ErrNoDetections is wrapped in domain.ErrNoFaceFound when the detector reports nothing
	ErrNoDetections = errors.New("no face detected")

	// ErrLowConfidence is wrapped in domain.ErrNoFaceFound when every region is below threshold
	ErrLowConfidence = errors.New("face detection confidence too low")

	// ErrRegionOutside is wrapped in domain.ErrNoFaceFound when the clamped box is empty
	ErrRegionOutside = errors.New("face region lies outside the image")
)

// Face is the canonical crop chosen from a frame
type Face struct {
	Crop   *image.RGBA
	Region provider.DetectedFace
	// Box is Region.BoundingBox after clamping to the image
	Box image.Rectangle
}

// Extractor reduces a frame to at most one face crop
type Extractor struct {
	detector  provider.Detector
	threshold float64
}

// NewExtractor creates an extractor keeping detections with confidence >= threshold
func NewExtractor(detector provider.Detector, threshold float64) *Extractor {
	return &Extractor{detector: detector, threshold: threshold}
}

// Threshold is the minimum detection confidence
func (e *Extractor) Threshold() float64 {
	return e.threshold
}

// Extract detects faces in img and crops the largest confident one.
func (e *Extractor) Extract(ctx context.Context, img image.Image) (*Face, error) {
	faces, err := e.detector.DetectFaces(ctx, img)
	if err != nil {
		var appErr *domain.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, domain.ErrDetectionUnavailable.WithError(err)
	}

	region, err := SelectFace(faces, e.threshold)
	if err != nil {
		return nil, err
	}

	box := ClampBox(region.BoundingBox, img.Bounds())
	if box.Empty() {
		return nil, domain.ErrNoFaceFound.WithError(ErrRegionOutside)
	}

	return &Face{
		Crop:   Crop(img, box),
		Region: region,
		Box:    box,
	}, nil
}

// SelectFace keeps regions with Confidence >= threshold and returns the largest.
// Equal areas resolve to the earliest region in detector order.
func SelectFace(faces []provider.DetectedFace, threshold float64) (provider.DetectedFace, error) {
	if len(faces) == 0 {
		return provider.DetectedFace{}, domain.ErrNoFaceFound.WithError(ErrNoDetections)
	}

	best := -1
	bestConfidence := 0.0
	for i, f := range faces {
		bestConfidence = max(bestConfidence, f.Confidence)
		if f.Confidence < threshold {
			continue
		}
		if best < 0 || f.BoundingBox.Area() > faces[best].BoundingBox.Area() {
			best = i
		}
	}

	if best < 0 {
		return provider.DetectedFace{}, domain.ErrNoFaceFound.WithError(
			fmt.Errorf("%w: best %.2f below %.2f", ErrLowConfidence, bestConfidence, threshold))
	}

	return faces[best], nil
}

// ClampBox converts a detector box to a rectangle inside bounds.
// A negative origin is moved to the image edge keeping width and height;
// only the far edge is cut at the image size.
func ClampBox(b provider.BoundingBox, bounds image.Rectangle) image.Rectangle {
	x := max(b.X, bounds.Min.X)
	y := max(b.Y, bounds.Min.Y)
	return image.Rect(x, y, x+b.Width, y+b.Height).Intersect(bounds)
}

// Crop copies the rect region of img into a new RGBA image anchored at (0,0)
func Crop(img image.Image, rect image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// Reason extracts the human-readable cause from an extraction error
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLowConfidence):
		return ErrLowConfidence.Error()
	case errors.Is(err, ErrNoDetections):
		return ErrNoDetections.Error()
	case errors.Is(err, ErrRegionOutside):
		return ErrRegionOutside.Error()
	}

	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
