package provider

import (
	"context"
	"image"
)

// Detector finds candidate face regions in a decoded image.
type Detector interface {
	// DetectFaces returns regions in source-image pixel coordinates, in the
	// order the underlying model reported them. An empty slice is not an error.
	DetectFaces(ctx context.Context, img image.Image) ([]DetectedFace, error)
}

// Embedder turns a tight face crop into a raw embedding.
type Embedder interface {
	// Embed returns one raw (not normalized) vector of Dimension() floats.
	Embed(ctx context.Context, face image.Image) ([]float32, error)

	// Dimension is the fixed embedding length produced by the model
	Dimension() int
}

// DetectedFace represents a detected face in the image
type DetectedFace struct {
	BoundingBox BoundingBox `json:"bounding_box"`
	Confidence  float64     `json:"confidence"`
}

// BoundingBox represents the face area in the image, in pixels.
// X and Y may be negative when the detector box crosses the image edge.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area is width × height.
func (b BoundingBox) Area() int {
	return b.Width * b.Height
}
