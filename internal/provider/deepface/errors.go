package deepface

import "errors"

// Transport failures after retries
var ErrDeepFaceUnavailable = errors.New("deepface service unavailable")

// Problems with a response that did arrive. Provider wraps these in
// domain.ErrDetectionUnavailable or domain.ErrEmbeddingExtraction.
var (
	ErrInvalidResponse   = errors.New("invalid response from deepface")
	ErrNoFaceInResponse  = errors.New("no face data in deepface response")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
