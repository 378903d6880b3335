package domain

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinels survive WithError.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 422,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	// Pipeline errors

	ErrDegenerateEmbedding = &AppError{
		Code:       "DEGENERATE_EMBEDDING",
		Message:    "Embedding has zero norm and cannot be normalized",
		StatusCode: 422,
	}

	ErrDetectionUnavailable = &AppError{
		Code:       "DETECTION_UNAVAILABLE",
		Message:    "Face detection could not process this image",
		StatusCode: 422,
	}

	ErrNoFaceFound = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrEmbeddingExtraction = &AppError{
		Code:       "EMBEDDING_EXTRACTION_FAILED",
		Message:    "Could not extract embedding from face",
		StatusCode: 422,
	}

	// Gallery errors

	ErrGallerySync = &AppError{
		Code:       "GALLERY_SYNC_FAILED",
		Message:    "Gallery synchronization failed",
		StatusCode: 503,
	}

	ErrDuplicateLabel = &AppError{
		Code:       "DUPLICATE_LABEL",
		Message:    "An identity with this label is already registered",
		StatusCode: 409,
	}

	ErrRegistration = &AppError{
		Code:       "REGISTRATION_FAILED",
		Message:    "Identity registration failed",
		StatusCode: 422,
	}

	ErrIdentityNotFound = &AppError{
		Code:       "IDENTITY_NOT_FOUND",
		Message:    "Identity not found",
		StatusCode: 404,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded",
		StatusCode: 429,
	}
)
