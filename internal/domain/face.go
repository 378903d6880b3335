package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnknownLabel is reported when the best gallery match falls below the threshold
// or the gallery is empty.
const UnknownLabel = "unknown"

// Identity is a registered gallery entry.
type Identity struct {
	ID         uuid.UUID              `json:"id"`
	Label      string                 `json:"label"`
	Embedding  []float32              `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	PhotoCount int                    `json:"photo_count"`
	CreatedAt  time.Time              `json:"created_at"`
}

// MatchStatus distinguishes "no face present" from "face present but unmatched".
type MatchStatus string

const (
	MatchStatusNoFace  MatchStatus = "no_face"
	MatchStatusUnknown MatchStatus = "unknown"
	MatchStatusMatched MatchStatus = "matched"
	// MatchStatusExtractionFailed means a face was found but yielded no usable embedding.
	MatchStatusExtractionFailed MatchStatus = "extraction_failed"
	// MatchStatusSkipped is only produced by the live scanner when a frame is dropped.
	MatchStatusSkipped MatchStatus = "skipped"
)

// MatchResult is the answer to "who is this face".
type MatchResult struct {
	Status MatchStatus `json:"status"`
	Label  string      `json:"label"`
	Score  float64     `json:"score"`
	// Reason is set when Status is no_face or extraction_failed, e.g. "confidence too low".
	Reason string `json:"reason,omitempty"`
}

// Matched reports whether the result names a known identity.
func (r MatchResult) Matched() bool {
	return r.Status == MatchStatusMatched
}

// Candidate is a ranked gallery entry returned by top-k lookups.
type Candidate struct {
	Label      string  `json:"label"`
	Similarity float64 `json:"similarity"`
}
