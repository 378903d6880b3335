package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// IdentifyResponse represents the answer to an identify request
type IdentifyResponse struct {
	Status  string  `json:"status" example:"matched"`
	Matched bool    `json:"matched" example:"true"`
	Label   string  `json:"label" example:"alice"`
	Score   float64 `json:"score" example:"0.82"`
	Reason  string  `json:"reason,omitempty" example:""`
}

// PhotoOutcome reports what happened to one registration photo
type PhotoOutcome struct {
	Index  int    `json:"index" example:"0"`
	OK     bool   `json:"ok" example:"true"`
	Reason string `json:"reason,omitempty" example:"face detection confidence too low"`
}

// RegisterResponse represents a successful registration
type RegisterResponse struct {
	ID               string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Label            string         `json:"label" example:"alice"`
	PhotosUsed       int            `json:"photos_used" example:"3"`
	PhotosSubmitted  int            `json:"photos_submitted" example:"4"`
	LowSampleWarning bool           `json:"low_sample_warning" example:"false"`
	Synced           bool           `json:"synced" example:"true"`
	Photos           []PhotoOutcome `json:"photos"`
}

// IdentityResponse represents a stored identity record
type IdentityResponse struct {
	ID         string                 `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Label      string                 `json:"label" example:"alice"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	PhotoCount int                    `json:"photo_count" example:"3"`
	CreatedAt  string                 `json:"created_at" example:"2024-01-01T00:00:00Z"`
}

// SyncReport represents the outcome of a gallery rebuild
type SyncReport struct {
	Loaded     int    `json:"loaded" example:"120"`
	Skipped    int    `json:"skipped" example:"1"`
	DurationNs int64  `json:"duration_ns" example:"4200000"`
	SyncedAt   string `json:"synced_at" example:"2024-01-01T00:00:00Z"`
}

// IndexStats represents the live index
type IndexStats struct {
	Kind      string  `json:"kind" example:"flat"`
	Size      int     `json:"size" example:"120"`
	Dimension int     `json:"dimension" example:"512"`
	Threshold float64 `json:"threshold" example:"0.65"`
	BuiltAt   string  `json:"built_at" example:"2024-01-01T00:00:00Z"`
}

// GalleryStatsResponse combines index and store counts
type GalleryStatsResponse struct {
	Index    IndexStats  `json:"index"`
	Stored   int         `json:"stored" example:"121"`
	LastSync *SyncReport `json:"last_sync,omitempty"`
}

// Candidate is one ranked gallery entry
type Candidate struct {
	Label      string  `json:"label" example:"alice"`
	Similarity float64 `json:"similarity" example:"0.82"`
}

// NearestResponse lists top-k candidates
type NearestResponse struct {
	Source     string      `json:"source" example:"index"`
	Candidates []Candidate `json:"candidates"`
}

// FrameResponse represents the outcome of one live frame
type FrameResponse struct {
	FrameID   string  `json:"frame_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	LatencyMs int64   `json:"latency_ms" example:"38"`
	Status    string  `json:"status" example:"skipped"`
	Matched   bool    `json:"matched" example:"false"`
	Label     string  `json:"label" example:"unknown"`
	Score     float64 `json:"score" example:"0"`
	Reason    string  `json:"reason,omitempty" example:"busy"`
}

// ScanStats represents live scanner counters
type ScanStats struct {
	Submitted int64 `json:"submitted" example:"300"`
	Processed int64 `json:"processed" example:"150"`
	Skipped   int64 `json:"skipped" example:"150"`
	Matched   int64 `json:"matched" example:"12"`
	Failed    int64 `json:"failed" example:"0"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code" example:"VALIDATION_FAILED"`
	Message string `json:"message" example:"Request validation failed"`
}

// EmptyResponse represents no content response (204)
type EmptyResponse struct{}

var (
	errValidation = response.New(ErrorResponse{Code: "VALIDATION_FAILED", Message: "Request validation failed"}, "422", "Unprocessable Entity")
	errImage      = response.New(ErrorResponse{Code: "INVALID_IMAGE", Message: "Invalid image format or corrupted file"}, "422", "Unprocessable Entity")
	errRateLimit  = response.New(ErrorResponse{Code: "RATE_LIMIT_EXCEEDED", Message: "Rate limit exceeded"}, "429", "Too Many Requests")
	errInternal   = response.New(ErrorResponse{Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}, "500", "Internal Server Error")
	errSync       = response.New(ErrorResponse{Code: "GALLERY_SYNC_FAILED", Message: "Gallery synchronization failed"}, "503", "Service Unavailable")
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Facewatch API",
		Version:     "v1.0.0",
		Description: "Face identification against a registered gallery: registration, 1:N identify, live frame scanning and gallery maintenance",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	multipart := []mime.MIME{mime.MIME("multipart/form-data")}
	jsonOnly := []mime.MIME{mime.JSON}

	endpoints := []*endpoint.EndPoint{
		// POST /v1/faces/identify
		endpoint.New(
			endpoint.POST,
			"/faces/identify",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Identify a face"),
			endpoint.WithDescription("Multipart field `image`. Returns status matched or unknown with the best cosine score, or no_face and extraction_failed with a reason."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentifyResponse{}, "200", "Identification completed"),
			}),
			endpoint.WithErrors([]response.Response{
				errValidation,
				errImage,
				response.New(ErrorResponse{Code: "DETECTION_UNAVAILABLE", Message: "Face detection could not process this image"}, "422", "Unprocessable Entity"),
				errRateLimit,
				errInternal,
			}),
		),

		// POST /v1/faces/register
		endpoint.New(
			endpoint.POST,
			"/faces/register",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Register an identity"),
			endpoint.WithDescription("Multipart fields `label`, optional `metadata` (JSON object) and one or more `images`. Photos without a usable face are reported and skipped; the remaining embeddings are averaged."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(RegisterResponse{}, "201", "Identity registered"),
			}),
			endpoint.WithErrors([]response.Response{
				errValidation,
				errImage,
				response.New(ErrorResponse{Code: "DUPLICATE_LABEL", Message: "An identity with this label is already registered"}, "409", "Conflict"),
				response.New(ErrorResponse{Code: "REGISTRATION_FAILED", Message: "Identity registration failed"}, "422", "Unprocessable Entity"),
				errRateLimit,
				errInternal,
			}),
		),

		// GET /v1/faces/:label
		endpoint.New(
			endpoint.GET,
			"/faces/{label}",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Get an identity"),
			endpoint.WithDescription("Returns the stored record of an identity, metadata included"),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithParams(
				parameter.StrParam("label", parameter.Path, parameter.WithDescription("Identity label")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IdentityResponse{}, "200", "OK"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "IDENTITY_NOT_FOUND", Message: "Identity not found"}, "404", "Not Found"),
				errRateLimit,
				errInternal,
			}),
		),

		// DELETE /v1/faces/:label
		endpoint.New(
			endpoint.DELETE,
			"/faces/{label}",
			endpoint.WithTags("Faces"),
			endpoint.WithSummary("Delete an identity"),
			endpoint.WithDescription("Removes the identity from the store and rebuilds the index"),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithParams(
				parameter.StrParam("label", parameter.Path, parameter.WithDescription("Identity label")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EmptyResponse{}, "204", "Identity deleted"),
			}),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "IDENTITY_NOT_FOUND", Message: "Identity not found"}, "404", "Not Found"),
				errSync,
				errInternal,
			}),
		),

		// POST /v1/gallery/refresh
		endpoint.New(
			endpoint.POST,
			"/gallery/refresh",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("Rebuild the index"),
			endpoint.WithDescription("Reloads every stored embedding and atomically swaps the in-memory index"),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SyncReport{}, "200", "Gallery synchronized"),
			}),
			endpoint.WithErrors([]response.Response{
				errSync,
				errInternal,
			}),
		),

		// GET /v1/gallery/stats
		endpoint.New(
			endpoint.GET,
			"/gallery/stats",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("Gallery statistics"),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(GalleryStatsResponse{}, "200", "Statistics retrieved"),
			}),
			endpoint.WithErrors([]response.Response{
				errInternal,
			}),
		),

		// POST /v1/gallery/nearest
		endpoint.New(
			endpoint.POST,
			"/gallery/nearest",
			endpoint.WithTags("Gallery"),
			endpoint.WithSummary("Top-k nearest identities"),
			endpoint.WithDescription("Multipart fields `image`, optional `k` (1-50, default 5) and `source` (index or store). Ranks without applying the match threshold."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(NearestResponse{}, "200", "Candidates ranked"),
			}),
			endpoint.WithErrors([]response.Response{
				errValidation,
				errImage,
				response.New(ErrorResponse{Code: "NO_FACE_DETECTED", Message: "No face detected in the image"}, "422", "Unprocessable Entity"),
				errInternal,
			}),
		),

		// POST /v1/frames
		endpoint.New(
			endpoint.POST,
			"/frames",
			endpoint.WithTags("Scan"),
			endpoint.WithSummary("Submit a live frame"),
			endpoint.WithDescription("Multipart field `image`. Frames arriving while another is in flight or above the frame rate limit are answered with status skipped."),
			endpoint.WithConsume(multipart),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(FrameResponse{}, "200", "Frame processed or skipped"),
			}),
			endpoint.WithErrors([]response.Response{
				errValidation,
				errImage,
				errInternal,
			}),
		),

		// GET /v1/frames/stats
		endpoint.New(
			endpoint.GET,
			"/frames/stats",
			endpoint.WithTags("Scan"),
			endpoint.WithSummary("Live scanner counters"),
			endpoint.WithProduce(jsonOnly),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ScanStats{}, "200", "Counters retrieved"),
			}),
		),

		// GET /v1/ws
		endpoint.New(
			endpoint.GET,
			"/ws",
			endpoint.WithTags("Scan"),
			endpoint.WithSummary("Event stream"),
			endpoint.WithDescription("Websocket stream of gallery and match events. Filter with ?events=identity.matched,frame.skipped"),
			endpoint.WithParams(
				parameter.StrParam("events", parameter.Query, parameter.WithDescription("Comma separated event types to subscribe to (default: all)")),
			),
			endpoint.WithErrors([]response.Response{
				response.New(ErrorResponse{Code: "HTTP_ERROR", Message: "Upgrade Required"}, "426", "Upgrade Required"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
