package scanner

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/vision"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

const (
	// MaxFrameSide bounds the longest side of a frame before detection
	MaxFrameSide = 1280

	ReasonBusy        = "busy"
	ReasonRateLimited = "rate_limited"
	ReasonTimeout     = "timeout"
	ReasonError       = "error"
)

// Identifier is the part of the engine a live scan needs
type Identifier interface {
	Identify(ctx context.Context, img image.Image) (domain.MatchResult, error)
}

type Config struct {
	MaxFPS       float64
	FrameTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxFPS:       5,
		FrameTimeout: 2 * time.Second,
	}
}

// ScanResult is the outcome of one submitted frame
type ScanResult struct {
	FrameID uuid.UUID          `json:"frame_id"`
	Result  domain.MatchResult `json:"result"`
	Latency time.Duration      `json:"latency_ns"`
	At      time.Time          `json:"at"`
}

type Stats struct {
	Submitted int64 `json:"submitted"`
	Processed int64 `json:"processed"`
	Skipped   int64 `json:"skipped"`
	Matched   int64 `json:"matched"`
	Failed    int64 `json:"failed"`
}

// Scanner processes live frames one at a time. A frame that arrives while
// another is in flight, or faster than the limiter allows, is dropped and
// answered with status skipped instead of being queued.
type Scanner struct {
	engine    Identifier
	publisher ws.Publisher
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    *slog.Logger

	inFlight atomic.Bool

	submitted atomic.Int64
	processed atomic.Int64
	skipped   atomic.Int64
	matched   atomic.Int64
	failed    atomic.Int64
}

func New(engine Identifier, publisher ws.Publisher, logger *slog.Logger, cfg Config) *Scanner {
	limit := rate.Inf
	if cfg.MaxFPS > 0 {
		limit = rate.Limit(cfg.MaxFPS)
	}

	return &Scanner{
		engine:    engine,
		publisher: publisher,
		limiter:   rate.NewLimiter(limit, 1),
		timeout:   cfg.FrameTimeout,
		logger:    logger,
	}
}

// Scan decodes and identifies one encoded frame
func (s *Scanner) Scan(ctx context.Context, frame []byte) (*ScanResult, error) {
	return s.run(ctx, func() (image.Image, error) {
		return vision.Decode(frame)
	})
}

// ScanImage identifies an already decoded frame
func (s *Scanner) ScanImage(ctx context.Context, img image.Image) (*ScanResult, error) {
	return s.run(ctx, func() (image.Image, error) {
		return img, nil
	})
}

func (s *Scanner) run(ctx context.Context, load func() (image.Image, error)) (*ScanResult, error) {
	s.submitted.Add(1)
	start := time.Now()
	frameID := uuid.New()

	if !s.inFlight.CompareAndSwap(false, true) {
		return s.skip(frameID, start, ReasonBusy), nil
	}
	defer s.inFlight.Store(false)

	if !s.limiter.Allow() {
		return s.skip(frameID, start, ReasonRateLimited), nil
	}

	img, err := load()
	if err != nil {
		s.failed.Add(1)
		return nil, err
	}
	img = vision.Downscale(img, MaxFrameSide)

	frameCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		frameCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.engine.Identify(frameCtx, img)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(frameCtx.Err(), context.DeadlineExceeded) {
			return s.skip(frameID, start, ReasonTimeout), nil
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		s.failed.Add(1)
		s.logger.Warn("frame identification failed", "frame_id", frameID, "error", err)
		return s.skip(frameID, start, ReasonError), nil
	}

	s.processed.Add(1)
	if result.Matched() {
		s.matched.Add(1)
	}

	scan := &ScanResult{
		FrameID: frameID,
		Result:  result,
		Latency: time.Since(start),
		At:      start,
	}
	s.publish(ws.EventMatchResult, scan)
	if result.Matched() {
		s.publish(ws.EventIdentityMatched, scan)
	}

	return scan, nil
}

func (s *Scanner) skip(frameID uuid.UUID, start time.Time, reason string) *ScanResult {
	s.skipped.Add(1)

	scan := &ScanResult{
		FrameID: frameID,
		Result: domain.MatchResult{
			Status: domain.MatchStatusSkipped,
			Label:  domain.UnknownLabel,
			Reason: reason,
		},
		Latency: time.Since(start),
		At:      start,
	}
	s.publish(ws.EventFrameSkipped, scan)

	return scan
}

func (s *Scanner) publish(eventType ws.EventType, scan *ScanResult) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(eventType, scan)
}

func (s *Scanner) Stats() Stats {
	return Stats{
		Submitted: s.submitted.Load(),
		Processed: s.processed.Load(),
		Skipped:   s.skipped.Load(),
		Matched:   s.matched.Load(),
		Failed:    s.failed.Load(),
	}
}
