package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/embedding"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/gallery"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/vision"
)

// MinRecommendedPhotos is the usable-photo count below which callers should warn the operator
const MinRecommendedPhotos = 3

// RegisterRequest carries one identity and its encoded photos
type RegisterRequest struct {
	Label    string
	Metadata map[string]interface{}
	Photos   [][]byte
}

// PhotoOutcome reports what happened to one submitted photo
type PhotoOutcome struct {
	Index  int    `json:"index"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// RegistrationResult is the net outcome of a multi-photo registration
type RegistrationResult struct {
	Identity         *domain.Identity    `json:"identity"`
	Photos           []PhotoOutcome      `json:"photos"`
	Used             int                 `json:"used"`
	LowSampleWarning bool                `json:"low_sample_warning"`
	Synced           bool                `json:"synced"`
	Sync             *gallery.SyncReport `json:"sync,omitempty"`
}

// Register embeds every photo independently, averages the survivors, persists the
// identity and resyncs the index. Failing photos are reported, not fatal, unless
// none survive.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegistrationResult, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, domain.ErrRegistration.WithError(fmt.Errorf("label is required"))
	}
	if len(req.Photos) == 0 {
		return nil, domain.ErrRegistration.WithError(fmt.Errorf("at least one photo is required"))
	}

	outcomes := make([]PhotoOutcome, len(req.Photos))
	vectors := make([][]float32, len(req.Photos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, photo := range req.Photos {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			vec, err := e.describePhoto(gctx, photo)
			// a cancelled caller aborts the whole registration, not just this photo
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			outcomes[i] = PhotoOutcome{Index: i, OK: err == nil, Err: err}
			if err != nil {
				outcomes[i].Reason = vision.Reason(err)
				e.logger.Info("registration photo rejected",
					"label", label,
					"photo", i,
					"error", err,
				)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usable := make([][]float32, 0, len(vectors))
	for _, v := range vectors {
		if v != nil {
			usable = append(usable, v)
		}
	}

	result := &RegistrationResult{
		Photos:           outcomes,
		Used:             len(usable),
		LowSampleWarning: len(usable) < MinRecommendedPhotos,
	}

	if len(usable) == 0 {
		return result, domain.ErrRegistration.WithError(
			fmt.Errorf("no usable face in any of %d photos", len(req.Photos)))
	}

	mean, err := embedding.Mean(usable)
	if err != nil {
		return result, domain.ErrRegistration.WithError(err)
	}
	centroid, err := embedding.Normalize(mean)
	if err != nil {
		return result, domain.ErrRegistration.WithError(err)
	}

	identity := &domain.Identity{
		Label:      label,
		Embedding:  centroid,
		Metadata:   req.Metadata,
		PhotoCount: len(usable),
	}

	if err := e.store.Insert(ctx, identity, embedding.Encode(centroid)); err != nil {
		return result, err
	}
	result.Identity = identity

	e.logger.Info("identity registered",
		"label", label,
		"photos_used", len(usable),
		"photos_submitted", len(req.Photos),
	)

	// the row is committed; a failed resync is picked up by the next one
	report, err := e.sync.Sync(ctx)
	if err != nil {
		e.logger.Error("resync after registration failed", "label", label, "error", err)
		return result, nil
	}
	result.Synced = true
	result.Sync = &report

	return result, nil
}

func (e *Engine) describePhoto(ctx context.Context, photo []byte) ([]float32, error) {
	img, err := vision.Decode(photo)
	if err != nil {
		return nil, err
	}
	return e.describe(ctx, img, e.register)
}
