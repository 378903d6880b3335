package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/embedding"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/gallery"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/index"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

type MockGalleryStore struct {
	mock.Mock
}

func (m *MockGalleryStore) Insert(ctx context.Context, identity *domain.Identity, raw []byte) error {
	args := m.Called(ctx, identity, raw)
	return args.Error(0)
}

func (m *MockGalleryStore) Delete(ctx context.Context, label string) error {
	args := m.Called(ctx, label)
	return args.Error(0)
}

func (m *MockGalleryStore) GetByLabel(ctx context.Context, label string) (*domain.Identity, error) {
	args := m.Called(ctx, label)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Identity), args.Error(1)
}

func (m *MockGalleryStore) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockGalleryStore) NearestInStore(ctx context.Context, query []float32, limit int) ([]domain.Candidate, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Candidate), args.Error(1)
}

type MockSynchronizer struct {
	mock.Mock
}

func (m *MockSynchronizer) Sync(ctx context.Context) (gallery.SyncReport, error) {
	args := m.Called(ctx)
	return args.Get(0).(gallery.SyncReport), args.Error(1)
}

func (m *MockSynchronizer) LastReport() (gallery.SyncReport, bool) {
	args := m.Called()
	return args.Get(0).(gallery.SyncReport), args.Bool(1)
}

// Photo colours drive the fakes below: the red channel selects the behaviour.
const (
	redAxisX     = 1
	redAxisY     = 2
	redEmbedFail = 3
	redZeroVec   = 4
	redNoFace    = 5
	redLowConf   = 6
)

// fakeDetector reports one face covering the whole frame
type fakeDetector struct{}

func (fakeDetector) DetectFaces(ctx context.Context, img image.Image) ([]provider.DetectedFace, error) {
	r, _, _, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	b := img.Bounds()
	box := provider.BoundingBox{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}

	switch uint8(r >> 8) {
	case redNoFace:
		return []provider.DetectedFace{}, nil
	case redLowConf:
		return []provider.DetectedFace{{BoundingBox: box, Confidence: 0.5}}, nil
	}
	return []provider.DetectedFace{{BoundingBox: box, Confidence: 0.99}}, nil
}

// fakeEmbedder maps the crop colour to a fixed vector
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	r, _, _, _ := face.At(0, 0).RGBA()
	switch uint8(r >> 8) {
	case redAxisX:
		return []float32{2, 0}, nil
	case redAxisY:
		return []float32{0, 3}, nil
	case redEmbedFail:
		return nil, errors.New("model exploded")
	case redZeroVec:
		return []float32{0, 0}, nil
	}
	return []float32{1, 1}, nil
}

func (f *fakeEmbedder) Dimension() int { return 2 }

func frame(red uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.SetRGBA(x, y, color.RGBA{R: red, A: 255})
		}
	}
	return img
}

func photo(t *testing.T, red uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, frame(red)))
	return buf.Bytes()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type engineFixture struct {
	engine   *Engine
	store    *MockGalleryStore
	sync     *MockSynchronizer
	index    *index.Flat
	embedder *fakeEmbedder
}

func newFixture() *engineFixture {
	f := &engineFixture{
		store:    &MockGalleryStore{},
		sync:     &MockSynchronizer{},
		index:    index.NewFlat(index.DefaultThreshold),
		embedder: &fakeEmbedder{},
	}
	f.engine = NewEngine(fakeDetector{}, f.embedder, f.index, f.sync, f.store, discardLogger(), DefaultEngineConfig())
	return f
}

func TestEngine_Identify(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.index.Rebuild([]index.Entry{
		{Label: "alice", Embedding: []float32{1, 0}},
	}))

	tests := []struct {
		name       string
		img        image.Image
		wantStatus domain.MatchStatus
		wantLabel  string
		wantReason string
	}{
		{
			name:       "matched",
			img:        frame(redAxisX),
			wantStatus: domain.MatchStatusMatched,
			wantLabel:  "alice",
		},
		{
			name:       "face present but unmatched",
			img:        frame(redAxisY),
			wantStatus: domain.MatchStatusUnknown,
			wantLabel:  domain.UnknownLabel,
		},
		{
			name:       "no face",
			img:        frame(redNoFace),
			wantStatus: domain.MatchStatusNoFace,
			wantLabel:  domain.UnknownLabel,
			wantReason: "no face detected",
		},
		{
			name:       "low confidence",
			img:        frame(redLowConf),
			wantStatus: domain.MatchStatusNoFace,
			wantLabel:  domain.UnknownLabel,
			wantReason: "face detection confidence too low",
		},
		{
			name:       "embedding failure",
			img:        frame(redEmbedFail),
			wantStatus: domain.MatchStatusExtractionFailed,
			wantLabel:  domain.UnknownLabel,
			wantReason: "Could not extract embedding from face",
		},
		{
			name:       "degenerate embedding",
			img:        frame(redZeroVec),
			wantStatus: domain.MatchStatusExtractionFailed,
			wantLabel:  domain.UnknownLabel,
			wantReason: "Embedding has zero norm and cannot be normalized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.Identify(context.Background(), tt.img)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestEngine_Identify_CancelledSurfaces(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Identify(ctx, frame(redEmbedFail))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbeddingExtraction)
}

func TestEngine_Identify_EmptyGallery(t *testing.T) {
	f := newFixture()

	got, err := f.engine.Identify(context.Background(), frame(redAxisX))

	require.NoError(t, err)
	assert.Equal(t, domain.MatchStatusUnknown, got.Status)
	assert.Equal(t, 0.0, got.Score)
}

func TestEngine_Register_AveragesPhotos(t *testing.T) {
	f := newFixture()

	var stored *domain.Identity
	var raw []byte
	f.store.On("Insert", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.Identity)
			raw = args.Get(2).([]byte)
		}).
		Return(nil)
	f.sync.On("Sync", mock.Anything).Return(gallery.SyncReport{Loaded: 1}, nil)

	result, err := f.engine.Register(context.Background(), RegisterRequest{
		Label:    "  alice  ",
		Metadata: map[string]interface{}{"gender": "F"},
		Photos:   [][]byte{photo(t, redAxisX), photo(t, redAxisY)},
	})

	require.NoError(t, err)
	require.NotNil(t, result.Identity)
	assert.Equal(t, "alice", stored.Label)
	assert.Equal(t, 2, stored.PhotoCount)
	assert.Equal(t, 2, result.Used)
	assert.True(t, result.LowSampleWarning)
	assert.True(t, result.Synced)

	want := float32(math.Sqrt2 / 2)
	assert.InDelta(t, want, stored.Embedding[0], 1e-6)
	assert.InDelta(t, want, stored.Embedding[1], 1e-6)

	decoded, err := embedding.Decode(raw, 2)
	require.NoError(t, err)
	assert.Equal(t, stored.Embedding, decoded)

	f.store.AssertExpectations(t)
	f.sync.AssertExpectations(t)
}

func TestEngine_Register_PartialFailure(t *testing.T) {
	f := newFixture()
	f.store.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sync.On("Sync", mock.Anything).Return(gallery.SyncReport{Loaded: 1}, nil)

	result, err := f.engine.Register(context.Background(), RegisterRequest{
		Label: "bob",
		Photos: [][]byte{
			photo(t, redAxisX),
			photo(t, redNoFace),
			[]byte("not an image"),
			photo(t, redEmbedFail),
			photo(t, redAxisX),
			photo(t, redAxisX),
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Used)
	assert.False(t, result.LowSampleWarning)
	require.Len(t, result.Photos, 6)

	for i, p := range result.Photos {
		assert.Equal(t, i, p.Index)
	}
	assert.True(t, result.Photos[0].OK)
	assert.ErrorIs(t, result.Photos[1].Err, domain.ErrNoFaceFound)
	assert.Equal(t, "no face detected", result.Photos[1].Reason)
	assert.ErrorIs(t, result.Photos[2].Err, domain.ErrDetectionUnavailable)
	assert.ErrorIs(t, result.Photos[3].Err, domain.ErrEmbeddingExtraction)
	assert.InDelta(t, 1.0, result.Identity.Embedding[0], 1e-6)
}

func TestEngine_Register_AllPhotosFail(t *testing.T) {
	f := newFixture()

	result, err := f.engine.Register(context.Background(), RegisterRequest{
		Label:  "carol",
		Photos: [][]byte{photo(t, redNoFace), photo(t, redZeroVec)},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRegistration)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.Used)
	assert.ErrorIs(t, result.Photos[1].Err, domain.ErrDegenerateEmbedding)

	f.store.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything)
	f.sync.AssertNotCalled(t, "Sync", mock.Anything)
}

func TestEngine_Register_Validation(t *testing.T) {
	f := newFixture()

	_, err := f.engine.Register(context.Background(), RegisterRequest{Label: "   ", Photos: [][]byte{photo(t, redAxisX)}})
	assert.ErrorIs(t, err, domain.ErrRegistration)

	_, err = f.engine.Register(context.Background(), RegisterRequest{Label: "dave"})
	assert.ErrorIs(t, err, domain.ErrRegistration)
}

func TestEngine_Register_DuplicateLabel(t *testing.T) {
	f := newFixture()
	f.store.On("Insert", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrDuplicateLabel.WithError(errors.New("label \"alice\"")))

	_, err := f.engine.Register(context.Background(), RegisterRequest{
		Label:  "alice",
		Photos: [][]byte{photo(t, redAxisX)},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateLabel)
	f.sync.AssertNotCalled(t, "Sync", mock.Anything)
}

func TestEngine_Register_SyncFailureKeepsRegistration(t *testing.T) {
	f := newFixture()
	f.store.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.sync.On("Sync", mock.Anything).Return(gallery.SyncReport{}, domain.ErrGallerySync)

	result, err := f.engine.Register(context.Background(), RegisterRequest{
		Label:  "erin",
		Photos: [][]byte{photo(t, redAxisX)},
	})

	require.NoError(t, err)
	assert.False(t, result.Synced)
	assert.NotNil(t, result.Identity)
}

func TestEngine_Register_Cancelled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Register(ctx, RegisterRequest{
		Label:  "frank",
		Photos: [][]byte{photo(t, redAxisX)},
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Delete(t *testing.T) {
	f := newFixture()
	f.store.On("Delete", mock.Anything, "alice").Return(nil)
	f.store.On("Delete", mock.Anything, "ghost").Return(domain.ErrIdentityNotFound)
	f.sync.On("Sync", mock.Anything).Return(gallery.SyncReport{}, nil)

	require.NoError(t, f.engine.Delete(context.Background(), "alice"))
	assert.ErrorIs(t, f.engine.Delete(context.Background(), "ghost"), domain.ErrIdentityNotFound)
	assert.ErrorIs(t, f.engine.Delete(context.Background(), " "), domain.ErrValidationFailed)

	f.sync.AssertNumberOfCalls(t, "Sync", 1)
}

func TestEngine_Identity(t *testing.T) {
	f := newFixture()
	alice := &domain.Identity{Label: "alice", Metadata: map[string]interface{}{"gender": "F"}}
	f.store.On("GetByLabel", mock.Anything, "alice").Return(alice, nil)
	f.store.On("GetByLabel", mock.Anything, "ghost").Return(nil, domain.ErrIdentityNotFound)

	got, err := f.engine.Identity(context.Background(), " alice ")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	_, err = f.engine.Identity(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

	_, err = f.engine.Identity(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestEngine_CandidatesAndStats(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.index.Rebuild([]index.Entry{
		{Label: "alice", Embedding: []float32{1, 0}},
		{Label: "bob", Embedding: []float32{0, 1}},
	}))
	f.store.On("Count", mock.Anything).Return(2, nil)
	f.store.On("NearestInStore", mock.Anything, mock.Anything, 1).
		Return([]domain.Candidate{{Label: "alice", Similarity: 1}}, nil)
	f.sync.On("LastReport").Return(gallery.SyncReport{Loaded: 2}, true)

	candidates, err := f.engine.Candidates(context.Background(), frame(redAxisY), 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "bob", candidates[0].Label)

	nearest, err := f.engine.NearestInStore(context.Background(), frame(redAxisX), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", nearest[0].Label)

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Stored)
	assert.Equal(t, 2, stats.Index.Size)
	require.NotNil(t, stats.LastSync)
	assert.Equal(t, 2, stats.LastSync.Loaded)
}

func TestEngine_RefreshGallery(t *testing.T) {
	f := newFixture()
	f.sync.On("Sync", mock.Anything).Return(gallery.SyncReport{Loaded: 5, Skipped: 1}, nil)

	report, err := f.engine.RefreshGallery(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
}
