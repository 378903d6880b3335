package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/embedding"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/index"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/repository"
)

type fakeStore struct {
	mu      sync.Mutex
	records []repository.StoredEmbedding
	err     error
	calls   atomic.Int32
}

func (f *fakeStore) FetchAllWithEmbedding(ctx context.Context) ([]repository.StoredEmbedding, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeStore) set(records []repository.StoredEmbedding, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
	f.err = err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(label string, v ...float32) repository.StoredEmbedding {
	return repository.StoredEmbedding{ID: uuid.New(), Label: label, Raw: embedding.Encode(v)}
}

func TestSynchronizer_Sync(t *testing.T) {
	store := &fakeStore{records: []repository.StoredEmbedding{
		record("alice", 3, 4),
		record("bob", 0, 2),
	}}
	idx := index.NewFlat(index.DefaultThreshold)
	s := NewSynchronizer(store, idx, 2, discardLogger())

	report, err := s.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 2, idx.Len())

	// stored (3,4) is re-normalized to (0.6,0.8)
	got, err := idx.Search([]float32{0.6, 0.8})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Label)
	assert.InDelta(t, 1.0, got.Score, 1e-6)

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, report, last)
}

func TestSynchronizer_SkipsCorruptRecords(t *testing.T) {
	records := make([]repository.StoredEmbedding, 0, 10)
	records = append(records, record("valid", 1, 0, 0))
	for i := 0; i < 5; i++ {
		records = append(records, record(fmt.Sprintf("zero-%d", i), 0, 0, 0))
	}
	records = append(records,
		repository.StoredEmbedding{ID: uuid.New(), Label: "truncated", Raw: []byte{1, 2, 3}},
		repository.StoredEmbedding{ID: uuid.New(), Label: "empty", Raw: nil},
		record("short", 1, 0),
		record("long", 1, 0, 0, 0),
	)

	idx := index.NewFlat(index.DefaultThreshold)
	s := NewSynchronizer(&fakeStore{records: records}, idx, 3, discardLogger())

	report, err := s.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Loaded)
	assert.Equal(t, 9, report.Skipped)
	assert.Equal(t, 1, idx.Len())
}

func TestSynchronizer_FetchFailureKeepsPreviousIndex(t *testing.T) {
	store := &fakeStore{records: []repository.StoredEmbedding{record("alice", 1, 0)}}
	idx := index.NewFlat(index.DefaultThreshold)
	s := NewSynchronizer(store, idx, 2, discardLogger())

	_, err := s.Sync(context.Background())
	require.NoError(t, err)

	store.set(nil, errors.New("connection refused"))
	_, err = s.Sync(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGallerySync)
	assert.Equal(t, 1, idx.Len())

	got, err := idx.Search([]float32{1, 0})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Label)
}

func TestSynchronizer_EmptyGallery(t *testing.T) {
	idx := index.NewFlat(index.DefaultThreshold)
	require.NoError(t, idx.Rebuild([]index.Entry{{Label: "stale", Embedding: []float32{1, 0}}}))

	s := NewSynchronizer(&fakeStore{}, idx, 2, discardLogger())
	report, err := s.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, report.Loaded)
	assert.Equal(t, 0, idx.Len(), "deleted rows disappear from the index")
}

func TestSynchronizer_AnyDimensionSkipsDisagreeingRecords(t *testing.T) {
	records := make([]repository.StoredEmbedding, 0, 10)
	for i := 0; i < 9; i++ {
		records = append(records, record(fmt.Sprintf("person-%d", i), 1, float32(i), 2))
	}
	records = append(records, record("short", 1, 0))

	store := &fakeStore{records: records}
	idx := index.NewFlat(index.DefaultThreshold)
	s := NewSynchronizer(store, idx, 0, discardLogger())

	report, err := s.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 9, report.Loaded)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 9, idx.Len())
}

func TestSynchronizer_AnyDimensionSkipsLeadingCorruptRecord(t *testing.T) {
	store := &fakeStore{records: []repository.StoredEmbedding{
		record("zero", 0, 0, 0),
		record("a", 1, 0),
		record("b", 0, 1),
		record("long", 1, 0, 0),
	}}
	s := NewSynchronizer(store, index.NewFlat(index.DefaultThreshold), 0, discardLogger())

	report, err := s.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, 2, report.Skipped)
}

func TestSynchronizer_ConcurrentSyncs(t *testing.T) {
	store := &fakeStore{records: []repository.StoredEmbedding{record("alice", 1, 0)}}
	s := NewSynchronizer(store, index.NewFlat(index.DefaultThreshold), 2, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sync(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), store.calls.Load())
	assert.Equal(t, 1, s.Index().Len())
}

func TestWorker_Run(t *testing.T) {
	store := &fakeStore{records: []repository.StoredEmbedding{record("alice", 1, 0)}}
	s := NewSynchronizer(store, index.NewFlat(index.DefaultThreshold), 2, discardLogger())
	var notified atomic.Int32
	w := NewWorker(s, discardLogger(), 10*time.Millisecond).OnSync(func(report SyncReport) {
		assert.Equal(t, 1, report.Loaded)
		notified.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return notified.Load() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorker_DisabledInterval(t *testing.T) {
	store := &fakeStore{}
	s := NewSynchronizer(store, index.NewFlat(index.DefaultThreshold), 2, discardLogger())

	NewWorker(s, discardLogger(), 0).Run(context.Background())

	assert.Equal(t, int32(0), store.calls.Load())
}
