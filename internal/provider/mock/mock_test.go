package mock

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/provider"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestProvider_DetectFaces(t *testing.T) {
	p := New()
	ctx := context.Background()

	tests := []struct {
		name      string
		image     image.Image
		wantFaces int
	}{
		{
			name:      "valid image",
			image:     solid(100, 50, color.RGBA{R: 200, A: 255}),
			wantFaces: 1,
		},
		{
			name:      "image too small",
			image:     solid(8, 8, color.RGBA{A: 255}),
			wantFaces: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			faces, err := p.DetectFaces(ctx, tt.image)
			require.NoError(t, err)
			assert.Len(t, faces, tt.wantFaces)
		})
	}
}

func TestProvider_DetectFaces_Box(t *testing.T) {
	faces, err := New().WithConfidence(0.91).DetectFaces(context.Background(), solid(100, 50, color.RGBA{A: 255}))

	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, provider.BoundingBox{X: 10, Y: 5, Width: 80, Height: 40}, faces[0].BoundingBox)
	assert.Equal(t, 0.91, faces[0].Confidence)
}

func TestProvider_DetectFaces_Nil(t *testing.T) {
	_, err := New().DetectFaces(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrDetectionUnavailable)
}

func TestProvider_Embed_Deterministic(t *testing.T) {
	p := New()
	ctx := context.Background()

	emb1, err := p.Embed(ctx, solid(20, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	require.NoError(t, err)
	emb2, err := p.Embed(ctx, solid(20, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	require.NoError(t, err)
	emb3, err := p.Embed(ctx, solid(20, 20, color.RGBA{R: 90, G: 20, B: 30, A: 255}))
	require.NoError(t, err)

	assert.Len(t, emb1, 512)
	assert.Equal(t, emb1, emb2, "Embed should be deterministic for same pixels")
	assert.NotEqual(t, emb1, emb3)
}

func TestProvider_Embed_Dimension(t *testing.T) {
	p := New().WithDimension(8)

	emb, err := p.Embed(context.Background(), solid(4, 4, color.RGBA{A: 255}))

	require.NoError(t, err)
	assert.Len(t, emb, 8)
	assert.Equal(t, 8, p.Dimension())
	assert.Equal(t, 512, New().Dimension())
}

func TestProvider_Embed_Empty(t *testing.T) {
	_, err := New().Embed(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, domain.ErrEmbeddingExtraction)
}
