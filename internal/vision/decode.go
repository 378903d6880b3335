package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

// Decode turns encoded bytes (JPEG, PNG, WebP, BMP) into an image.
// Corrupt or unsupported input is reported as ErrDetectionUnavailable.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("empty image"))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("decode image: %w", err))
	}
	if img.Bounds().Empty() {
		return nil, domain.ErrDetectionUnavailable.WithError(fmt.Errorf("image has no pixels"))
	}

	return img, nil
}

// Downscale fits img within maxSide keeping aspect ratio. Smaller images are returned as is.
func Downscale(img image.Image, maxSide int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if maxSide <= 0 || (width <= maxSide && height <= maxSide) {
		return img
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSide
		newHeight = max(1, int(float64(height)*float64(maxSide)/float64(width)))
	} else {
		newHeight = maxSide
		newWidth = max(1, int(float64(width)*float64(maxSide)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	return resized
}
