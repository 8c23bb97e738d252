// Package imageproc provides generation of aspect-preserving thumbnails from source images.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const jpegQuality = 85

// Thumbnailer - вписывает картинку в рамку x на y с сохранением пропорций, результат всегда JPEG
func Thumbnailer(r io.Reader, x, y int) (io.Reader, int64, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader baseIMG provided to Thumbnailer")
	}
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to DEcode baseIMG in Thumbnailer: %w", err)
	}

	thumb := imaging.Fit(img, x, y, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, 0, fmt.Errorf("failed to ENcode resultIMG in Thumbnailer: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}
