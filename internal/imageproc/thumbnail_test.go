package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testImageReader(t *testing.T, w, h int, format imaging.Format) *bytes.Reader {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 100, G: 100, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, format)
	require.NoError(t, err)

	return bytes.NewReader(buf.Bytes())
}

func mustDecode(t *testing.T, r io.Reader) image.Image {
	t.Helper()

	img, err := imaging.Decode(r)
	require.NoError(t, err)
	require.NotNil(t, img)

	return img
}

func TestThumbnailer(t *testing.T) {
	tests := []struct {
		name         string
		reader       io.Reader
		x, y         int
		wantW, wantH int
		wantErr      bool
	}{
		{
			name:    "OK square source",
			reader:  testImageReader(t, 200, 200, imaging.PNG),
			x:       100,
			y:       100,
			wantW:   100,
			wantH:   100,
			wantErr: false,
		},
		{
			name:    "OK wide source keeps ratio",
			reader:  testImageReader(t, 300, 100, imaging.JPEG),
			x:       90,
			y:       90,
			wantW:   90,
			wantH:   30,
			wantErr: false,
		},
		{
			name:    "nil reader",
			reader:  nil,
			x:       100,
			y:       100,
			wantErr: true,
		},
		{
			name:    "broken image",
			reader:  bytes.NewReader([]byte("broken")),
			x:       100,
			y:       100,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, size, err := Thumbnailer(tt.reader, tt.x, tt.y)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, r)
			require.Greater(t, size, int64(0))

			img := mustDecode(t, r)
			require.Equal(t, tt.wantW, img.Bounds().Dx())
			require.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}

// результат всегда перекодируется в JPEG независимо от исходного формата
func TestThumbnailer_EncodesJPEG(t *testing.T) {
	r, _, err := Thumbnailer(testImageReader(t, 50, 50, imaging.GIF), 32, 32)
	require.NoError(t, err)

	data, err := io.ReadAll(r)
	require.NoError(t, err)

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
}
