package image

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodePNGWithAlphaDropsAlpha(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for i := range src.Pix {
		src.Pix[i] = 0
	}
	src.SetNRGBA(1, 1, color.NRGBA{R: 200, G: 100, B: 50, A: 10})

	dec, err := NewDecoder(Limits{}, nil).Decode(context.Background(), encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, "png", dec.Format)
	assert.Equal(t, 4, dec.Width)
	assert.Equal(t, 3, dec.Height)
	assert.Len(t, dec.Image.Pix, 4*3*3)

	r, g, b, a := dec.Image.At(1, 1).RGBA()
	assert.Equal(t, uint32(200*0x101), r)
	assert.Equal(t, uint32(100*0x101), g)
	assert.Equal(t, uint32(50*0x101), b)
	assert.Equal(t, uint32(0xffff), a)
}

func TestDecodePalettedGIF(t *testing.T) {
	src := image.NewPaletted(image.Rect(0, 0, 2, 2), color.Palette{color.Black, color.RGBA{R: 255, A: 255}})
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, src, nil))

	dec, err := NewDecoder(Limits{}, nil).Decode(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "gif", dec.Format)
	assert.True(t, dec.Image.Opaque())
	r, _, _, _ := dec.Image.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestDecodeGrayJPEG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	dec, err := NewDecoder(Limits{}, nil).Decode(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", dec.Format)
	assert.Equal(t, 8, dec.Image.Bounds().Dx())
}

func TestDecodeErrors(t *testing.T) {
	d := NewDecoder(Limits{}, nil)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, image.NewRGBA(image.Rect(0, 0, 16, 16)))[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(context.Background(), tt.data)
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestDecodeRejectsOversizedDimensions(t *testing.T) {
	data := encodePNG(t, image.NewGray(image.Rect(0, 0, 64, 8)))

	_, err := NewDecoder(Limits{MaxWidth: 32, MaxHeight: 32, MaxPixels: 1 << 20}, nil).Decode(context.Background(), data)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Reason, "dimensions exceed limit")

	_, err = NewDecoder(Limits{MaxWidth: 100, MaxHeight: 100, MaxPixels: 256}, nil).Decode(context.Background(), data)
	require.ErrorAs(t, err, &de)
	assert.Contains(t, de.Reason, "pixel count")
}

func TestThumbnail(t *testing.T) {
	img := NewRGB(image.Rect(0, 0, 400, 100))
	thumb := img.Thumbnail(100)
	assert.Equal(t, 100, thumb.Bounds().Dx())
	assert.Equal(t, 25, thumb.Bounds().Dy())

	assert.Same(t, img, img.Thumbnail(0))
	assert.Same(t, img, img.Thumbnail(400))
}

func TestToRGBCopiesRGB(t *testing.T) {
	src := NewRGB(image.Rect(0, 0, 2, 1))
	src.Set(1, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	dst := ToRGB(src)
	assert.Equal(t, src.Pix, dst.Pix)
	assert.NotSame(t, &src.Pix[0], &dst.Pix[0])
}
