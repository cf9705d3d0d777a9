package caption

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	domainimage "caption-server-go/internal/domain/image"
)

// Engine turns an image into a short natural-language caption.
type Engine interface {
	Name() string
	Caption(ctx context.Context, img image.Image) (string, error)
}

// ErrEmptyCaption is returned when an engine produced only whitespace or reasoning.
var ErrEmptyCaption = errors.New("engine returned an empty caption")

// Error wraps any failure raised while captioning.
type Error struct {
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("caption engine %s: %v", e.Engine, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// encodeJPEG shrinks RGB images to maxEdge and returns base64 JPEG bytes.
func encodeJPEG(img image.Image, maxEdge int) (string, error) {
	if rgb, ok := img.(*domainimage.RGB); ok {
		img = rgb.Thumbnail(maxEdge)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
