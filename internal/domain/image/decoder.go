package image

import (
	"bytes"
	"context"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"caption-server-go/internal/platform/logging"
	"caption-server-go/internal/platform/observability"
)

// Decoder sniffs the format from content and normalizes to RGB.
// Declared content types are never consulted.
type Decoder struct {
	limits Limits
	logger *logging.Logger
}

// NewDecoder fills zero limits from DefaultLimits.
func NewDecoder(limits Limits, logger *logging.Logger) *Decoder {
	def := DefaultLimits()
	if limits.MaxWidth <= 0 {
		limits.MaxWidth = def.MaxWidth
	}
	if limits.MaxHeight <= 0 {
		limits.MaxHeight = def.MaxHeight
	}
	if limits.MaxPixels <= 0 {
		limits.MaxPixels = def.MaxPixels
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Decoder{limits: limits, logger: logger}
}

// Decode validates the header and decodes data into an RGB image.
func (d *Decoder) Decode(ctx context.Context, data []byte) (decoded *Decoded, err error) {
	_, finish := observability.StartSpan(ctx, "image", "decode")
	defer func() { finish(err) }()

	if len(data) == 0 {
		return nil, &DecodeError{Reason: "empty image payload"}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		d.logger.WarnTag("视觉", "无法识别图片格式: header=%x", data[:min(len(data), 16)])
		return nil, &DecodeError{Reason: "unrecognized image data", Err: err}
	}

	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid dimensions %dx%d", cfg.Width, cfg.Height)}
	}
	if cfg.Width > d.limits.MaxWidth || cfg.Height > d.limits.MaxHeight {
		return nil, &DecodeError{Reason: fmt.Sprintf("dimensions exceed limit: %dx%d (max %dx%d)",
			cfg.Width, cfg.Height, d.limits.MaxWidth, d.limits.MaxHeight)}
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > d.limits.MaxPixels {
		return nil, &DecodeError{Reason: fmt.Sprintf("pixel count exceeds limit: %d (max %d)", pixels, d.limits.MaxPixels)}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "corrupt " + format + " data", Err: err}
	}

	rgb := ToRGB(img)
	d.logger.DebugTag("视觉", "图片解码完成: format=%s width=%d height=%d size=%d",
		format, rgb.Rect.Dx(), rgb.Rect.Dy(), len(data))

	return &Decoded{
		Image:  rgb,
		Format: format,
		Width:  rgb.Rect.Dx(),
		Height: rgb.Rect.Dy(),
		Size:   len(data),
	}, nil
}
