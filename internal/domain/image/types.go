package image

import "fmt"

// Limits bounds the header dimensions accepted before a full decode.
type Limits struct {
	MaxWidth  int
	MaxHeight int
	MaxPixels int64
}

// DefaultLimits 4096x4096，共 16,777,216 像素
func DefaultLimits() Limits {
	return Limits{MaxWidth: 4096, MaxHeight: 4096, MaxPixels: 16777216}
}

// Decoded is a normalized image ready for captioning.
type Decoded struct {
	Image  *RGB
	Format string
	Width  int
	Height int
	Size   int
}

// DecodeError reports bytes that could not be turned into an RGB image.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
