package caption

import (
	"context"
	"image"
)

// StaticEngine always answers with the same caption.
type StaticEngine struct {
	text string
}

func NewStaticEngine(text string) *StaticEngine {
	return &StaticEngine{text: text}
}

func (e *StaticEngine) Name() string { return "static" }

func (e *StaticEngine) Caption(ctx context.Context, _ image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return e.text, nil
}
