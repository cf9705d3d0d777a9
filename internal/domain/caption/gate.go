package caption

import (
	"context"
	"image"
	"time"

	"caption-server-go/internal/platform/logging"
	"caption-server-go/internal/platform/observability"
	"golang.org/x/sync/semaphore"
)

// Gate bounds concurrent calls into a shared engine. Width 1 serializes them.
type Gate struct {
	engine  Engine
	sem     *semaphore.Weighted
	width   int64
	timeout time.Duration
	logger  *logging.Logger
}

// NewGate wraps engine. width below 1 is treated as 1; timeout 0 disables the per-call deadline.
func NewGate(engine Engine, width int64, timeout time.Duration, logger *logging.Logger) *Gate {
	if width < 1 {
		width = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Gate{
		engine:  engine,
		sem:     semaphore.NewWeighted(width),
		width:   width,
		timeout: timeout,
		logger:  logger,
	}
}

func (g *Gate) Name() string {
	return g.engine.Name()
}

// Width is the number of concurrent engine calls allowed.
func (g *Gate) Width() int64 {
	return g.width
}

// Caption waits for a slot, runs the engine and cleans its output.
func (g *Gate) Caption(ctx context.Context, img image.Image) (text string, err error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", &Error{Engine: g.engine.Name(), Err: err}
	}
	defer g.sem.Release(1)

	release := observability.TrackInflight()
	defer release()

	ctx, finish := observability.StartSpan(ctx, "caption", g.engine.Name())
	defer func() { finish(err) }()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := g.engine.Caption(ctx, img)
	if err != nil {
		g.logger.ErrorTag("引擎", "推理失败: engine=%s err=%v", g.engine.Name(), err)
		return "", &Error{Engine: g.engine.Name(), Err: err}
	}

	text = CleanCaption(raw)
	if text == "" {
		g.logger.WarnTag("引擎", "推理结果为空: engine=%s raw_length=%d", g.engine.Name(), len(raw))
		return "", &Error{Engine: g.engine.Name(), Err: ErrEmptyCaption}
	}
	g.logger.DebugTag("引擎", "推理完成: engine=%s duration=%s length=%d", g.engine.Name(), time.Since(start), len(text))
	return text, nil
}
