package journal

import (
	"context"
	"time"

	"caption-server-go/internal/domain/eventbus"
	"caption-server-go/internal/platform/logging"
)

// Recorder persists describe events published on the bus.
type Recorder struct {
	store   Store
	logger  *logging.Logger
	timeout time.Duration
	content bool
}

// RecorderOptions 控制落库字段
type RecorderOptions struct {
	// RecordContent 为 false 时 image_url 与 caption 置空
	RecordContent bool
}

func NewRecorder(store Store, logger *logging.Logger, opts RecorderOptions) *Recorder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Recorder{store: store, logger: logger, timeout: 5 * time.Second, content: opts.RecordContent}
}

// Attach subscribes the recorder to both describe topics.
func (r *Recorder) Attach(bus *eventbus.Bus) error {
	return bus.SubscribeHandler(r, eventbus.EventDescribeCompleted, eventbus.EventDescribeFailed)
}

// Handle implements eventbus.EventHandler.
func (r *Recorder) Handle(eventType string, data interface{}) {
	ev, ok := data.(eventbus.DescribeEventData)
	if !ok {
		r.logger.Warn("未知的事件数据: type=%s", eventType)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	entry := Entry{
		RequestID: ev.RequestID,
		ImageURL:  ev.ImageURL,
		Host:      ev.Host,
		Outcome:   ev.Outcome,
		Caption:   ev.Caption,
		Detail:    ev.Detail,
		Engine:    ev.Engine,
		Format:    ev.Format,
		Width:     ev.Width,
		Height:    ev.Height,
		Bytes:     ev.Bytes,
		Duration:  ev.Duration,
		CreatedAt: ev.At,
	}
	if !r.content {
		entry.ImageURL = ""
		entry.Caption = ""
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.ErrorTag("日志库", "写入审计记录失败: request_id=%s err=%v", ev.RequestID, err)
	}
}
