package eventbus

import "time"

// 事件类型定义
const (
	EventDescribeCompleted = "describe:completed"
	EventDescribeFailed    = "describe:failed"
)

// DescribeEventData 单次描述请求的结果
type DescribeEventData struct {
	RequestID string        `json:"request_id"`
	ImageURL  string        `json:"image_url"`
	Host      string        `json:"host,omitempty"`
	Outcome   string        `json:"outcome"`
	Caption   string        `json:"caption,omitempty"`
	Detail    string        `json:"detail,omitempty"`
	Engine    string        `json:"engine,omitempty"`
	Format    string        `json:"format,omitempty"`
	Width     int           `json:"width,omitempty"`
	Height    int           `json:"height,omitempty"`
	Bytes     int           `json:"bytes,omitempty"`
	Duration  time.Duration `json:"duration"`
	At        time.Time     `json:"at"`
}

// Topic returns the event name matching the outcome.
func (d DescribeEventData) Topic() string {
	if d.Outcome == "ok" {
		return EventDescribeCompleted
	}
	return EventDescribeFailed
}
