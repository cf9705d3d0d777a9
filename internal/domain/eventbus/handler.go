package eventbus

// EventHandler 事件处理器接口
type EventHandler interface {
	Handle(eventType string, data interface{})
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(eventType string, data interface{})

func (f HandlerFunc) Handle(eventType string, data interface{}) {
	f(eventType, data)
}

// SubscribeHandler routes the first argument of every event on topics to h.
func (b *Bus) SubscribeHandler(h EventHandler, topics ...string) error {
	for _, topic := range topics {
		topic := topic
		if err := b.Subscribe(topic, func(args ...interface{}) {
			if len(args) > 0 {
				h.Handle(topic, args[0])
			}
		}); err != nil {
			return err
		}
	}
	return nil
}

// LogHandler 将描述事件写入日志
func LogHandler(logf func(tag, msg string, args ...interface{})) EventHandler {
	return HandlerFunc(func(eventType string, data interface{}) {
		d, ok := data.(DescribeEventData)
		if !ok {
			return
		}
		logf("视觉", "事件 %s: request_id=%s outcome=%s duration=%s", eventType, d.RequestID, d.Outcome, d.Duration)
	})
}
