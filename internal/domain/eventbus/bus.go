package eventbus

import (
	"sync"
	"sync/atomic"

	"caption-server-go/internal/platform/logging"

	evbus "github.com/asaskevich/EventBus"
)

// Bus 同步订阅 + 固定 worker 异步投递的事件总线
type Bus struct {
	bus      evbus.Bus
	workChan chan asyncEvent
	stopChan chan struct{}
	wg       sync.WaitGroup
	pending  sync.WaitGroup
	mu       sync.RWMutex
	stopped  bool
	dropped  atomic.Int64
	logger   *logging.Logger
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// New starts workers goroutines draining a queue of the given size.
func New(workers, queue int, logger *logging.Logger) *Bus {
	if workers <= 0 {
		workers = 4
	}
	if queue <= 0 {
		queue = 1000
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	b := &Bus{
		bus:      evbus.New(),
		workChan: make(chan asyncEvent, queue),
		stopChan: make(chan struct{}),
		logger:   logger,
	}
	for i := 0; i < workers; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b
}

func (b *Bus) worker() {
	defer b.wg.Done()

	for {
		select {
		case event := <-b.workChan:
			b.dispatch(event)
		case <-b.stopChan:
			// 停止前处理完已入队的事件
			for {
				select {
				case event := <-b.workChan:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) dispatch(event asyncEvent) {
	defer b.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("事件处理 panic: topic=%s err=%v", event.topic, r)
		}
	}()
	b.bus.Publish(event.topic, event.args...)
}

// Publish 同步发布
func (b *Bus) Publish(topic string, args ...interface{}) {
	b.bus.Publish(topic, args...)
}

// PublishAsync 入队后立即返回，队列满或已停止时丢弃
func (b *Bus) PublishAsync(topic string, args ...interface{}) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		b.dropped.Add(1)
		return
	}

	b.pending.Add(1)
	select {
	case b.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		b.pending.Done()
		b.dropped.Add(1)
		b.logger.Warn("事件队列已满，丢弃事件: topic=%s", topic)
	}
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(topic string, fn interface{}) error {
	return b.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(topic string, fn interface{}) error {
	return b.bus.Unsubscribe(topic, fn)
}

// HasCallback 检查是否有订阅者
func (b *Bus) HasCallback(topic string) bool {
	return b.bus.HasCallback(topic)
}

// Dropped counts events discarded by PublishAsync.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// WaitAsync blocks until every queued event has been handled.
func (b *Bus) WaitAsync() {
	b.pending.Wait()
}

// Stop drains the queue and stops the workers. It is safe to call twice.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopChan)
	b.mu.Unlock()

	b.wg.Wait()
}
