package eventbus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAsyncDeliversToHandler(t *testing.T) {
	bus := New(2, 16, nil)
	defer bus.Stop()

	var mu sync.Mutex
	var got []DescribeEventData
	require.NoError(t, bus.SubscribeHandler(HandlerFunc(func(eventType string, data interface{}) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, data.(DescribeEventData))
	}), EventDescribeCompleted, EventDescribeFailed))

	ok := DescribeEventData{RequestID: "a", Outcome: "ok"}
	failed := DescribeEventData{RequestID: "b", Outcome: "forbidden_target"}
	bus.PublishAsync(ok.Topic(), ok)
	bus.PublishAsync(failed.Topic(), failed)
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 2)
	assert.True(t, bus.HasCallback(EventDescribeFailed))
}

func TestHandlerPanicDoesNotKillWorker(t *testing.T) {
	bus := New(1, 4, nil)
	defer bus.Stop()

	var calls int32
	require.NoError(t, bus.Subscribe(EventDescribeFailed, func(d DescribeEventData) {
		atomic.AddInt32(&calls, 1)
		if d.RequestID == "boom" {
			panic("handler failure")
		}
	}))

	bus.PublishAsync(EventDescribeFailed, DescribeEventData{RequestID: "boom"})
	bus.PublishAsync(EventDescribeFailed, DescribeEventData{RequestID: "fine"})
	bus.WaitAsync()
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestStopDrainsAndRejectsLateEvents(t *testing.T) {
	bus := New(1, 8, nil)

	var calls int32
	require.NoError(t, bus.Subscribe(EventDescribeCompleted, func(DescribeEventData) {
		atomic.AddInt32(&calls, 1)
	}))
	for i := 0; i < 5; i++ {
		bus.PublishAsync(EventDescribeCompleted, DescribeEventData{})
	}
	bus.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))

	bus.PublishAsync(EventDescribeCompleted, DescribeEventData{})
	bus.Stop()
	assert.Equal(t, int64(1), bus.Dropped())
}

func TestTopic(t *testing.T) {
	assert.Equal(t, EventDescribeCompleted, DescribeEventData{Outcome: "ok"}.Topic())
	assert.Equal(t, EventDescribeFailed, DescribeEventData{Outcome: "decode"}.Topic())
}

func TestLogHandlerFormatsDescribeEvents(t *testing.T) {
	bus := New(1, 4, nil)
	defer bus.Stop()

	var mu sync.Mutex
	var lines []string
	logf := func(tag, msg string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, tag+" "+fmt.Sprintf(msg, args...))
	}
	require.NoError(t, bus.SubscribeHandler(LogHandler(logf), EventDescribeCompleted, EventDescribeFailed))

	bus.PublishAsync(EventDescribeFailed, DescribeEventData{RequestID: "req-9", Outcome: "decode", Duration: 2 * time.Second})
	bus.PublishAsync(EventDescribeCompleted, "not an event")
	bus.WaitAsync()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, lines, 1, "foreign payloads are ignored")
	assert.Contains(t, lines[0], "视觉")
	assert.Contains(t, lines[0], EventDescribeFailed)
	assert.Contains(t, lines[0], "request_id=req-9")
	assert.Contains(t, lines[0], "outcome=decode")
	assert.Contains(t, lines[0], "duration=2s")
}
