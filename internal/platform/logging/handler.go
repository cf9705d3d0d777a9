package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// tagColors 模块标签对应的控制台颜色
var tagColors = map[string]string{
	"[引导]":            "\x1b[96m",
	"[HTTP]":          "\x1b[95m",
	"[视觉]":            "\x1b[35m",
	"[安全]":            "\x1b[91m",
	"[抓取]":            "\x1b[94m",
	"[引擎]":            "\x1b[34m",
	"[日志库]":           "\x1b[92m",
	"[OBSERVABILITY]": "\x1b[90m",
}

// consoleHandler 彩色文本处理器：[时间] [级别] 消息 { k=v }
type consoleHandler struct {
	writer io.Writer
	level  slog.Level
	attrs  []slog.Attr
	mu     *sync.Mutex
}

func newConsoleHandler(w io.Writer, level slog.Level) *consoleHandler {
	return &consoleHandler{writer: w, level: level, mu: &sync.Mutex{}}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]%s ", colorTime, r.Time.Format("2006-01-02 15:04:05.000"), colorReset)

	if color, ok := moduleColor(r.Message); ok {
		fmt.Fprintf(&b, "%s%s%s", color, r.Message, colorReset)
	} else {
		label, color := levelLabel(r.Level)
		fmt.Fprintf(&b, "%s[%s]%s %s", color, label, colorReset, r.Message)
	}

	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		b.WriteString(" {")
		for _, a := range h.attrs {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		b.WriteString(" }")
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *consoleHandler) WithGroup(string) slog.Handler {
	return h
}

func moduleColor(msg string) (string, bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", false
	}
	end := strings.Index(msg, "]")
	if end < 0 {
		return "", false
	}
	color, ok := tagColors[msg[:end+1]]
	return color, ok
}

func levelLabel(level slog.Level) (string, string) {
	switch {
	case level >= slog.LevelError:
		return "错误", colorError
	case level >= slog.LevelWarn:
		return "警告", colorWarn
	case level >= slog.LevelInfo:
		return "信息", colorInfo
	default:
		return "调试", colorDebug
	}
}
