package fetch

import "fmt"

// Kind classifies fetch failures.
type Kind string

const (
	KindUpstreamStatus  Kind = "upstream_status"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindNetwork         Kind = "network"
	// KindForbidden 连接阶段发现目标地址不被允许
	KindForbidden Kind = "forbidden"
)

// Error is returned by Fetch for every failure.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Limit      int64
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindUpstreamStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case KindPayloadTooLarge:
		return fmt.Sprintf("fetch %s: payload exceeds %d bytes", e.URL, e.Limit)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}
