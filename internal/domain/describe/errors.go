package describe

import "fmt"

// Kind is the closed set of describe failures.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindForbiddenTarget
	KindUpstreamStatus
	KindFetchFailed
	KindPayloadTooLarge
	KindDecode
	KindCaption
	KindInternal
)

var kindNames = map[Kind]string{
	KindValidation:      "validation",
	KindForbiddenTarget: "forbidden_target",
	KindUpstreamStatus:  "upstream_status",
	KindFetchFailed:     "fetch_failed",
	KindPayloadTooLarge: "payload_too_large",
	KindDecode:          "decode",
	KindCaption:         "caption",
	KindInternal:        "internal",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ClientFault reports whether the failure is attributed to the caller's input.
func (k Kind) ClientFault() bool {
	switch k {
	case KindValidation, KindForbiddenTarget, KindUpstreamStatus, KindFetchFailed, KindPayloadTooLarge:
		return true
	}
	return false
}

// 对外返回的错误信息
const (
	DetailInvalidBody   = "Invalid request body"
	DetailInvalidURL    = "Invalid image URL"
	DetailForbidden     = "Private/internal URLs not allowed"
	DetailFetchFailed   = "Failed to fetch image"
	DetailInternalError = "Internal server error"
)

// Error carries a Kind, the client-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// TooLargeDetail renders the size limit the way clients see it, e.g. "Image too large (max 5MB)".
func TooLargeDetail(maxBytes int64) string {
	const mib = 1024 * 1024
	if maxBytes >= mib && maxBytes%mib == 0 {
		return fmt.Sprintf("Image too large (max %dMB)", maxBytes/mib)
	}
	if maxBytes >= 1024 && maxBytes%1024 == 0 {
		return fmt.Sprintf("Image too large (max %dKB)", maxBytes/1024)
	}
	return fmt.Sprintf("Image too large (max %d bytes)", maxBytes)
}
