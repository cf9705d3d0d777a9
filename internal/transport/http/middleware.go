package httptransport

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domaindescribe "caption-server-go/internal/domain/describe"
)

// RequestIDHeader 请求追踪头
const RequestIDHeader = "X-Request-Id"

const (
	requestIDKey    = "request_id"
	maxRequestIDLen = 128
)

// requestIDMiddleware echoes a sane incoming X-Request-Id or mints a UUID.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen || !printable(id) {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(domaindescribe.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func printable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}
