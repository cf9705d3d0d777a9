package httptransport

import "github.com/gin-gonic/gin"

// DetailResponse 错误响应 {"detail": "..."}
type DetailResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string `json:"status"`
}

// RespondDetail writes an error body in the {"detail": ...} shape and aborts the chain.
func RespondDetail(c *gin.Context, httpStatus int, detail string) {
	c.AbortWithStatusJSON(httpStatus, DetailResponse{Detail: detail})
}
