package journal

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainjournal "caption-server-go/internal/domain/journal"
	platformerrors "caption-server-go/internal/platform/errors"
	"caption-server-go/internal/platform/logging"
	httptransport "caption-server-go/internal/transport/http"
)

// ListResponse GET /journal 响应
type ListResponse struct {
	Entries []domainjournal.Entry `json:"entries"`
	Stats   map[string]any        `json:"stats"`
}

// Service 请求日志查询接口
type Service struct {
	store  domainjournal.Store
	logger *logging.Logger
}

// NewService 创建 journal HTTP 服务
func NewService(store domainjournal.Store, logger *logging.Logger) (*Service, error) {
	if store == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "journal.http.new", "store is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{store: store, logger: logger}, nil
}

// Register 注册 journal 路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/journal", s.handleList)
	return nil
}

// handleList 最近的描述请求
// @Summary Recent describe requests
// @Tags Journal
// @Produce json
// @Param limit query int false "number of entries" default(20) minimum(1) maximum(200)
// @Success 200 {object} ListResponse
// @Failure 400 {object} httptransport.DetailResponse
// @Router /journal [get]
func (s *Service) handleList(c *gin.Context) {
	limit := domainjournal.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > domainjournal.MaxLimit {
			httptransport.RespondDetail(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	ctx := c.Request.Context()
	entries, err := s.store.Recent(ctx, limit)
	if err != nil {
		s.logger.ErrorTag("日志库", "读取请求日志失败: %v", err)
		httptransport.RespondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.logger.ErrorTag("日志库", "读取统计失败: %v", err)
		httptransport.RespondDetail(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []domainjournal.Entry{}
	}

	c.JSON(http.StatusOK, ListResponse{Entries: entries, Stats: stats})
}
