package describe

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domaindescribe "caption-server-go/internal/domain/describe"
	platformerrors "caption-server-go/internal/platform/errors"
	"caption-server-go/internal/platform/logging"
	httptransport "caption-server-go/internal/transport/http"
)

// DefaultMaxBodyBytes 请求体上限
const DefaultMaxBodyBytes = 1 << 20

// Describer turns an image URL into a caption.
type Describer interface {
	Describe(ctx context.Context, rawURL string) (string, error)
}

// Service describe-url 的 HTTP 传输层实现
type Service struct {
	describer    Describer
	logger       *logging.Logger
	maxBodyBytes int64
}

// NewService 创建 describe HTTP 服务
func NewService(describer Describer, logger *logging.Logger, maxBodyBytes int64) (*Service, error) {
	if describer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "describe.http.new", "describer is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &Service{
		describer:    describer,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}, nil
}

// Register 注册 describe 路由
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.POST("/describe-url", s.handlePost)
	s.logger.InfoTag("HTTP", "describe 路由注册完成")
	return nil
}

// handlePost 描述图片
// @Summary Describe an image by URL
// @Description Fetches a public image URL and returns a one-sentence caption
// @Tags Describe
// @Accept json
// @Produce json
// @Param request body DescribeRequest true "image to describe"
// @Success 200 {object} DescribeResponse
// @Failure 400 {object} httptransport.DetailResponse
// @Failure 500 {object} httptransport.DetailResponse
// @Router /describe-url [post]
func (s *Service) handlePost(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodyBytes)

	var req DescribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.DebugTag("HTTP", "请求体解析失败: %v", err)
		httptransport.RespondDetail(c, http.StatusBadRequest, domaindescribe.DetailInvalidBody)
		return
	}

	description, err := s.describer.Describe(c.Request.Context(), *req.ImageURL)
	if err != nil {
		status, detail := StatusFor(err)
		httptransport.RespondDetail(c, status, detail)
		return
	}

	c.JSON(http.StatusOK, DescribeResponse{Description: description})
}

// StatusFor maps a describe failure to its HTTP status and client-facing detail.
func StatusFor(err error) (int, string) {
	var derr *domaindescribe.Error
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError, domaindescribe.DetailInternalError
	}
	if derr.Kind.ClientFault() {
		return http.StatusBadRequest, derr.Message
	}
	return http.StatusInternalServerError, domaindescribe.DetailInternalError
}
