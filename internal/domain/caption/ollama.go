package caption

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"caption-server-go/internal/platform/config"
	"caption-server-go/internal/platform/logging"

	"github.com/go-resty/resty/v2"
)

// OllamaRequest Ollama /api/chat 请求
type OllamaRequest struct {
	Model    string                 `json:"model"`
	Messages []OllamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// OllamaMessage Ollama消息结构
type OllamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 纯 base64，不带 data URL 前缀
}

// OllamaResponse 非流式响应
type OllamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEngine talks to a local Ollama server.
type OllamaEngine struct {
	client  *resty.Client
	cfg     config.OllamaConfig
	prompt  string
	maxEdge int
	logger  *logging.Logger
}

func NewOllamaEngine(cfg config.OllamaConfig, prompt string, maxEdge int, timeout time.Duration, logger *logging.Logger) *OllamaEngine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &OllamaEngine{client: client, cfg: cfg, prompt: prompt, maxEdge: maxEdge, logger: logger}
}

func (e *OllamaEngine) Name() string { return "ollama" }

// Ping checks the server is reachable and reports whether the model is pulled.
func (e *OllamaEngine) Ping(ctx context.Context) error {
	var tags ollamaTags
	resp, err := e.client.R().SetContext(ctx).SetResult(&tags).Get("/api/tags")
	if err != nil {
		return fmt.Errorf("连接 Ollama 失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("Ollama 返回错误: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	for _, m := range tags.Models {
		if m.Name == e.cfg.ModelName || strings.TrimSuffix(m.Name, ":latest") == e.cfg.ModelName {
			e.logger.Debug("Ollama 模型已就绪: base_url=%s model=%s", e.cfg.BaseURL, e.cfg.ModelName)
			return nil
		}
	}
	e.logger.Warn("Ollama 未找到模型 %s，首次请求时可能需要拉取", e.cfg.ModelName)
	return nil
}

func (e *OllamaEngine) Caption(ctx context.Context, img image.Image) (string, error) {
	encoded, err := encodeJPEG(img, e.maxEdge)
	if err != nil {
		return "", err
	}

	request := OllamaRequest{
		Model: e.cfg.ModelName,
		Messages: []OllamaMessage{{
			Role:    "user",
			Content: e.prompt,
			Images:  []string{encoded},
		}},
		Stream: false,
		Options: map[string]interface{}{
			"temperature": e.cfg.Temperature,
			"top_p":       e.cfg.TopP,
			"num_predict": e.cfg.MaxTokens,
		},
	}

	var out OllamaResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&out).
		Post("/api/chat")
	if err != nil {
		return "", fmt.Errorf("Ollama API调用失败: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("Ollama API返回错误: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return out.Message.Content, nil
}
