package caption

import (
	"context"
	"fmt"
	"image"

	"caption-server-go/internal/platform/config"
	"caption-server-go/internal/platform/logging"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEngine calls an OpenAI-compatible multimodal chat completion endpoint.
type OpenAIEngine struct {
	client  *openai.Client
	cfg     config.OpenAIConfig
	prompt  string
	maxEdge int
	logger  *logging.Logger
}

func NewOpenAIEngine(cfg config.OpenAIConfig, prompt string, maxEdge int, logger *logging.Logger) (*OpenAIEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &OpenAIEngine{
		client:  openai.NewClientWithConfig(clientConfig),
		cfg:     cfg,
		prompt:  prompt,
		maxEdge: maxEdge,
		logger:  logger,
	}, nil
}

func (e *OpenAIEngine) Name() string { return "openai" }

func (e *OpenAIEngine) Caption(ctx context.Context, img image.Image) (string, error) {
	encoded, err := encodeJPEG(img, e.maxEdge)
	if err != nil {
		return "", err
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.cfg.ModelName,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: e.prompt,
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/jpeg;base64," + encoded,
					},
				},
			},
		}},
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: float32(e.cfg.Temperature),
		TopP:        float32(e.cfg.TopP),
	})
	if err != nil {
		e.logger.ErrorTag("引擎", "OpenAI Vision API调用失败: model=%s maxTokens=%d temperature=%f top=%f err=%v",
			e.cfg.ModelName, e.cfg.MaxTokens, e.cfg.Temperature, e.cfg.TopP, err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
