package caption

import (
	"context"
	"fmt"
	"strings"

	"caption-server-go/internal/platform/config"
	"caption-server-go/internal/platform/logging"
)

// New builds the configured engine behind a Gate. Ollama backends are pinged once at startup.
func New(ctx context.Context, cfg config.CaptionConfig, logger *logging.Logger) (*Gate, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	var engine Engine
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		e, err := NewOpenAIEngine(cfg.OpenAI, cfg.Prompt, cfg.MaxEdge, logger)
		if err != nil {
			return nil, err
		}
		engine = e
	case "ollama":
		e := NewOllamaEngine(cfg.Ollama, cfg.Prompt, cfg.MaxEdge, cfg.Timeout, logger)
		if err := e.Ping(ctx); err != nil {
			return nil, err
		}
		engine = e
	case "static":
		engine = NewStaticEngine(cfg.Static.Caption)
	default:
		return nil, fmt.Errorf("不支持的引擎类型: %s", cfg.Provider)
	}

	logger.InfoTag("引擎", "引擎初始化成功: provider=%s max_concurrency=%d", engine.Name(), cfg.MaxConcurrency)
	return NewGate(engine, int64(cfg.MaxConcurrency), cfg.Timeout, logger), nil
}
