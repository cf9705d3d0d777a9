package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Docs: true,
		},
		HTTP: HTTPConfig{
			CORS: CORSConfig{
				AllowOrigins: []string{"https://yourfrontend.com"},
				MaxAge:       12 * time.Hour,
			},
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:   10 * time.Second,
			MaxBytes:  5 * 1024 * 1024,
			UserAgent: "caption-server-go/1.0",
		},
		SSRF: SSRFConfig{
			BlockReserved: true,
			DialGuard:     true,
			DenyCIDRs:     []string{},
		},
		Image: ImageConfig{
			MaxWidth:  4096,
			MaxHeight: 4096,
			MaxPixels: 16777216,
		},
		Caption: CaptionConfig{
			Provider:       "ollama",
			MaxConcurrency: 1,
			Prompt:         "Describe this image in one short sentence.",
			MaxEdge:        1024,
			Timeout:        60 * time.Second,
			OpenAI: OpenAIConfig{
				ModelName:   "gpt-4o-mini",
				BaseURL:     "https://api.openai.com/v1",
				Temperature: 0,
				TopP:        1,
				MaxTokens:   64,
			},
			Ollama: OllamaConfig{
				ModelName:   "llava",
				BaseURL:     "http://127.0.0.1:11434",
				Temperature: 0,
				TopP:        1,
				MaxTokens:   64,
			},
			Static: StaticConfig{
				Caption: "an image",
			},
		},
		Journal: JournalConfig{
			Enabled:       false,
			RecordContent: false,
			Driver:        "memory",
			Capacity:      500,
			SQLite: SQLiteConfig{
				DSN: "data/journal.db",
			},
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
				Key:  "caption:journal",
			},
		},
		Observability: ObservabilityConfig{
			Enabled: true,
			Metrics: true,
		},
	}
}
