package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	Web           WebConfig           `yaml:"web" mapstructure:"web"`
	HTTP          HTTPConfig          `yaml:"http" mapstructure:"http"`
	Fetch         FetchConfig         `yaml:"fetch" mapstructure:"fetch"`
	SSRF          SSRFConfig          `yaml:"ssrf" mapstructure:"ssrf"`
	Image         ImageConfig         `yaml:"image" mapstructure:"image"`
	Caption       CaptionConfig       `yaml:"caption" mapstructure:"caption"`
	Journal       JournalConfig       `yaml:"journal" mapstructure:"journal"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

type ServerConfig struct {
	IP   string `yaml:"ip" mapstructure:"ip"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type WebConfig struct {
	// StaticDir 可选的前端静态目录，为空则不挂载
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
	Docs      bool   `yaml:"docs" mapstructure:"docs"`
}

type HTTPConfig struct {
	CORS            CORSConfig    `yaml:"cors" mapstructure:"cors"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

type CORSConfig struct {
	AllowOrigins []string      `yaml:"allow_origins" mapstructure:"allow_origins"`
	MaxAge       time.Duration `yaml:"max_age" mapstructure:"max_age"`
}

// FetchConfig 远程图片抓取的边界
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes" mapstructure:"max_bytes"`
	UserAgent string        `yaml:"user_agent" mapstructure:"user_agent"`
}

// SSRFConfig 目标地址安全策略
type SSRFConfig struct {
	// BlockReserved 额外拦截链路本地、组播、CGNAT、云元数据等保留网段
	BlockReserved bool `yaml:"block_reserved" mapstructure:"block_reserved"`
	// DialGuard 在建立连接时再次校验实际 IP，防止 DNS 重绑定
	DialGuard bool     `yaml:"dial_guard" mapstructure:"dial_guard"`
	DenyCIDRs []string `yaml:"deny_cidrs" mapstructure:"deny_cidrs"`
}

type ImageConfig struct {
	MaxWidth  int   `yaml:"max_width" mapstructure:"max_width"`
	MaxHeight int   `yaml:"max_height" mapstructure:"max_height"`
	MaxPixels int64 `yaml:"max_pixels" mapstructure:"max_pixels"`
}

type CaptionConfig struct {
	Provider       string        `yaml:"provider" mapstructure:"provider"`
	MaxConcurrency int           `yaml:"max_concurrency" mapstructure:"max_concurrency"`
	Prompt         string        `yaml:"prompt" mapstructure:"prompt"`
	MaxEdge        int           `yaml:"max_edge" mapstructure:"max_edge"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	OpenAI         OpenAIConfig  `yaml:"openai" mapstructure:"openai"`
	Ollama         OllamaConfig  `yaml:"ollama" mapstructure:"ollama"`
	Static         StaticConfig  `yaml:"static" mapstructure:"static"`
}

type OpenAIConfig struct {
	ModelName   string  `yaml:"model_name" mapstructure:"model_name"`
	BaseURL     string  `yaml:"url" mapstructure:"url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP        float64 `yaml:"top_p" mapstructure:"top_p"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

type OllamaConfig struct {
	ModelName   string  `yaml:"model_name" mapstructure:"model_name"`
	BaseURL     string  `yaml:"url" mapstructure:"url"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TopP        float64 `yaml:"top_p" mapstructure:"top_p"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

type StaticConfig struct {
	Caption string `yaml:"caption" mapstructure:"caption"`
}

// JournalConfig 请求审计记录，默认关闭；开启后 /journal 才会注册
type JournalConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// RecordContent 为 false 时不保存 image_url 与 caption
	RecordContent bool         `yaml:"record_content" mapstructure:"record_content"`
	Driver        string       `yaml:"driver" mapstructure:"driver"`
	Capacity      int          `yaml:"capacity" mapstructure:"capacity"`
	SQLite        SQLiteConfig `yaml:"sqlite" mapstructure:"sqlite"`
	Redis         RedisConfig  `yaml:"redis" mapstructure:"redis"`
}

type SQLiteConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	Key      string `yaml:"key" mapstructure:"key"`
}

type ObservabilityConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
}

// Validate 检查配置的一致性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.MaxBytes <= 0 {
		return fmt.Errorf("fetch.max_bytes must be positive")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be positive")
	}
	for _, origin := range c.HTTP.CORS.AllowOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid cors origin: %q", origin)
		}
	}
	for _, cidr := range c.SSRF.DenyCIDRs {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			return fmt.Errorf("invalid ssrf.deny_cidrs entry %q: %w", cidr, err)
		}
	}
	if c.Image.MaxWidth <= 0 || c.Image.MaxHeight <= 0 || c.Image.MaxPixels <= 0 {
		return fmt.Errorf("image limits must be positive")
	}
	if c.Caption.MaxConcurrency < 1 {
		return fmt.Errorf("caption.max_concurrency must be at least 1")
	}
	switch strings.ToLower(c.Caption.Provider) {
	case "openai":
		if c.Caption.OpenAI.APIKey == "" {
			return fmt.Errorf("caption.openai.api_key is required")
		}
	case "ollama":
		if c.Caption.Ollama.ModelName == "" {
			return fmt.Errorf("caption.ollama.model_name is required")
		}
	case "static":
	default:
		return fmt.Errorf("unsupported caption provider: %q", c.Caption.Provider)
	}
	if c.Journal.Enabled {
		switch c.Journal.Driver {
		case "memory", "sqlite", "redis":
		default:
			return fmt.Errorf("unsupported journal driver: %q", c.Journal.Driver)
		}
	}
	return nil
}
