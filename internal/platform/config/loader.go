package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix 环境变量覆盖前缀，例如 CAPTION_CAPTION_PROVIDER=static
	EnvPrefix = "CAPTION"
	// EnvConfigPath 指定配置文件路径的环境变量
	EnvConfigPath = "CAPTION_CONFIG"
	// DefaultPath 未指定时尝试读取的配置文件
	DefaultPath = "config.yaml"
)

// Loader 按 默认值 -> 配置文件 -> 环境变量 的顺序合并配置
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader that reads .env, config.yaml and CAPTION_* variables.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath pins the configuration file instead of probing CAPTION_CONFIG and config.yaml.
func (l *Loader) WithPath(path string) *Loader {
	l.path = path
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load 读取并校验配置
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		// .env 不存在时静默跳过
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	base, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("序列化默认配置失败: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("加载默认配置失败: %w", err)
	}

	path := l.resolvePath()
	origin := "default"
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
		}
		if err := v.MergeConfig(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
		}
		origin = path
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: origin}, nil
}

func (l *Loader) resolvePath() string {
	if l.path != "" {
		return l.path
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}
