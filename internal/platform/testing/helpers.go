package testing

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"caption-server-go/internal/platform/config"
	"caption-server-go/internal/platform/logging"
)

// SetupTestConfig 返回使用 static 引擎、关闭审计落盘的配置
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "debug"
	cfg.Log.Dir = ""
	cfg.Caption.Provider = "static"
	cfg.Caption.Static.Caption = "a test image"
	cfg.Journal.Driver = "memory"
	return cfg
}

// SetupTestLogger returns a console-less logger for tests.
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	logger, err := logging.New(logging.Config{
		Level:   "debug",
		Console: &bytes.Buffer{},
	})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

// PNGBytes encodes a solid w×h image.
func PNGBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}
