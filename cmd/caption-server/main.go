// @title caption-server API
// @version 1.0
// @description 图片描述服务，按 URL 抓取公网图片并返回一句话描述
// @host localhost:8080
// @BasePath /
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"caption-server-go/internal/bootstrap"
)

func main() {
	fmt.Printf("[%s] [INFO] [引导] 开始启动 caption-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "caption-server failed: %v\n", err)
		os.Exit(1)
	}
}
