// versiond 以 HTTP 服务的形式提供可持久化线段树、有序集合与森林合并统计。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/wyfcoding/versioned/bootstrap"
)

func main() {
	configPath := flag.String("config", "configs/config.toml", "path to config file")
	flag.Parse()

	cfg, logger, err := bootstrap.Initialize(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	b, err := bootstrap.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	if err := b.App().Run(); err != nil {
		logger.Error("versiond exited with error", "error", err)
		os.Exit(1)
	}
}
