// @title Course Studio 后端 API
// @version 1.0
// @description 课程编辑、测验判分与证书颁发服务。

// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"
	"path/filepath"

	"course_studio_backend/internal/app"
	"course_studio_backend/internal/config"
	"course_studio_backend/pkg/configwatcher"
	"course_studio_backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	watch := flag.Bool("watch", true, "监听配置文件变更并热更新")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	if *watch {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			path := filepath.Join(*configDir, "config.yaml")
			if err := configwatcher.WatchConfig(path, application.ApplyConfig, stop); err != nil {
				logger.Log.Error("Config watcher stopped", zap.Error(err))
			}
		}()
	}

	application.Run()
}
