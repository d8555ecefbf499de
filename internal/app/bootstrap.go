package app

import (
	"errors"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/provider"
	"github.com/Performile1/Performile-Version-1-sub001/internal/router"
	"github.com/Performile1/Performile-Version-1-sub001/internal/worker"
)

// BuildRunner 按启动模式组装 HTTP 与 Worker 服务
// 返回的容器由调用方负责关闭
func BuildRunner(cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}
	parsed, err := ParseMode(mode)
	if err != nil {
		return nil, nil, err
	}
	opts := Options{Mode: parsed}

	container := provider.NewContainer(cfg)
	var services []Service

	if opts.runsHTTP() {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
	}

	if opts.runsWorker() {
		workerService, err := worker.NewService(cfg, worker.NewConsumer(container))
		if err != nil {
			container.Close()
			return nil, nil, err
		}
		services = append(services, workerService)
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, container, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	defer container.Close()

	opts.Logger.Infow("app_start",
		"addr", opts.Config.Server.Addr(),
		"mode", opts.Mode,
		"services", len(runner.services),
	)
	return RunWithOptions(runner, opts)
}
