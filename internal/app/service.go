package app

import (
	"context"
	"errors"
	"os/signal"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service 可被 Runner 托管的长驻服务
// Start 阻塞直到 ctx 结束或出错，Stop 在退出阶段调用
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runner 并行运行一组服务，任一服务退出即触发整体停止
type Runner struct {
	services []Service
	log      *zap.SugaredLogger
}

// NewRunner 创建服务运行器
func NewRunner(services ...Service) *Runner {
	return &Runner{services: services}
}

// RunWithOptions 运行服务并处理系统信号
func RunWithOptions(runner *Runner, opts Options) error {
	if runner == nil {
		return errors.New("runner is nil")
	}
	opts = normalizeOptions(opts)
	ctx := context.Background()
	if len(opts.Signals) > 0 {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, opts.Signals...)
		defer stop()
	}
	runner.log = opts.Logger
	return runner.Run(ctx, opts.ShutdownTimeout)
}

// Run 启动全部服务，ctx 结束或首个服务返回后依次调用 Stop
// 由信号触发的正常退出返回 nil
func (r *Runner) Run(ctx context.Context, stopTimeout time.Duration) error {
	if r == nil || len(r.services) == 0 {
		return errors.New("no services to run")
	}
	for _, svc := range r.services {
		if svc == nil {
			return errors.New("service is nil")
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, svc := range r.services {
		svc := svc
		group.Go(func() error {
			r.infow("service_started", "service", svc.Name())
			err := svc.Start(groupCtx)
			r.infow("service_exited", "service", svc.Name(), "error", err)
			if err == nil {
				// 服务自行结束时同样拉停其余服务
				return errServiceExited
			}
			return err
		})
	}

	stopped := make(chan struct{})
	go func() {
		<-groupCtx.Done()
		r.stopAll(stopTimeout)
		close(stopped)
	}()

	err := group.Wait()
	<-stopped
	if errors.Is(err, errServiceExited) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var errServiceExited = errors.New("service exited")

func (r *Runner) stopAll(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for i := len(r.services) - 1; i >= 0; i-- {
		svc := r.services[i]
		if err := svc.Stop(stopCtx); err != nil && r.log != nil {
			r.log.Errorw("service_stop_failed", "service", svc.Name(), "error", err)
		}
	}
}

func (r *Runner) infow(msg string, kv ...interface{}) {
	if r.log != nil {
		r.log.Infow(msg, kv...)
	}
}
