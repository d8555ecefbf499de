package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
// 队列启用时额外由 asynq 调度器周期投递提醒扫描任务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	scheduler     *asynq.Scheduler
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.Config, consumer *Consumer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	svc := &Service{
		name:          "worker",
		consumer:      consumer,
		sweepInterval: cfg.Review.SweepInterval(),
	}
	if !cfg.Queue.Enabled {
		return svc, nil
	}

	opt, serverCfg := queue.BuildServerConfig(&cfg.Queue)
	svc.server = asynq.NewServer(opt, serverCfg)
	svc.mux = asynq.NewServeMux()
	consumer.Register(svc.mux)

	scheduler, err := newSweepScheduler(opt, svc.sweepInterval, cfg.Review.SweepBatchSize)
	if err != nil {
		return nil, err
	}
	svc.scheduler = scheduler
	return svc, nil
}

func newSweepScheduler(opt asynq.RedisClientOpt, interval time.Duration, limit int) (*asynq.Scheduler, error) {
	task, err := queue.NewReminderSweepTask(queue.ReminderSweepPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{LogLevel: asynq.WarnLevel})
	spec := fmt.Sprintf("@every %s", interval)
	// 同一间隔内只保留一个待执行扫描，多个 worker 进程同时调度时不会堆积
	if _, err := scheduler.Register(spec, task, asynq.Queue(constants.QueueDefault), asynq.Unique(interval)); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
// 进程内扫描始终运行，与调度器投递的扫描任务并发执行时由领取条件保证互斥
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.server != nil {
		if err := s.server.Start(s.mux); err != nil {
			return err
		}
		if s.scheduler != nil {
			if err := s.scheduler.Start(); err != nil {
				return err
			}
		}
	} else {
		logger.Infow("worker_queue_disabled_local_sweep_only", "interval", s.sweepInterval.String())
	}
	s.runReminderSweepLoop(ctx)
	return nil
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}

func (s *Service) runReminderSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.ReminderService == nil {
		<-ctx.Done()
		return
	}
	runOnce := func() {
		if _, err := s.consumer.ReminderService.SweepDue(ctx, time.Now()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warnw("worker_reminder_sweep_due_failed", "error", err)
		}
	}
	runOnce()

	interval := s.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
