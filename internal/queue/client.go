package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// DefaultQueue 默认队列名称
	DefaultQueue = constants.QueueDefault

	defaultEmailMaxRetry   = 5
	defaultNotifyMaxRetry  = 3
	defaultTaskTimeout     = time.Minute
	courierNotifyRetention = 24 * time.Hour
)

// ErrQueueDisabled 队列未启用，调用方应回退为同步处理
var ErrQueueDisabled = errors.New("queue disabled")

// Client asynq 客户端封装，未启用时所有投递返回 ErrQueueDisabled
type Client struct {
	client *asynq.Client
}

// NewClient 创建队列客户端
func NewClient(cfg *config.QueueConfig) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		return &Client{}, nil
	}
	return &Client{client: asynq.NewClient(buildRedisOpt(cfg))}, nil
}

// Enabled 判断是否启用
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// Close 关闭客户端
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

// EnqueueEmail 投递邮件任务，失败按指数退避重试
func (c *Client) EnqueueEmail(payload EmailPayload, opts ...asynq.Option) error {
	task, err := NewEmailTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, append([]asynq.Option{
		asynq.Queue(DefaultQueue),
		asynq.MaxRetry(defaultEmailMaxRetry),
		asynq.Timeout(defaultTaskTimeout),
	}, opts...)...)
}

// EnqueueCourierAssignment 投递骑手通知，同一请求同一骑手在保留期内只入队一次
func (c *Client) EnqueueCourierAssignment(payload CourierAssignmentPayload, opts ...asynq.Option) error {
	task, err := NewCourierAssignmentTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(task, append([]asynq.Option{
		asynq.Queue(constants.QueueCritical),
		asynq.MaxRetry(defaultNotifyMaxRetry),
		asynq.Timeout(defaultTaskTimeout),
		asynq.TaskID(payload.taskID()),
		asynq.Retention(courierNotifyRetention),
	}, opts...)...)
}

// EnqueueReminderSweep 投递一次提醒扫描，同一时间窗内去重
func (c *Client) EnqueueReminderSweep(payload ReminderSweepPayload, window time.Duration) error {
	task, err := NewReminderSweepTask(payload)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(DefaultQueue), asynq.MaxRetry(0)}
	if window > 0 {
		opts = append(opts, asynq.Unique(window))
	}
	return c.enqueue(task, opts...)
}

// enqueue 去重命中（Unique/TaskID）视为成功
func (c *Client) enqueue(task *asynq.Task, opts ...asynq.Option) error {
	if !c.Enabled() {
		return ErrQueueDisabled
	}
	_, err := c.client.Enqueue(task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) || errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s failed: %w", task.Type(), err)
	}
	return nil
}

// BuildServerConfig 生成 worker 端 asynq 配置
func BuildServerConfig(cfg *config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := 10
	queues := map[string]int{DefaultQueue: 1, constants.QueueCritical: 1}
	if cfg != nil {
		if cfg.Concurrency > 0 {
			concurrency = cfg.Concurrency
		}
		if len(cfg.Queues) > 0 {
			queues = cfg.Queues
		}
	}
	return buildRedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
	}
}

func buildRedisOpt(cfg *config.QueueConfig) asynq.RedisClientOpt {
	opt := asynq.RedisClientOpt{Addr: "127.0.0.1:6379"}
	if cfg == nil {
		return opt
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	opt.Addr = fmt.Sprintf("%s:%d", host, port)
	opt.Password = cfg.Password
	opt.DB = cfg.DB
	return opt
}
