package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/internal/automation/domain"
	"fieldops_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue = "automations"
	// The processor settles generator failures itself, so retries only cover
	// infrastructure errors.
	taskMaxRetry       = 3
	defaultTaskTimeout = 2 * time.Minute
)

// Client enqueues automation tasks on asynq.
type Client struct {
	client  *asynq.Client
	queue   string
	timeout time.Duration
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:  asynq.NewClient(opt),
		queue:   queueName(cfg),
		timeout: taskTimeout(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueAutomation hands a due item to the workers. The task id is the
// automation id, so an item already queued is not queued twice; that case
// reports enqueued=false without an error.
func (c *Client) EnqueueAutomation(ctx context.Context, item domain.WorkItem) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}

	task, err := NewAutomationProcessTask(AutomationProcessPayload{
		AutomationID: item.ID.String(),
		AccountID:    item.AccountID.String(),
	})
	if err != nil {
		return false, err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID(item.ID.String()),
		asynq.Queue(c.queue),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(c.timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAutomationQueue(); queue != "" {
		return queue
	}
	return defaultQueue
}

// taskTimeout is the asynq deadline for one task. It always exceeds the
// generation timeout so the processor can record the outcome itself.
func taskTimeout(cfg config.SchedulerConfig) time.Duration {
	if timeout := cfg.GetAutomationTaskTimeout(); timeout > 0 {
		return timeout
	}
	return defaultTaskTimeout
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
