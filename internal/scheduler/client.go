package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"civicfix_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	// clusterPassUniqueFor collapses bursts of intake into a single pending pass.
	clusterPassUniqueFor = 30 * time.Second
	// submissionRunUniqueFor keeps at most one run queued at a time.
	submissionRunUniqueFor = 10 * time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
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
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueClusterPass queues a clustering pass. A pass already pending is
// reused rather than duplicated.
func (c *Client) EnqueueClusterPass(ctx context.Context, reason string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewClusterPassTask(ClusterPassPayload{Reason: reason})
	if err != nil {
		return err
	}
	return c.enqueueUnique(ctx, task, clusterPassUniqueFor, asynq.MaxRetry(3))
}

// EnqueueSubmissionRun queues a submission run unless one is already pending.
func (c *Client) EnqueueSubmissionRun(ctx context.Context, trigger string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSubmissionRunTask(SubmissionRunPayload{Trigger: trigger})
	if err != nil {
		return err
	}
	// the orchestrator retries per report; a failed run waits for the next trigger
	return c.enqueueUnique(ctx, task, submissionRunUniqueFor, asynq.MaxRetry(0))
}

func (c *Client) enqueueUnique(ctx context.Context, task *asynq.Task, ttl time.Duration, opts ...asynq.Option) error {
	opts = append([]asynq.Option{asynq.Queue(c.queue), asynq.Unique(ttl)}, opts...)
	_, err := c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	return queue
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
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
