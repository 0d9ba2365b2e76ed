package scheduler

import (
	"context"
	"errors"
	"time"

	"leadgen_backend/platform/config"
	"leadgen_backend/platform/redisclient"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	searchJobMaxRetry   = 3
	searchJobTimeout    = 5 * time.Minute
	backfillMaxRetry    = 2
	backfillUniqueFor   = 10 * time.Minute
	backfillTaskTimeout = 3 * time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSearchJob queues a search job. The task ID is the job ID so a
// double submit of the same job is rejected by the queue.
func (c *Client) EnqueueSearchJob(ctx context.Context, jobID, userID uuid.UUID) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler client not configured")
	}

	task, err := NewSearchJobTask(SearchJobPayload{JobID: jobID.String(), UserID: userID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(jobID.String()),
		asynq.MaxRetry(searchJobMaxRetry),
		asynq.Timeout(searchJobTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// EnqueueDiscoveryBackfill queues a cache backfill. Identical requests within
// the uniqueness window collapse into one task.
func (c *Client) EnqueueDiscoveryBackfill(ctx context.Context, payload DiscoveryBackfillPayload) error {
	if c == nil || c.client == nil {
		return errors.New("scheduler client not configured")
	}

	task, err := NewDiscoveryBackfillTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(backfillMaxRetry),
		asynq.Unique(backfillUniqueFor),
		asynq.Timeout(backfillTaskTimeout),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redisclient.Options(redisURL, tlsInsecure)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
