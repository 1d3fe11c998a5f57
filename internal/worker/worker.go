package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type JobType string

const (
	JobTypeDueReminder JobType = "due_reminder"
	JobTypeCleanup     JobType = "cleanup"
)

type Job struct {
	ID        string                 `json:"id"`
	Type      JobType                `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	Attempts  int                    `json:"attempts"`
	MaxTries  int                    `json:"max_tries"`
	CreatedAt time.Time              `json:"created_at"`
}

type JobHandler func(ctx context.Context, job *Job) error

// Worker drains redis-backed job queues with a pool of goroutines.
// Failed jobs are re-enqueued until their MaxTries budget runs out.
type Worker struct {
	client       *redis.Client
	logger       *zap.Logger
	handlers     map[JobType]JobHandler
	queues       []string
	pollInterval time.Duration
	mu           sync.RWMutex
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

type Config struct {
	RedisClient  *redis.Client
	Logger       *zap.Logger
	PollInterval time.Duration
	Queues       []string
}

func NewWorker(config Config) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	queues := config.Queues
	if len(queues) == 0 {
		queues = []string{"default"}
	}

	return &Worker{
		client:       config.RedisClient,
		logger:       logger,
		handlers:     make(map[JobType]JobHandler),
		queues:       queues,
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (w *Worker) RegisterHandler(jobType JobType, handler JobHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = handler
}

// Enqueue pushes a job onto a queue. Jobs without an id or retry
// budget get defaults assigned here.
func (w *Worker) Enqueue(ctx context.Context, queue string, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.Must(uuid.NewV4()).String()
	}
	if job.MaxTries <= 0 {
		job.MaxTries = 3
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return w.client.RPush(ctx, queueKey(queue), data).Err()
}

func (w *Worker) Start(concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	w.logger.Info("starting worker", zap.Int("concurrency", concurrency), zap.Strings("queues", w.queues))

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop()
	}
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker")
	w.cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) workerLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			processed, err := w.ProcessNextJob(w.ctx)
			if err != nil {
				w.logger.Error("job processing failed", zap.Error(err))
			}
			if !processed {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(w.pollInterval):
				}
			}
		}
	}
}

// ProcessNextJob pops and runs at most one job across the configured
// queues, in queue priority order. It reports whether a job was found.
func (w *Worker) ProcessNextJob(ctx context.Context) (bool, error) {
	for _, queue := range w.queues {
		data, err := w.client.LPop(ctx, queueKey(queue)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to pop from queue %s: %w", queue, err)
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			w.logger.Error("discarding undecodable job", zap.String("queue", queue), zap.Error(err))
			return true, nil
		}

		w.runJob(ctx, queue, &job)
		return true, nil
	}
	return false, nil
}

func (w *Worker) runJob(ctx context.Context, queue string, job *Job) {
	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()

	if !ok {
		w.logger.Warn("no handler registered for job type", zap.String("type", string(job.Type)))
		return
	}

	job.Attempts++
	if err := handler(ctx, job); err != nil {
		w.logger.Error("job handler failed",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("attempt", job.Attempts),
			zap.Error(err),
		)
		if job.Attempts < job.MaxTries {
			if data, marshalErr := json.Marshal(job); marshalErr == nil {
				if pushErr := w.client.RPush(ctx, queueKey(queue), data).Err(); pushErr != nil {
					w.logger.Error("failed to re-enqueue job", zap.String("job_id", job.ID), zap.Error(pushErr))
				}
			}
		}
	}
}

func queueKey(queue string) string {
	return "queue:" + queue
}
