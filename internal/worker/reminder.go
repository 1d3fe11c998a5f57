package worker

import (
	"context"
	"fmt"
	"time"

	"todo-tracker/backend/internal/services"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reminderQueue = "reminders"

// ReminderScanner periodically finds todos coming due and enqueues one
// reminder job per todo and due date. Dedup is a redis SETNX marker
// with the lookahead window as TTL, so a todo is not reminded again
// until its due date changes.
type ReminderScanner struct {
	db          *gorm.DB
	client      *redis.Client
	todoService services.TodoService
	worker      *Worker
	logger      *zap.Logger
	interval    time.Duration
	lookahead   time.Duration
}

func NewReminderScanner(db *gorm.DB, client *redis.Client, todoService services.TodoService, w *Worker, logger *zap.Logger, interval, lookahead time.Duration) *ReminderScanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScanner{
		db:          db,
		client:      client,
		todoService: todoService,
		worker:      w,
		logger:      logger,
		interval:    interval,
		lookahead:   lookahead,
	}
}

func (s *ReminderScanner) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.ScanOnce(ctx); err != nil {
					s.logger.Error("reminder scan failed", zap.Error(err))
				}
			}
		}
	}()
}

// ScanOnce enqueues reminders for everything due inside the lookahead
// window that has not been reminded yet.
func (s *ReminderScanner) ScanOnce(ctx context.Context) error {
	todos, err := s.todoService.ListDueSoon(s.db, s.lookahead)
	if err != nil {
		return fmt.Errorf("failed to list due todos: %w", err)
	}

	for _, todo := range todos {
		if todo.DueDate == nil {
			continue
		}

		marker := fmt.Sprintf("reminded:%s:%d", todo.ID.String(), todo.DueDate.Unix())
		set, err := s.client.SetNX(ctx, marker, 1, s.lookahead).Result()
		if err != nil {
			return fmt.Errorf("failed to mark reminder: %w", err)
		}
		if !set {
			continue
		}

		job := &Job{
			Type: JobTypeDueReminder,
			Payload: map[string]interface{}{
				"todo_id":  todo.ID.String(),
				"user_id":  todo.UserID.String(),
				"title":    todo.Title,
				"due_date": todo.DueDate.Format(time.RFC3339),
			},
		}
		if err := s.worker.Enqueue(ctx, reminderQueue, job); err != nil {
			return fmt.Errorf("failed to enqueue reminder: %w", err)
		}
	}

	return nil
}

// DueReminderHandler logs upcoming due dates. Actual delivery (mail,
// push) sits behind whichever transport gets wired in later.
func DueReminderHandler(logger *zap.Logger) JobHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job *Job) error {
		logger.Info("todo due soon",
			zap.Any("todo_id", job.Payload["todo_id"]),
			zap.Any("user_id", job.Payload["user_id"]),
			zap.Any("title", job.Payload["title"]),
			zap.Any("due_date", job.Payload["due_date"]),
		)
		return nil
	}
}
