package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"todo-tracker/backend/internal/models"
	"todo-tracker/backend/internal/services"
	"todo-tracker/backend/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupWorker(t *testing.T, queues ...string) (*worker.Worker, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	w := worker.NewWorker(worker.Config{
		RedisClient:  client,
		PollInterval: 10 * time.Millisecond,
		Queues:       queues,
	})
	return w, client
}

func TestWorker_EnqueueAndProcess(t *testing.T) {
	w, _ := setupWorker(t, "default")

	var handled *worker.Job
	w.RegisterHandler(worker.JobTypeCleanup, func(ctx context.Context, job *worker.Job) error {
		handled = job
		return nil
	})

	ctx := context.Background()
	err := w.Enqueue(ctx, "default", &worker.Job{
		Type:    worker.JobTypeCleanup,
		Payload: map[string]interface{}{"reason": "test"},
	})
	if err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	processed, err := w.ProcessNextJob(ctx)
	if err != nil {
		t.Fatalf("Failed to process job: %v", err)
	}
	if !processed {
		t.Fatal("Expected a job to be processed")
	}

	if handled == nil {
		t.Fatal("Expected handler to run")
	}
	if handled.Payload["reason"] != "test" {
		t.Errorf("Expected payload to round-trip, got %v", handled.Payload)
	}
	if handled.ID == "" {
		t.Error("Expected an id to be assigned at enqueue time")
	}
}

func TestWorker_EmptyQueue(t *testing.T) {
	w, _ := setupWorker(t, "default")

	processed, err := w.ProcessNextJob(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error on empty queue: %v", err)
	}
	if processed {
		t.Error("Expected no job on empty queue")
	}
}

func TestWorker_RetriesFailedJobs(t *testing.T) {
	w, _ := setupWorker(t, "default")

	attempts := 0
	w.RegisterHandler(worker.JobTypeCleanup, func(ctx context.Context, job *worker.Job) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		return nil
	})

	ctx := context.Background()
	if err := w.Enqueue(ctx, "default", &worker.Job{Type: worker.JobTypeCleanup, MaxTries: 3}); err != nil {
		t.Fatalf("Failed to enqueue job: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := w.ProcessNextJob(ctx); err != nil {
			t.Fatalf("Failed to process job: %v", err)
		}
	}

	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}

	processed, _ := w.ProcessNextJob(ctx)
	if processed {
		t.Error("Expected queue drained after successful retry")
	}
}

func TestWorker_QueuePriorityOrder(t *testing.T) {
	w, _ := setupWorker(t, "default", "reminders")

	var order []string
	w.RegisterHandler(worker.JobTypeCleanup, func(ctx context.Context, job *worker.Job) error {
		order = append(order, job.Payload["queue"].(string))
		return nil
	})

	ctx := context.Background()
	w.Enqueue(ctx, "reminders", &worker.Job{Type: worker.JobTypeCleanup, Payload: map[string]interface{}{"queue": "reminders"}})
	w.Enqueue(ctx, "default", &worker.Job{Type: worker.JobTypeCleanup, Payload: map[string]interface{}{"queue": "default"}})

	w.ProcessNextJob(ctx)
	w.ProcessNextJob(ctx)

	if len(order) != 2 || order[0] != "default" || order[1] != "reminders" {
		t.Errorf("Expected default queue drained first, got %v", order)
	}
}

func TestReminderScanner_EnqueuesDueTodosOnce(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Todo{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	w, client := setupWorker(t, "reminders")
	todoService := services.NewTodoService()

	due := time.Now().Add(2 * time.Hour).Format(time.RFC3339)
	if _, err := todoService.CreateTodo(db, uuid.Must(uuid.NewV4()), services.TodoInput{
		Title: "submit report", DueDate: due,
	}); err != nil {
		t.Fatalf("Failed to seed todo: %v", err)
	}

	scanner := worker.NewReminderScanner(db, client, todoService, w, nil, time.Minute, 24*time.Hour)

	ctx := context.Background()
	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("Failed to scan: %v", err)
	}

	reminded := 0
	w.RegisterHandler(worker.JobTypeDueReminder, func(ctx context.Context, job *worker.Job) error {
		reminded++
		if job.Payload["title"] != "submit report" {
			t.Errorf("Expected title in payload, got %v", job.Payload["title"])
		}
		return nil
	})
	for {
		processed, err := w.ProcessNextJob(ctx)
		if err != nil {
			t.Fatalf("Failed to process job: %v", err)
		}
		if !processed {
			break
		}
	}
	if reminded != 1 {
		t.Fatalf("Expected 1 reminder, got %d", reminded)
	}

	// A second scan must not re-enqueue the same reminder.
	if err := scanner.ScanOnce(ctx); err != nil {
		t.Fatalf("Failed to rescan: %v", err)
	}
	processed, _ := w.ProcessNextJob(ctx)
	if processed {
		t.Error("Expected no duplicate reminder for the same due date")
	}
}
