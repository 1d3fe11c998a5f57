package services

import (
	"errors"
	"fmt"
	"time"

	"todo-tracker/backend/internal/cache"
	"todo-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CachedTodoService is a read-through cache in front of a TodoService.
// List results are cached per user and full parameter set; any mutation
// by a user drops that user's cached pages. It is opt-in: the plain
// service remains the default wiring.
type CachedTodoService struct {
	todoService TodoService
	cache       *cache.RedisCache
	ttl         time.Duration
	logger      *zap.Logger
}

func NewCachedTodoService(todoService TodoService, cacheInstance *cache.RedisCache, ttl time.Duration, logger *zap.Logger) *CachedTodoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedTodoService{
		todoService: todoService,
		cache:       cacheInstance,
		ttl:         ttl,
		logger:      logger,
	}
}

func queryCacheKey(userID uuid.UUID, q TodoQuery) string {
	return fmt.Sprintf("user_todos:%s:%d:%d:%s:%s:%s:%s:%s",
		userID.String(), q.Page, q.PageSize, q.Search, q.Status, q.Priority, q.SortBy, q.SortOrder)
}

func (s *CachedTodoService) invalidateUser(userID uuid.UUID) {
	pattern := fmt.Sprintf("user_todos:%s:*", userID.String())
	if err := s.cache.DeletePattern(pattern); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func (s *CachedTodoService) QueryTodos(db *gorm.DB, userID uuid.UUID, query TodoQuery) (TodoPage, error) {
	key := queryCacheKey(userID, query)

	var cached TodoPage
	if err := s.cache.Get(key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	page, err := s.todoService.QueryTodos(db, userID, query)
	if err != nil {
		return page, err
	}

	if err := s.cache.Set(key, page, s.ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}

	return page, nil
}

func (s *CachedTodoService) CreateTodo(db *gorm.DB, userID uuid.UUID, input TodoInput) (models.Todo, error) {
	todo, err := s.todoService.CreateTodo(db, userID, input)
	if err != nil {
		return todo, err
	}
	s.invalidateUser(userID)
	return todo, nil
}

func (s *CachedTodoService) UpdateTodo(db *gorm.DB, userID, id uuid.UUID, input TodoInput) (models.Todo, error) {
	todo, err := s.todoService.UpdateTodo(db, userID, id, input)
	if err != nil {
		return todo, err
	}
	s.invalidateUser(userID)
	return todo, nil
}

func (s *CachedTodoService) DeleteTodo(db *gorm.DB, userID, id uuid.UUID) error {
	if err := s.todoService.DeleteTodo(db, userID, id); err != nil {
		return err
	}
	s.invalidateUser(userID)
	return nil
}

func (s *CachedTodoService) ListDueSoon(db *gorm.DB, within time.Duration) ([]models.Todo, error) {
	return s.todoService.ListDueSoon(db, within)
}

func (s *CachedTodoService) CacheStats() map[string]int64 {
	return s.cache.Stats()
}
