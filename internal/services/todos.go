package services

import (
	"errors"
	"strings"
	"time"

	"todo-tracker/backend/internal/models"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

var ErrTitleRequired = errors.New("title is required")

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	defaultSortKey  = "title"
)

// TodoInput is the full editable field set of a todo. Updates replace
// every field; there are no partial-patch semantics.
type TodoInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
}

// TodoQuery carries the request-level parameters of a list query.
type TodoQuery struct {
	Page      int
	PageSize  int
	Search    string
	Status    string
	Priority  string
	SortBy    string
	SortOrder string
}

// TodoPage is a single window of the filtered, sorted result set.
type TodoPage struct {
	Todos      []models.Todo `json:"todos"`
	TotalPages int64         `json:"totalPages"`
	TotalTodos int64         `json:"totalTodos"`
}

type TodoService interface {
	CreateTodo(db *gorm.DB, userID uuid.UUID, input TodoInput) (models.Todo, error)
	UpdateTodo(db *gorm.DB, userID, id uuid.UUID, input TodoInput) (models.Todo, error)
	DeleteTodo(db *gorm.DB, userID, id uuid.UUID) error
	QueryTodos(db *gorm.DB, userID uuid.UUID, query TodoQuery) (TodoPage, error)
	ListDueSoon(db *gorm.DB, within time.Duration) ([]models.Todo, error)
}

type TodoServiceImpl struct{}

func NewTodoService() *TodoServiceImpl {
	return &TodoServiceImpl{}
}

// sortColumns whitelists the sortable fields. "priority" maps onto the
// stored numeric rank so High > Medium > Low > unset instead of the
// lexical order of the labels.
var sortColumns = map[string]string{
	"title":       "title",
	"description": "description",
	"status":      "status",
	"priority":    "priority_level",
	"dueDate":     "due_date",
	"due_date":    "due_date",
	"createdAt":   "created_at",
	"created_at":  "created_at",
}

func (s *TodoServiceImpl) CreateTodo(db *gorm.DB, userID uuid.UUID, input TodoInput) (models.Todo, error) {
	if strings.TrimSpace(input.Title) == "" {
		return models.Todo{}, ErrTitleRequired
	}

	status := input.Status
	if status == "" {
		status = models.StatusPending
	}

	todo := models.Todo{
		ID:            uuid.Must(uuid.NewV4()),
		UserID:        userID,
		Title:         input.Title,
		Description:   input.Description,
		Status:        status,
		Priority:      input.Priority,
		PriorityLevel: models.PriorityRank(input.Priority),
		DueDate:       parseDueDate(input.DueDate),
	}
	if err := db.Create(&todo).Error; err != nil {
		return models.Todo{}, err
	}

	return todo, nil
}

// UpdateTodo replaces the editable fields of the caller's todo. A todo
// owned by someone else is indistinguishable from an absent one.
func (s *TodoServiceImpl) UpdateTodo(db *gorm.DB, userID, id uuid.UUID, input TodoInput) (models.Todo, error) {
	if strings.TrimSpace(input.Title) == "" {
		return models.Todo{}, ErrTitleRequired
	}

	var todo models.Todo
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&todo).Error; err != nil {
		return models.Todo{}, err
	}

	todo.Title = input.Title
	todo.Description = input.Description
	todo.Status = input.Status
	todo.Priority = input.Priority
	todo.PriorityLevel = models.PriorityRank(input.Priority)
	todo.DueDate = parseDueDate(input.DueDate)

	if err := db.Save(&todo).Error; err != nil {
		return models.Todo{}, err
	}

	return todo, nil
}

func (s *TodoServiceImpl) DeleteTodo(db *gorm.DB, userID, id uuid.UUID) error {
	result := db.Where("id = ? AND user_id = ?", id, userID).Delete(&models.Todo{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// QueryTodos runs the composable list query: ownership scoping, then the
// optional search/status/priority predicates ANDed together, then
// sorting, then windowing. The total count is taken before windowing.
func (s *TodoServiceImpl) QueryTodos(db *gorm.DB, userID uuid.UUID, query TodoQuery) (TodoPage, error) {
	page := query.Page
	if page < 1 {
		page = DefaultPage
	}
	pageSize := query.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	tx := db.Model(&models.Todo{}).Where("user_id = ?", userID)

	if query.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(query.Search)) + "%"
		tx = tx.Where(
			db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).Or(`LOWER(description) LIKE ? ESCAPE '\'`, pattern),
		)
	}
	if query.Status != "" {
		tx = tx.Where("status = ?", query.Status)
	}
	if query.Priority != "" {
		tx = tx.Where("priority = ?", query.Priority)
	}

	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return TodoPage{}, err
	}

	column, ok := sortColumns[query.SortBy]
	if !ok {
		column = defaultSortKey
	}
	direction := "asc"
	if query.SortOrder == "desc" {
		direction = "desc"
	}

	todos := []models.Todo{}
	err := tx.
		Order(column + " " + direction).
		Order("id asc"). // stable tie-break so pages never overlap
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&todos).Error
	if err != nil {
		return TodoPage{}, err
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

	return TodoPage{Todos: todos, TotalPages: totalPages, TotalTodos: total}, nil
}

// ListDueSoon returns unfinished todos with a due date inside the
// lookahead window, across all owners. Used by the reminder scanner.
func (s *TodoServiceImpl) ListDueSoon(db *gorm.DB, within time.Duration) ([]models.Todo, error) {
	now := time.Now()
	todos := []models.Todo{}
	err := db.
		Where("due_date IS NOT NULL AND due_date >= ? AND due_date <= ?", now, now.Add(within)).
		Where("status <> ?", models.StatusComplete).
		Find(&todos).Error
	if err != nil {
		return nil, err
	}
	return todos, nil
}

// escapeLike neutralizes LIKE metacharacters in a search term so the
// term matches as a literal substring.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// parseDueDate accepts RFC3339 or plain dates. Anything unparseable is
// treated as no due date rather than an error.
func parseDueDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
