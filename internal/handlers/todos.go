package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"todo-tracker/backend/internal/middleware"
	"todo-tracker/backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TodoHandler struct {
	db          *gorm.DB
	todoService services.TodoService
	logger      *zap.Logger
}

func NewTodoHandler(db *gorm.DB, todoService services.TodoService, logger *zap.Logger) *TodoHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TodoHandler{db: db, todoService: todoService, logger: logger}
}

type todoInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
}

func (in todoInput) toServiceInput() services.TodoInput {
	return services.TodoInput{
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
	}
}

// GetTodos serves the filtered, sorted, paginated list for the caller.
func (h *TodoHandler) GetTodos(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	query := services.TodoQuery{
		Page:      parseIntOrDefault(c.Query("page"), services.DefaultPage),
		PageSize:  parseIntOrDefault(c.Query("limit"), services.DefaultPageSize),
		Search:    c.Query("search"),
		Status:    c.Query("status"),
		Priority:  c.Query("priority"),
		SortBy:    c.DefaultQuery("sortBy", "title"),
		SortOrder: c.DefaultQuery("sortOrder", "asc"),
	}

	page, err := h.todoService.QueryTodos(h.db, userID, query)
	if err != nil {
		h.logger.Error("todo query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch todos"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *TodoHandler) CreateTodo(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var input todoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if input.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required and must be a string"})
		return
	}

	todo, err := h.todoService.CreateTodo(h.db, userID, input.toServiceInput())
	if err != nil {
		if errors.Is(err, services.ErrTitleRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required and must be a string"})
			return
		}
		h.logger.Error("todo creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create todo"})
		return
	}

	c.JSON(http.StatusCreated, todo)
}

func (h *TodoHandler) UpdateTodo(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))

	var input todoInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if input.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required and must be a string"})
		return
	}

	todo, err := h.todoService.UpdateTodo(h.db, userID, id, input.toServiceInput())
	if err != nil {
		if errors.Is(err, services.ErrTitleRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required and must be a string"})
			return
		}
		h.handleTodoError(c, err)
		return
	}

	c.JSON(http.StatusOK, todo)
}

func (h *TodoHandler) DeleteTodo(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id := uuid.FromStringOrNil(c.Param("id"))

	if err := h.todoService.DeleteTodo(h.db, userID, id); err != nil {
		h.handleTodoError(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

func (h *TodoHandler) handleTodoError(c *gin.Context, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "todo not found"})
		return
	}
	h.logger.Error("todo request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process todo request"})
}

func parseIntOrDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
