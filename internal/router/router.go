package router

import (
	"net/http"
	"time"

	"todo-tracker/backend/internal/config"
	"todo-tracker/backend/internal/handlers"
	"todo-tracker/backend/internal/middleware"
	"todo-tracker/backend/internal/monitoring"
	"todo-tracker/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	AuthService services.AuthService
	TodoService services.TodoService
	Tokens      *services.TokenService
}

// New wires the route table: open auth endpoints, token-gated todo
// endpoints, and the monitoring surface.
func New(deps Deps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RecoveryWithLog())
	engine.Use(monitoring.MetricsMiddleware())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))
	engine.Use(middleware.RateLimit(deps.Config.RateLimit))

	authHandler := handlers.NewAuthHandler(deps.DB, deps.AuthService, deps.Tokens, deps.Logger)
	todoHandler := handlers.NewTodoHandler(deps.DB, deps.TodoService, deps.Logger)

	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Todo API is running!")
	})
	engine.GET("/health", monitoring.HealthHandler)
	engine.GET("/metrics", monitoring.MetricsHandler)

	auth := engine.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/verify", authHandler.Verify)
	}

	todos := engine.Group("/todos")
	todos.Use(middleware.RequireAuth(deps.Tokens, deps.Logger))
	{
		todos.GET("", todoHandler.GetTodos)
		todos.POST("", todoHandler.CreateTodo)
		todos.PUT("/:id", todoHandler.UpdateTodo)
		todos.DELETE("/:id", todoHandler.DeleteTodo)
	}

	return engine
}
