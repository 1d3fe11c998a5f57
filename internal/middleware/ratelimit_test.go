package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todo-tracker/backend/internal/config"
	"todo-tracker/backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

func setupRateLimitedRouter(cfg config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(middleware.RateLimit(cfg))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	return router
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	router := setupRateLimitedRouter(config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 60,
		BurstSize:      3,
	})

	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status %d, got %d", i+1, http.StatusOK, w.Code)
		}
	}
}

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	router := setupRateLimitedRouter(config.RateLimitConfig{
		Enabled:        true,
		RequestsPerMin: 1,
		BurstSize:      1,
	})

	req, _ := http.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", w.Code)
	}

	req, _ = http.NewRequest("GET", "/test", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status %d, got %d", http.StatusTooManyRequests, w.Code)
	}
}

func TestRateLimit_DisabledPassesEverything(t *testing.T) {
	router := setupRateLimitedRouter(config.RateLimitConfig{
		Enabled:         false,
		RequestsPerMin:  1,
		BurstSize:       1,
		CleanupInterval: time.Minute,
	})

	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: expected status %d, got %d", i+1, http.StatusOK, w.Code)
		}
	}
}
