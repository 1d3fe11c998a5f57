package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
	RequestDuration time.Duration `json:"avg_request_duration_ms"`
}

type HealthCheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]HealthCheckFunc
}

var globalMetrics = &Metrics{
	StatusCodes: make(map[string]int64),
	Endpoints:   make(map[string]int64),
	StartTime:   time.Now(),
}

var globalHealthChecker = &HealthChecker{
	checks: make(map[string]HealthCheckFunc),
}

// MetricsMiddleware records request counts, durations and status
// classes for every route it wraps.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		globalMetrics.mu.Lock()
		globalMetrics.ActiveRequests++
		globalMetrics.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		globalMetrics.mu.Lock()
		globalMetrics.ActiveRequests--
		globalMetrics.RequestCount++
		globalMetrics.LastRequest = time.Now()
		globalMetrics.totalDuration += duration
		globalMetrics.RequestDuration = globalMetrics.totalDuration / time.Duration(globalMetrics.RequestCount)
		globalMetrics.StatusCodes[strconv.Itoa(status)]++
		globalMetrics.Endpoints[c.Request.Method+" "+c.FullPath()]++
		if status >= http.StatusInternalServerError {
			globalMetrics.ErrorCount++
		}
		globalMetrics.mu.Unlock()
	}
}

// RegisterHealthCheck adds a named probe run on every /health request.
func RegisterHealthCheck(name string, check HealthCheckFunc) {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks[name] = check
}

// ResetHealthChecks removes all registered probes. Intended for tests.
func ResetHealthChecks() {
	globalHealthChecker.mu.Lock()
	defer globalHealthChecker.mu.Unlock()
	globalHealthChecker.checks = make(map[string]HealthCheckFunc)
}

func runHealthChecks(ctx context.Context) ([]HealthCheck, bool) {
	globalHealthChecker.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(globalHealthChecker.checks))
	for name, check := range globalHealthChecker.checks {
		checks[name] = check
	}
	globalHealthChecker.mu.RUnlock()

	results := make([]HealthCheck, 0, len(checks))
	healthy := true
	for name, check := range checks {
		result := HealthCheck{Name: name, Status: "ok", LastRun: time.Now()}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := check(checkCtx); err != nil {
			result.Status = "failing"
			result.Message = err.Error()
			healthy = false
		}
		cancel()
		results = append(results, result)
	}
	return results, healthy
}

// HealthHandler runs all registered probes; any failure makes the
// endpoint report 503.
func HealthHandler(c *gin.Context) {
	results, healthy := runHealthChecks(c.Request.Context())

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"checks": results,
		"uptime": time.Since(globalMetrics.StartTime).String(),
	})
}

func MetricsHandler(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	globalMetrics.mu.RLock()
	defer globalMetrics.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"requests":        globalMetrics.RequestCount,
		"active_requests": globalMetrics.ActiveRequests,
		"errors":          globalMetrics.ErrorCount,
		"avg_duration_ms": globalMetrics.RequestDuration.Milliseconds(),
		"status_codes":    globalMetrics.StatusCodes,
		"endpoints":       globalMetrics.Endpoints,
		"goroutines":      runtime.NumGoroutine(),
		"heap_alloc":      memStats.HeapAlloc,
		"uptime":          time.Since(globalMetrics.StartTime).String(),
	})
}
