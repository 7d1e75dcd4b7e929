package handlers

import (
	"net/http"
	"runtime"
	"time"

	"fraservotes-backend/database"

	"github.com/gin-gonic/gin"
)

// SystemInfo contains basic system metrics and information
type SystemInfo struct {
	Status       string           `json:"status"`
	Version      string           `json:"version"`
	Uptime       string           `json:"uptime"`
	StartTime    time.Time        `json:"start_time"`
	CurrentTime  time.Time        `json:"current_time"`
	GoVersion    string           `json:"go_version"`
	NumGoroutine int              `json:"num_goroutine"`
	NumCPU       int              `json:"num_cpu"`
	DBStatus     string           `json:"db_status"`
	QueueStats   map[string]int64 `json:"queue_stats,omitempty"`
}

var (
	startTime = time.Now()
	version   = "1.0.0" // set through build flags in release builds
)

// HealthCheck is the basic liveness endpoint.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// SystemStatus reports runtime, database, and ballot-queue health.
func SystemStatus(c *gin.Context) {
	dbStatus := "ok"
	sqlDB, err := database.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		dbStatus = "error"
	}

	info := SystemInfo{
		Status:       "ok",
		Version:      version,
		Uptime:       time.Since(startTime).String(),
		StartTime:    startTime,
		CurrentTime:  time.Now(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		DBStatus:     dbStatus,
	}
	if mqAdapter != nil {
		info.QueueStats = mqAdapter.GetQueueStats()
	}

	c.JSON(http.StatusOK, info)
}
