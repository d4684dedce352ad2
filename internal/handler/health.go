package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DependencyCheck 就绪检查依赖项
type DependencyCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	checks []DependencyCheck
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，任一依赖不可用时返回 503
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[check.Name] = err.Error()
			continue
		}
		deps[check.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status":       state,
		"dependencies": deps,
	})
}
