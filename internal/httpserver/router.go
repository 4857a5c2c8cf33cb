package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

type Router struct {
	Engine *gin.Engine
}

// NewRouter serves health, readiness and metrics for the dispatcher. mqAlive
// reports broker connectivity; workers reports how many subscription workers
// are currently consuming.
func NewRouter(rdb *redis.Client, mqAlive func() bool, workers func() int) *Router {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if !mqAlive() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		if err := rdb.Ping(ctx).Err(); err != nil {
			c.JSON(500, gin.H{"status": "redis_not_ready", "error": err.Error()})
			return
		}

		running := workers()
		if running == 0 {
			c.JSON(500, gin.H{"status": "no_workers_running"})
			return
		}

		c.JSON(200, gin.H{"status": "ready", "workers": running})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Router{Engine: r}
}
