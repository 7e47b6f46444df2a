package router

import (
	"net/http"

	"github.com/cuongbtq/cloudprint/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "print-api-service"
	}

	r.GET("/health", func(c *gin.Context) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": serviceName,
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
		})
	})

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/print-jobs")
		{
			jobs.POST("", jobHandler.CreatePrintJob)
			jobs.GET("", jobHandler.ListPrintJobs)
			jobs.GET("/:job_id", jobHandler.GetPrintJob)
			jobs.PATCH("/:job_id/status", jobHandler.UpdatePrintJobStatus)
			jobs.POST("/:job_id/cancel", jobHandler.CancelPrintJob)
		}

		if deps.Printers != nil {
			orderHandler := handler.NewOrderHandler(deps)
			v1.POST("/stores/:store_id/orders/print", orderHandler.PrintOrder)
		}
	}

	return r
}
