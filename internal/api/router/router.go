package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/job-pipeline/internal/api/handler"
)

// Options holds router-level collaborators that are not handler dependencies
type Options struct {
	MetricsHandler http.Handler // served on /metrics when set
	HTTPMetrics    HTTPRecorder // optional request metrics
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	if opts.HTTPMetrics != nil {
		r.Use(MetricsMiddleware(opts.HTTPMetrics))
	}
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "job-pipeline",
		})
	})

	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - List jobs with state filter and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}

		// GET /api/v1/stats - Live run statistics
		v1.GET("/stats", jobHandler.GetStats)
	}

	return r
}
