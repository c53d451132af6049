package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/curriculum-backend/internal/http/handlers"
	httpMW "github.com/yungbote/curriculum-backend/internal/http/middleware"
	"github.com/yungbote/curriculum-backend/internal/observability"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	ServiceName string

	ProgramHandler    *httpH.ProgramHandler
	GenerationHandler *httpH.GenerationHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Programs
		if cfg.ProgramHandler != nil {
			api.POST("/programs", cfg.ProgramHandler.Create)
			api.GET("/programs/:id", cfg.ProgramHandler.Get)
			api.PUT("/programs/:id/content", cfg.ProgramHandler.ReplaceContent)
			api.GET("/programs/:id/content", cfg.ProgramHandler.ListContent)
			api.GET("/programs/:id/curriculum", cfg.ProgramHandler.Curriculum)
		}

		// Generation
		if cfg.GenerationHandler != nil {
			api.POST("/programs/:id/generation", cfg.GenerationHandler.Start)
			api.GET("/programs/:id/generation", cfg.GenerationHandler.Status)
		}
	}

	return r
}
