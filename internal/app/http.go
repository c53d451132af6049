package app

import (
	"gorm.io/gorm"

	apphttp "github.com/yungbote/curriculum-backend/internal/http"
	httpH "github.com/yungbote/curriculum-backend/internal/http/handlers"
	"github.com/yungbote/curriculum-backend/internal/observability"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Program    *httpH.ProgramHandler
	Generation *httpH.GenerationHandler
}

func wireHandlers(db *gorm.DB, log *logger.Logger, s Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(db),
		Program:    httpH.NewProgramHandler(log, s.Programs),
		Generation: httpH.NewGenerationHandler(log, s.Generations),
	}
}

func wireServer(log *logger.Logger, cfg Config, h Handlers, metrics *observability.Metrics) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		CORSOrigins:       cfg.CORSOrigins,
		ServiceName:       cfg.ServiceName,
		HealthHandler:     h.Health,
		ProgramHandler:    h.Program,
		GenerationHandler: h.Generation,
	})
}
