package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/curriculum-backend/internal/http/response"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
	"github.com/yungbote/curriculum-backend/internal/services"
)

type GenerationHandler struct {
	log         *logger.Logger
	generations services.GenerationService
}

func NewGenerationHandler(log *logger.Logger, generations services.GenerationService) *GenerationHandler {
	return &GenerationHandler{
		log:         log.With("handler", "GenerationHandler"),
		generations: generations,
	}
}

// POST /api/programs/:id/generation
func (h *GenerationHandler) Start(c *gin.Context) {
	programID, ok := programIDParam(c)
	if !ok {
		return
	}
	job, existing, err := h.generations.Start(c.Request.Context(), programID)
	if err != nil {
		h.log.Warn("Start generation failed", "program_id", programID, "error", err)
		response.RespondAPIError(c, "start_generation_failed", err)
		return
	}
	body := gin.H{"job": job.Snapshot(), "existing": existing}
	if existing {
		response.RespondOK(c, body)
		return
	}
	response.RespondAccepted(c, body)
}

// GET /api/programs/:id/generation
func (h *GenerationHandler) Status(c *gin.Context) {
	programID, ok := programIDParam(c)
	if !ok {
		return
	}
	job, err := h.generations.Status(c.Request.Context(), programID)
	if err != nil {
		response.RespondAPIError(c, "get_generation_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"job": job.Snapshot()})
}
