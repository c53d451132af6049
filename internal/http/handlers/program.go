package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/curriculum-backend/internal/http/response"
	"github.com/yungbote/curriculum-backend/internal/platform/logger"
	"github.com/yungbote/curriculum-backend/internal/services"
)

type ProgramHandler struct {
	log      *logger.Logger
	programs services.ProgramService
}

func NewProgramHandler(log *logger.Logger, programs services.ProgramService) *ProgramHandler {
	return &ProgramHandler{
		log:      log.With("handler", "ProgramHandler"),
		programs: programs,
	}
}

type replaceContentRequest struct {
	Items []services.ContentInput `json:"items"`
}

// POST /api/programs
func (h *ProgramHandler) Create(c *gin.Context) {
	var req services.ProgramInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	p, err := h.programs.Create(c.Request.Context(), req)
	if err != nil {
		response.RespondAPIError(c, "create_program_failed", err)
		return
	}
	response.RespondCreated(c, gin.H{"program": p})
}

// GET /api/programs/:id
func (h *ProgramHandler) Get(c *gin.Context) {
	programID, ok := programIDParam(c)
	if !ok {
		return
	}
	p, err := h.programs.Get(c.Request.Context(), programID)
	if err != nil {
		response.RespondAPIError(c, "get_program_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"program": p})
}

// PUT /api/programs/:id/content
func (h *ProgramHandler) ReplaceContent(c *gin.Context) {
	programID, ok := programIDParam(c)
	if !ok {
		return
	}
	var req replaceContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	items, err := h.programs.ReplaceContent(c.Request.Context(), programID, req.Items)
	if err != nil {
		response.RespondAPIError(c, "replace_content_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"items": items})
}

// GET /api/programs/:id/content
func (h *ProgramHandler) ListContent(c *gin.Context) {
	programID, ok := programIDParam(c)
	if !ok {
		return
	}
	items, err := h.programs.ListContent(c.Request.Context(), programID)
	if err != nil {
		response.RespondAPIError(c, "list_content_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"items": items})
}

// GET /api/programs/:id/curriculum
func (h *ProgramHandler) Curriculum(c *gin.Context) {
	programID, ok := programIDParam(c)
	if !ok {
		return
	}
	weeks, err := h.programs.Curriculum(c.Request.Context(), programID)
	if err != nil {
		response.RespondAPIError(c, "get_curriculum_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"program_id": programID, "weeks": weeks})
}

func programIDParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_program_id", err)
		return uuid.Nil, false
	}
	return id, true
}
