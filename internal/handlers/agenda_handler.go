package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/rberts/delibera/internal/domain/agenda"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/response"
	"github.com/rberts/delibera/internal/services"
)

// AgendaHandler serves agenda item endpoints
type AgendaHandler struct {
	agendas *services.AgendaService
	results *services.ResultsService
	log     *log.Logger
}

// NewAgendaHandler creates a new agenda handler
func NewAgendaHandler(agendas *services.AgendaService, results *services.ResultsService) *AgendaHandler {
	return &AgendaHandler{
		agendas: agendas,
		results: results,
		log:     logger.Handler("agenda_handler"),
	}
}

type CreateAgendaRequest struct {
	Title        string   `json:"title" binding:"required"`
	Description  string   `json:"description"`
	DisplayOrder int      `json:"display_order"`
	Options      []string `json:"options" binding:"required"`
}

type UpdateAgendaRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	DisplayOrder *int    `json:"display_order"`
	Status       *string `json:"status"`
}

// Create handles POST /api/assemblies/:id/agendas
func (h *AgendaHandler) Create(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CreateAgendaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	item, err := h.agendas.Create(c.Request.Context(), middleware.TenantID(c), assemblyID, req.Title, req.Description, req.DisplayOrder, req.Options)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "agenda created", item)
}

// List handles GET /api/assemblies/:id/agendas
func (h *AgendaHandler) List(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	includeCancelled := c.Query("include_cancelled") == "true"
	items, err := h.agendas.List(c.Request.Context(), middleware.TenantID(c), assemblyID, includeCancelled)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", items)
}

// Get handles GET /api/agendas/:id
func (h *AgendaHandler) Get(c *gin.Context) {
	agendaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := h.agendas.Get(c.Request.Context(), middleware.TenantID(c), agendaID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", item)
}

// Update handles PATCH /api/agendas/:id
func (h *AgendaHandler) Update(c *gin.Context) {
	agendaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateAgendaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	update := services.AgendaUpdate{
		Title:        req.Title,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
	}
	if req.Status != nil {
		status, ok := agenda.StatusFromString(*req.Status)
		if !ok {
			response.BadRequestError(c, "invalid agenda status")
			return
		}
		update.Status = &status
	}

	item, err := h.agendas.Update(c.Request.Context(), middleware.TenantID(c), agendaID, update)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "agenda updated", item)
}

// Cancel handles DELETE /api/agendas/:id as a status-only soft delete
func (h *AgendaHandler) Cancel(c *gin.Context) {
	agendaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	cancelled := agenda.StatusCancelled
	item, err := h.agendas.Update(c.Request.Context(), middleware.TenantID(c), agendaID, services.AgendaUpdate{Status: &cancelled})
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("Agenda cancelled", "agenda_id", agendaID)
	response.SuccessResponse(c, http.StatusOK, "agenda cancelled", item)
}

// Results handles GET /api/agendas/:id/results
func (h *AgendaHandler) Results(c *gin.Context) {
	agendaID, ok := pathID(c, "id")
	if !ok {
		return
	}

	results, err := h.results.Results(c.Request.Context(), middleware.TenantID(c), agendaID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", results)
}
