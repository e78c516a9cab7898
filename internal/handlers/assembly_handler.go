package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/rberts/delibera/internal/domain/assembly"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/response"
	"github.com/rberts/delibera/internal/services"
)

// AssemblyHandler serves assembly lifecycle and roster endpoints
type AssemblyHandler struct {
	assemblies *services.AssemblyService
	rosters    *services.RosterService
	results    *services.ResultsService
	log        *log.Logger
}

// NewAssemblyHandler creates a new assembly handler
func NewAssemblyHandler(assemblies *services.AssemblyService, rosters *services.RosterService, results *services.ResultsService) *AssemblyHandler {
	return &AssemblyHandler{
		assemblies: assemblies,
		rosters:    rosters,
		results:    results,
		log:        logger.Handler("assembly_handler"),
	}
}

type CreateAssemblyRequest struct {
	Title        string    `json:"title" binding:"required"`
	Location     string    `json:"location" binding:"required"`
	AssemblyDate time.Time `json:"assembly_date" binding:"required"`
	AssemblyType string    `json:"assembly_type" binding:"required"`
}

type UpdateAssemblyRequest struct {
	Title    *string `json:"title"`
	Location *string `json:"location"`
	Status   *string `json:"status"`
}

type ImportRosterRequest struct {
	Units []services.UnitImport `json:"units" binding:"required"`
}

// Create handles POST /api/assemblies
func (h *AssemblyHandler) Create(c *gin.Context) {
	var req CreateAssemblyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	assemblyType, ok := assembly.TypeFromString(req.AssemblyType)
	if !ok {
		response.BadRequestError(c, "assembly_type must be ordinary or extraordinary")
		return
	}

	a, err := h.assemblies.Create(c.Request.Context(), middleware.TenantID(c), req.Title, req.Location, req.AssemblyDate, assemblyType)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "assembly created", a)
}

// List handles GET /api/assemblies
func (h *AssemblyHandler) List(c *gin.Context) {
	assemblies, err := h.assemblies.List(c.Request.Context(), middleware.TenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", assemblies)
}

// Get handles GET /api/assemblies/:id
func (h *AssemblyHandler) Get(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	a, err := h.assemblies.Get(c.Request.Context(), middleware.TenantID(c), assemblyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", a)
}

// Update handles PATCH /api/assemblies/:id
func (h *AssemblyHandler) Update(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateAssemblyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Status != nil {
		status, ok := assembly.StatusFromString(*req.Status)
		if !ok {
			response.BadRequestError(c, "invalid assembly status")
			return
		}
		updates["status"] = status
	}

	a, err := h.assemblies.Update(c.Request.Context(), middleware.TenantID(c), assemblyID, updates)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "assembly updated", a)
}

// ImportRoster handles POST /api/assemblies/:id/units
func (h *AssemblyHandler) ImportRoster(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req ImportRosterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	units, err := h.rosters.Import(c.Request.Context(), middleware.TenantID(c), assemblyID, req.Units)
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("Roster import accepted", "assembly_id", assemblyID, "units", len(units))
	response.SuccessResponse(c, http.StatusCreated, "roster imported", units)
}

// ListUnits handles GET /api/assemblies/:id/units
func (h *AssemblyHandler) ListUnits(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	units, err := h.rosters.ListUnits(c.Request.Context(), middleware.TenantID(c), assemblyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", units)
}

// Quorum handles GET /api/assemblies/:id/quorum
func (h *AssemblyHandler) Quorum(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	report, err := h.results.Quorum(c.Request.Context(), middleware.TenantID(c), assemblyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", report)
}

// pathID parses a numeric path parameter, responding 400 on garbage
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		response.BadRequestError(c, "invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}
