package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/response"
	"github.com/rberts/delibera/internal/services"
)

// CheckinHandler serves the check-in desk endpoints
type CheckinHandler struct {
	checkins *services.CheckinService
	log      *log.Logger
}

// NewCheckinHandler creates a new check-in handler
func NewCheckinHandler(checkins *services.CheckinService) *CheckinHandler {
	return &CheckinHandler{
		checkins: checkins,
		log:      logger.Handler("checkin_handler"),
	}
}

type CheckInRequest struct {
	Token        *string `json:"token"`
	VisualNumber *string `json:"visual_number"`
	UnitIDs      []uint  `json:"unit_ids" binding:"required"`
	IsProxy      bool    `json:"is_proxy"`
}

// CheckIn handles POST /api/assemblies/:id/checkin
func (h *CheckinHandler) CheckIn(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	selector, ok := buildSelector(c, req.Token, req.VisualNumber)
	if !ok {
		return
	}

	assignment, err := h.checkins.CheckIn(c.Request.Context(), middleware.TenantID(c), assemblyID, selector, req.UnitIDs, req.IsProxy, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "credential checked in", assignment)
}

// Undo handles DELETE /api/assemblies/:id/checkin/:assignmentId
func (h *CheckinHandler) Undo(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}
	assignmentID, ok := pathID(c, "assignmentId")
	if !ok {
		return
	}

	err := h.checkins.UndoCheckIn(c.Request.Context(), middleware.TenantID(c), assemblyID, assignmentID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "check-in undone", nil)
}

// Attendance handles GET /api/assemblies/:id/attendance
func (h *CheckinHandler) Attendance(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	entries, err := h.checkins.AttendanceList(c.Request.Context(), middleware.TenantID(c), assemblyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", entries)
}

// Summary handles GET /api/assemblies/:id/attendance/summary
func (h *CheckinHandler) Summary(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	summary, err := h.checkins.Summary(c.Request.Context(), middleware.TenantID(c), assemblyID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", summary)
}

// SearchUnits handles GET /api/assemblies/:id/units/by-owner
func (h *CheckinHandler) SearchUnits(c *gin.Context) {
	assemblyID, ok := pathID(c, "id")
	if !ok {
		return
	}

	units, err := h.checkins.SearchUnitsByOwner(c.Request.Context(), middleware.TenantID(c), assemblyID, c.Query("owner_name"), c.Query("tax_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", units)
}

// buildSelector parses the two-identifier credential selector from a
// request, responding 400 when the token is malformed
func buildSelector(c *gin.Context, token, visualNumber *string) (credential.Selector, bool) {
	if token != nil {
		parsed, err := uuid.Parse(*token)
		if err != nil {
			response.BadRequestError(c, "invalid credential token")
			return credential.Selector{}, false
		}
		if visualNumber != nil {
			response.BadRequestError(c, "exactly one of token or visual_number must be provided")
			return credential.Selector{}, false
		}
		return credential.ByToken(parsed), true
	}
	if visualNumber != nil {
		return credential.ByVisualNumber(*visualNumber), true
	}
	response.BadRequestError(c, "exactly one of token or visual_number must be provided")
	return credential.Selector{}, false
}
