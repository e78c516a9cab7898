package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/rberts/delibera/internal/domain/credential"
	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/response"
	"github.com/rberts/delibera/internal/services"
)

// CredentialHandler serves the voting card registry endpoints
type CredentialHandler struct {
	credentials *services.CredentialService
	log         *log.Logger
}

// NewCredentialHandler creates a new credential handler
func NewCredentialHandler(credentials *services.CredentialService) *CredentialHandler {
	return &CredentialHandler{
		credentials: credentials,
		log:         logger.Handler("credential_handler"),
	}
}

type CreateCredentialsRequest struct {
	VisualNumbers []string `json:"visual_numbers" binding:"required"`
}

type SetCredentialStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateBatch handles POST /api/qrcodes
func (h *CredentialHandler) CreateBatch(c *gin.Context) {
	var req CreateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	credentials, err := h.credentials.CreateBatch(c.Request.Context(), middleware.TenantID(c), req.VisualNumbers)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "credentials created", credentials)
}

// List handles GET /api/qrcodes?status=...
func (h *CredentialHandler) List(c *gin.Context) {
	var status *credential.Status
	if raw := c.Query("status"); raw != "" {
		parsed, valid := credential.StatusFromString(raw)
		if !valid {
			response.BadRequestError(c, "status must be active or inactive")
			return
		}
		status = &parsed
	}

	credentials, err := h.credentials.List(c.Request.Context(), middleware.TenantID(c), status)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", credentials)
}

// Get handles GET /api/qrcodes/:id
func (h *CredentialHandler) Get(c *gin.Context) {
	credentialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	cred, err := h.credentials.Get(c.Request.Context(), middleware.TenantID(c), credentialID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", cred)
}

// Resolve handles GET /api/qrcodes/resolve?visual_number=... or ?token=...
func (h *CredentialHandler) Resolve(c *gin.Context) {
	var token, visualNumber *string
	if v := c.Query("token"); v != "" {
		token = &v
	}
	if v := c.Query("visual_number"); v != "" {
		visualNumber = &v
	}

	selector, ok := buildSelector(c, token, visualNumber)
	if !ok {
		return
	}

	cred, err := h.credentials.Resolve(c.Request.Context(), middleware.TenantID(c), selector)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", cred)
}

// Deactivate handles DELETE /api/qrcodes/:id as a status-only soft delete
func (h *CredentialHandler) Deactivate(c *gin.Context) {
	credentialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	cred, err := h.credentials.SetStatus(c.Request.Context(), middleware.TenantID(c), credentialID, credential.StatusInactive)
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("Credential deactivated", "credential_id", credentialID)
	response.SuccessResponse(c, http.StatusOK, "credential deactivated", cred)
}

// SetStatus handles PATCH /api/qrcodes/:id
func (h *CredentialHandler) SetStatus(c *gin.Context) {
	credentialID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req SetCredentialStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	status, valid := credential.StatusFromString(req.Status)
	if !valid {
		response.BadRequestError(c, "status must be active or inactive")
		return
	}

	cred, err := h.credentials.SetStatus(c.Request.Context(), middleware.TenantID(c), credentialID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("Credential status set", "credential_id", credentialID, "status", status.String())
	response.SuccessResponse(c, http.StatusOK, "credential updated", cred)
}
