package handlers

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rberts/delibera/internal/logger"
	"github.com/rberts/delibera/internal/middleware"
	"github.com/rberts/delibera/internal/response"
	"github.com/rberts/delibera/internal/services"
)

// VotingHandler serves the voter-facing ballot endpoints plus the manager
// invalidation endpoint. Voter endpoints authenticate by credential token
// in the path, not by JWT.
type VotingHandler struct {
	votes *services.VotingService
	log   *log.Logger
}

// NewVotingHandler creates a new voting handler
func NewVotingHandler(votes *services.VotingService) *VotingHandler {
	return &VotingHandler{
		votes: votes,
		log:   logger.Handler("voting_handler"),
	}
}

type CastVoteRequest struct {
	AgendaID uint `json:"agenda_id" binding:"required"`
	OptionID uint `json:"option_id" binding:"required"`
}

// Status handles GET /api/voting/:token/status
func (h *VotingHandler) Status(c *gin.Context) {
	token, ok := pathToken(c)
	if !ok {
		return
	}

	status, err := h.votes.VoterStatus(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusOK, "", status)
}

// Cast handles POST /api/voting/:token/vote
func (h *VotingHandler) Cast(c *gin.Context) {
	token, ok := pathToken(c)
	if !ok {
		return
	}

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	votes, err := h.votes.CastVote(c.Request.Context(), token, req.AgendaID, req.OptionID)
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessResponse(c, http.StatusCreated, "vote recorded", votes)
}

// Invalidate handles POST /api/votes/:id/invalidate
func (h *VotingHandler) Invalidate(c *gin.Context) {
	voteID, ok := pathID(c, "id")
	if !ok {
		return
	}

	vote, err := h.votes.InvalidateVote(c.Request.Context(), middleware.TenantID(c), voteID, middleware.ActorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.log.Info("Vote invalidated via API", "vote_id", voteID, "actor_id", middleware.ActorID(c))
	response.SuccessResponse(c, http.StatusOK, "vote invalidated", vote)
}

// pathToken parses the credential token path parameter
func pathToken(c *gin.Context) (uuid.UUID, bool) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		response.BadRequestError(c, "invalid credential token")
		return uuid.Nil, false
	}
	return token, true
}
