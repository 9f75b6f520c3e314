package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/pbazhin/studyhub/internal/domain"
	sessionsvc "github.com/pbazhin/studyhub/internal/sessions"
)

type SessionHandler struct {
	Sessions *sessionsvc.Service
}

// Create handles POST /api/sessions/create.
func (h *SessionHandler) Create(c *gin.Context) {
	var req struct {
		SessionName string `json:"sessionName"`
		CreatorID   string `json:"creatorId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.Sessions.Create(c.Request.Context(), req.SessionName, req.CreatorID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Session created successfully", "session": sess})
}

// List handles GET /api/sessions with optional creatorId and isActive
// filters.
func (h *SessionHandler) List(c *gin.Context) {
	var filter domain.SessionFilter
	filter.CreatorID = c.Query("creatorId")
	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid isActive filter"})
			return
		}
		filter.Active = &active
	}

	list, err := h.Sessions.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []domain.Session{}
	}
	c.JSON(http.StatusOK, list)
}

// Join handles POST /api/sessions/:id/join.
func (h *SessionHandler) Join(c *gin.Context) {
	userID, ok := bindUserID(c)
	if !ok {
		return
	}
	sess, err := h.Sessions.Join(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined session successfully", "session": sess})
}

// Update handles PUT /api/sessions/:id.
func (h *SessionHandler) Update(c *gin.Context) {
	var patch domain.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sess, err := h.Sessions.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Session updated successfully", "session": sess})
}

// Leave handles POST /api/sessions/:id/leave.
func (h *SessionHandler) Leave(c *gin.Context) {
	userID, ok := bindUserID(c)
	if !ok {
		return
	}
	sess, err := h.Sessions.Leave(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left session successfully", "session": sess})
}

// RaiseHand handles POST /api/sessions/:id/raise-hand.
func (h *SessionHandler) RaiseHand(c *gin.Context) {
	userID, ok := bindUserID(c)
	if !ok {
		return
	}
	raised, err := h.Sessions.RaiseHand(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Hand raised", "raisedHands": raised})
}

func bindUserID(c *gin.Context) (string, bool) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return "", false
	}
	return req.UserID, true
}

// writeError maps domain errors to HTTP statuses. Storage internals never
// reach the response body.
func writeError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, domain.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
	case errors.Is(err, domain.ErrNoFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one field must be updated"})
	case errors.Is(err, domain.ErrAlreadyJoined):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User already in session"})
	case errors.Is(err, domain.ErrNotInSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": "User not in session"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Msg("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
