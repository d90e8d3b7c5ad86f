package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/waitlist"
)

// CreateWaitlist handles POST /api/waitlists.
func (h *Handler) CreateWaitlist(c *gin.Context) {
	var in waitlist.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entry, err := h.waitlists.Create(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, waitlist.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, store.ErrAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, toWaitlistResponse(entry))
}

// ListWaitlists handles GET /api/waitlists?user_id=.
func (h *Handler) ListWaitlists(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	entries, err := h.waitlists.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"waitlists": toWaitlistResponses(entries)})
}

type waitlistActionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	WaitlistID string `json:"waitlist_id" binding:"required"`
}

// waitlistAction shares the decode/dispatch/respond shape of the four
// status transition endpoints.
func (h *Handler) waitlistAction(c *gin.Context, do func(userID, waitlistID string) error) {
	var req waitlistActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := do(req.UserID, req.WaitlistID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, waitlist.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.Status(http.StatusNoContent)
}

// PauseWaitlist handles POST /api/waitlists/pause.
func (h *Handler) PauseWaitlist(c *gin.Context) {
	h.waitlistAction(c, func(u, w string) error {
		return h.waitlists.Pause(c.Request.Context(), u, w)
	})
}

// ResumeWaitlist handles POST /api/waitlists/resume.
func (h *Handler) ResumeWaitlist(c *gin.Context) {
	h.waitlistAction(c, func(u, w string) error {
		return h.waitlists.Resume(c.Request.Context(), u, w)
	})
}

// CancelWaitlist handles POST /api/waitlists/cancel.
func (h *Handler) CancelWaitlist(c *gin.Context) {
	h.waitlistAction(c, func(u, w string) error {
		return h.waitlists.Cancel(c.Request.Context(), u, w)
	})
}

// CompleteWaitlist handles POST /api/waitlists/complete, for callers that
// confirmed the reservation on the source site.
func (h *Handler) CompleteWaitlist(c *gin.Context) {
	h.waitlistAction(c, func(u, w string) error {
		return h.waitlists.Complete(c.Request.Context(), u, w)
	})
}
