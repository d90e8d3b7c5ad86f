package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/store"
)

// GetLessons handles GET /api/lessons. Requires studio and date; end_date
// switches to a range scan. Optional filters narrow by program,
// instructor, start-time window, and availability.
func (h *Handler) GetLessons(c *gin.Context) {
	studio := strings.ToLower(c.Query("studio"))
	date := c.Query("date")
	if studio == "" || date == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "studio and date are required"})
		return
	}

	filters := store.LessonFilters{
		Program:       c.Query("program"),
		Instructor:    c.Query("instructor"),
		StartFrom:     c.Query("from"),
		StartTo:       c.Query("to"),
		AvailableOnly: c.Query("available_only") == "true",
	}

	var err error
	var lessons []model.Lesson
	if endDate := c.Query("end_date"); endDate != "" {
		lessons, err = h.store.QueryByStudioAndDateRange(c.Request.Context(), studio, date, endDate, filters)
	} else {
		lessons, err = h.store.QueryByStudioAndDate(c.Request.Context(), studio, date, filters)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lessons": toLessonResponses(lessons)})
}

// GetStudios handles GET /api/studios.
func (h *Handler) GetStudios(c *gin.Context) {
	studios, err := h.store.ListStudios(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"studios": toStudioResponses(studios)})
}
