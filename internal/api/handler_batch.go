package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerRun kicks off a full batch sweep in the background. The sweep
// chains through every studio on its own; the response only acknowledges
// the trigger. It runs under the application context, not the request's,
// so it survives the request but not a shutdown.
func (h *Handler) TriggerRun(c *gin.Context) {
	go h.runner.RunOnce(h.baseCtx)
	c.JSON(http.StatusAccepted, gin.H{"status": "run started"})
}

// ContinueRun processes exactly one studio and reports how much work
// remains, so an external scheduler can chain invocations until the run
// drains.
func (h *Handler) ContinueRun(c *gin.Context) {
	remaining, processed, err := h.coord.ProcessNext(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": processed,
		"remaining": remaining,
	})
}

// GetProgress reports the per-status studio counts of the current run.
func (h *Handler) GetProgress(c *gin.Context) {
	progress, err := h.coord.Progress(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, progress)
}
