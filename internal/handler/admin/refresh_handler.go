package admin

import (
	"github.com/Wei-Shaw/tokengate/internal/pkg/response"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/gin-gonic/gin"
)

// RefreshHandler toggles the background refresh loop.
type RefreshHandler struct {
	refresher *service.TokenRefreshService
}

// NewRefreshHandler creates a new RefreshHandler
func NewRefreshHandler(refresher *service.TokenRefreshService) *RefreshHandler {
	return &RefreshHandler{refresher: refresher}
}

// Start launches the refresh loop. Starting an already running loop is a
// no-op, reported as such.
// POST /api/v1/admin/refresh/start
func (h *RefreshHandler) Start(c *gin.Context) {
	h.refresher.Start()
	response.Success(c, gin.H{
		"running": h.refresher.Running(),
	})
}

// Stop halts the refresh loop. Reactive acquisition keeps working; only the
// proactive refresh stops.
// POST /api/v1/admin/refresh/stop
func (h *RefreshHandler) Stop(c *gin.Context) {
	h.refresher.Stop()
	response.Success(c, gin.H{
		"running": h.refresher.Running(),
	})
}
