package admin

import (
	"github.com/Wei-Shaw/tokengate/internal/pkg/response"
	"github.com/Wei-Shaw/tokengate/internal/pkg/sysutil"

	"github.com/gin-gonic/gin"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	BuildType string
}

// SystemHandler reports process and host health for operators.
type SystemHandler struct {
	buildInfo BuildInfo
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(buildInfo BuildInfo) *SystemHandler {
	return &SystemHandler{buildInfo: buildInfo}
}

// Snapshot returns host metrics, process metrics and the build identity.
// GET /api/v1/admin/system
func (h *SystemHandler) Snapshot(c *gin.Context) {
	snap := sysutil.Collect(c.Request.Context())
	response.Success(c, gin.H{
		"version":    h.buildInfo.Version,
		"build_type": h.buildInfo.BuildType,
		"system":     snap,
	})
}
