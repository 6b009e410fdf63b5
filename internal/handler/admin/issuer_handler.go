package admin

import (
	"github.com/Wei-Shaw/tokengate/internal/pkg/response"
	"github.com/Wei-Shaw/tokengate/internal/service"

	"github.com/gin-gonic/gin"
)

// IssuerHandler runs issuer diagnostics.
type IssuerHandler struct {
	prober service.IssuerProber
}

// NewIssuerHandler creates a new IssuerHandler
func NewIssuerHandler(prober service.IssuerProber) *IssuerHandler {
	return &IssuerHandler{prober: prober}
}

// Probe checks whether the configured issuer answers over the configured
// network path (proxy included) and reports status and latency. It sends no
// credentials; reachability only.
// GET /api/v1/admin/issuer/probe
func (h *IssuerHandler) Probe(c *gin.Context) {
	result, err := h.prober.Probe(c.Request.Context())
	if err != nil {
		response.ErrorFrom(c, err)
		return
	}
	response.Success(c, result)
}
