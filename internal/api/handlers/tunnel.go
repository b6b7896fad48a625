package handlers

import (
	"github.com/cz7host/frp/internal/api/dto/common"
	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/service"
	"github.com/cz7host/frp/internal/utils"

	"github.com/gin-gonic/gin"
)

// TunnelHandler handles tunnel-related management requests
type TunnelHandler struct {
	tunnelService *service.TunnelService
}

// NewTunnelHandler creates a new tunnel handler instance
func NewTunnelHandler(tunnelService *service.TunnelService) *TunnelHandler {
	return &TunnelHandler{
		tunnelService: tunnelService,
	}
}

// CreateTunnel registers a new unconnected tunnel
func (h *TunnelHandler) CreateTunnel(c *gin.Context) {
	var req struct {
		UserID    string `json:"user_id" binding:"required"`
		LocalPort int    `json:"local_port" binding:"required,min=1,max=65535"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		logging.GetGlobalLogger().Error("CreateTunnel: Invalid request data: %v", err)
		utils.HandleAPIError(c, err, common.ErrCodeValidation, "Invalid request data")
		return
	}

	snapshot := h.tunnelService.Create(req.UserID, req.LocalPort)
	utils.HandleCreated(c, snapshot)
}

// GetTunnel returns a snapshot of a tunnel
func (h *TunnelHandler) GetTunnel(c *gin.Context) {
	snapshot, err := h.tunnelService.Get(c.Param("id"))
	if err != nil {
		utils.HandleAPIError(c, err, common.ErrCodeNotFound, "Tunnel not found")
		return
	}

	utils.HandleSuccess(c, snapshot)
}

// MapDomain points a subdomain under the base domain at a tunnel
func (h *TunnelHandler) MapDomain(c *gin.Context) {
	var req struct {
		Subdomain string `json:"subdomain" binding:"required,subdomain"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		logging.GetGlobalLogger().Error("MapDomain: Invalid request data: %v", err)
		utils.HandleAPIError(c, err, common.ErrCodeValidation, "Invalid request data")
		return
	}

	fullHost, err := h.tunnelService.MapDomain(c.Param("id"), req.Subdomain)
	if err != nil {
		utils.HandleAPIError(c, err, common.ErrCodeInternalServer, "Failed to map domain")
		return
	}

	utils.HandleSuccess(c, gin.H{"domain": fullHost})
}

// DeleteTunnel removes a tunnel and closes its control link if bound
func (h *TunnelHandler) DeleteTunnel(c *gin.Context) {
	if err := h.tunnelService.Delete(c.Param("id")); err != nil {
		utils.HandleAPIError(c, err, common.ErrCodeNotFound, "Tunnel not found")
		return
	}

	utils.HandleNoContent(c)
}
