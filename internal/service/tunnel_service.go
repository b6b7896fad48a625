package service

import (
	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/registry"
)

// TunnelService is the management-API-facing view of the registry.
type TunnelService struct {
	registry *registry.Registry
	logger   *logging.Logger
}

func NewTunnelService(reg *registry.Registry) *TunnelService {
	return &TunnelService{
		registry: reg,
		logger:   logging.GetGlobalLogger(),
	}
}

// Create registers a new unconnected tunnel for a user.
func (s *TunnelService) Create(userID string, localPort int) registry.TunnelSnapshot {
	snapshot := s.registry.RegisterTunnel(userID, localPort)
	s.logger.Info("API created tunnel %s for user %s (local port %d)", snapshot.TunnelID, userID, localPort)
	return snapshot
}

// Get returns a snapshot of the tunnel.
func (s *TunnelService) Get(tunnelID string) (registry.TunnelSnapshot, error) {
	return s.registry.GetTunnel(tunnelID)
}

// MapDomain points a subdomain under the base domain at the tunnel.
func (s *TunnelService) MapDomain(tunnelID, subdomain string) (string, error) {
	fullHost, err := s.registry.MapDomain(tunnelID, subdomain)
	if err != nil {
		return "", err
	}
	s.logger.Info("API mapped %s to tunnel %s", fullHost, tunnelID)
	return fullHost, nil
}

// Delete removes the tunnel; a bound control link is closed, which
// triggers the FRP listener's cleanup.
func (s *TunnelService) Delete(tunnelID string) error {
	if err := s.registry.DeleteTunnel(tunnelID); err != nil {
		return err
	}
	s.logger.Info("API deleted tunnel %s", tunnelID)
	return nil
}
