package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cz7host/frp/internal/api"
	"github.com/cz7host/frp/internal/config"
	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/registry"
	"github.com/cz7host/frp/internal/service"
	"github.com/cz7host/frp/internal/tunnel"

	"github.com/gin-gonic/gin"
)

// Server wires the three listeners (FRP, HTTP proxy, management API)
// around one registry and manages their shared lifecycle.
type Server struct {
	cfg        *config.ServerConfig
	registry   *registry.Registry
	rendezvous *tunnel.Rendezvous
	frp        *tunnel.FRPServer
	httpProxy  *tunnel.HTTPProxy
	apiServer  *http.Server
	logger     *logging.Logger
}

func NewServer(cfg *config.ServerConfig) *Server {
	logger := logging.GetGlobalLogger()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := registry.New(cfg.BaseDomain)
	rendezvous := tunnel.NewRendezvous(reg)

	frp := tunnel.NewFRPServer(reg)
	callbacks := service.NewCallbackService(cfg.BotCallbackURL, cfg.APISecretKey)
	frp.SetOnConnectHook(callbacks.NotifyConnected)

	httpProxy := tunnel.NewHTTPProxy(reg, rendezvous)

	tunnelService := service.NewTunnelService(reg)
	apiServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.ServerIP, strconv.Itoa(cfg.APIPort)),
		Handler:           api.NewServer(tunnelService, cfg.APISecretKey).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		registry:   reg,
		rendezvous: rendezvous,
		frp:        frp,
		httpProxy:  httpProxy,
		apiServer:  apiServer,
		logger:     logger,
	}
}

// Run starts all listeners and blocks until SIGINT/SIGTERM, then shuts
// everything down. Returns nil on a clean shutdown.
func (s *Server) Run() error {
	frpAddr := net.JoinHostPort(s.cfg.ServerIP, strconv.Itoa(s.cfg.FRPPort))
	httpAddr := net.JoinHostPort(s.cfg.ServerIP, strconv.Itoa(s.cfg.HTTPPort))

	if err := s.frp.Start(frpAddr); err != nil {
		return fmt.Errorf("failed to start FRP server: %w", err)
	}
	if err := s.httpProxy.Start(httpAddr); err != nil {
		s.frp.Stop()
		return fmt.Errorf("failed to start HTTP proxy: %w", err)
	}
	s.rendezvous.Start()

	apiErr := make(chan error, 1)
	go func() {
		s.logger.Info("Management API listening on %s", s.apiServer.Addr)
		if err := s.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			apiErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Received signal %v, shutting down...", sig)
	case err := <-apiErr:
		s.shutdown()
		return fmt.Errorf("management API failed: %w", err)
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.apiServer.Shutdown(ctx); err != nil {
		s.logger.Error("Management API shutdown error: %v", err)
	}
	if err := s.httpProxy.Stop(); err != nil {
		s.logger.Error("HTTP proxy shutdown error: %v", err)
	}
	if err := s.frp.Stop(); err != nil {
		s.logger.Error("FRP server shutdown error: %v", err)
	}
	s.rendezvous.Stop()

	s.logger.Info("Servers shutdown complete")
	return nil
}
