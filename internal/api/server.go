package api

import (
	"time"

	"github.com/cz7host/frp/internal/api/handlers"
	apimiddleware "github.com/cz7host/frp/internal/api/middleware"
	"github.com/cz7host/frp/internal/api/validation"
	"github.com/cz7host/frp/internal/middleware"
	"github.com/cz7host/frp/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Server is the management REST API over the registry.
type Server struct {
	router        *gin.Engine
	tunnelService *service.TunnelService
	apiSecretKey  string
}

func NewServer(tunnelService *service.TunnelService, apiSecretKey string) *Server {
	validation.RegisterValidators()

	server := &Server{
		router:        gin.New(),
		tunnelService: tunnelService,
		apiSecretKey:  apiSecretKey,
	}

	// Configure CORS
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"*"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", apimiddleware.HeaderAPIKey, "X-Request-ID"}
	config.MaxAge = 12 * time.Hour
	server.router.Use(cors.New(config))

	// Add middleware
	server.router.Use(middleware.Recovery())
	server.router.Use(middleware.RequestID())
	server.router.Use(middleware.Logger())
	server.router.Use(otelgin.Middleware("cz7-frp-api"))

	// Initialize routes
	server.initializeRoutes()

	return server
}

func (s *Server) initializeRoutes() {
	healthHandler := handlers.NewHealthHandler()
	tunnelHandler := handlers.NewTunnelHandler(s.tunnelService)

	s.router.GET("/health", healthHandler.Check)

	protected := s.router.Group("/api/v1")
	protected.Use(apimiddleware.APIKeyAuth(s.apiSecretKey))
	{
		protected.POST("/tunnels", tunnelHandler.CreateTunnel)
		protected.GET("/tunnels/:id", tunnelHandler.GetTunnel)
		protected.PUT("/tunnels/:id/domain", tunnelHandler.MapDomain)
		protected.DELETE("/tunnels/:id", tunnelHandler.DeleteTunnel)
	}
}

// Handler exposes the underlying router, mainly for http.Server wiring
// and tests.
func (s *Server) Handler() *gin.Engine {
	return s.router
}
