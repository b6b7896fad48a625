package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cz7host/frp/internal/client"
	"github.com/cz7host/frp/internal/config"
	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/version"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var logger *logging.Logger

func initLogger(cfg *config.ClientConfig) {
	logFile := cfg.LogFile
	if logFile == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logFile = "stdout"
		} else {
			logFile = filepath.Join(homeDir, ".cz7", "client.log")
		}
	}

	if err := logging.InitLogger(&logging.LogConfig{
		File:       logFile,
		Level:      cfg.LogLevel,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
	}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger = logging.GetGlobalLogger()
}

var rootCmd = &cobra.Command{
	Use:   "cz7",
	Short: "CZ7 Host FRP client - expose a local service through a tunnel",
	Long: `CZ7 Host FRP client maintains an outbound control connection to the FRP
server and forwards tunneled requests to a local service, so the service
becomes reachable at its public hostname without any inbound ports.`,
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to the FRP server and serve tunnel traffic",
	Long: `Connect to the FRP server using the tunnel id issued by the management
API and forward incoming requests to the local service.

Example:
  TUNNEL_ID=<id> cz7 connect
  cz7 connect --server-host frp.cz7host.com --local-port 3000`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadClient()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		serverHost, _ := cmd.Flags().GetString("server-host")
		serverPort, _ := cmd.Flags().GetInt("server-port")
		localPort, _ := cmd.Flags().GetInt("local-port")
		tunnelID, _ := cmd.Flags().GetString("tunnel-id")
		if serverHost != "" {
			cfg.ServerIP = serverHost
		}
		if serverPort != 0 {
			cfg.ServerPort = serverPort
		}
		if localPort != 0 {
			cfg.LocalPort = localPort
		}
		if tunnelID != "" {
			cfg.TunnelID = tunnelID
		}

		if cfg.TunnelID == "" {
			fmt.Println("TUNNEL_ID is not set. Create a tunnel via the management API and export its id.")
			os.Exit(1)
		}

		initLogger(cfg)
		defer logger.Close()

		ctx, cancel := context.WithCancel(context.Background())
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			logger.Info("Received signal %v, shutting down...", sig)
			cancel()
		}()

		s := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Connecting to %s:%d...", cfg.ServerIP, cfg.ServerPort)
		s.Start()

		c := client.New(cfg)
		err = c.Connect()
		s.Stop()

		if err != nil {
			logger.Error("Failed to connect: %v", err)
			os.Exit(1)
		}

		logger.Info("Tunnel is running. Press Ctrl+C to stop.")
		if err := c.Serve(ctx); err != nil {
			logger.Error("Tunnel client terminated: %v", err)
			os.Exit(1)
		}
		logger.Info("Client stopped")
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cz7 version %s\n", version.Info())
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(versionCmd)

	connectCmd.Flags().String("server-host", "", "FRP server host (overrides SERVER_IP)")
	connectCmd.Flags().Int("server-port", 0, "FRP server port (overrides SERVER_PORT)")
	connectCmd.Flags().Int("local-port", 0, "Local service port (overrides LOCAL_PORT)")
	connectCmd.Flags().String("tunnel-id", "", "Tunnel id (overrides TUNNEL_ID)")
}

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Printf("Failed to load .env file: %v\n", err)
		os.Exit(1)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("Command execution failed: %v\n", err)
		os.Exit(1)
	}
}
