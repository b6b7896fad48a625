package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
)

// ServerConfig is the server process configuration, read from the environment.
type ServerConfig struct {
	ServerIP   string `env:"SERVER_IP" envDefault:"0.0.0.0"`
	FRPPort    int    `env:"FRP_PORT" envDefault:"7000"`
	APIPort    int    `env:"API_PORT" envDefault:"8000"`
	HTTPPort   int    `env:"HTTP_PORT" envDefault:"80"`
	BaseDomain string `env:"BASE_DOMAIN" envDefault:"tunnel.cz7host.local"`

	APISecretKey   string `env:"API_SECRET_KEY" envDefault:"supersecretkey_for_discord_bot"`
	BotCallbackURL string `env:"BOT_CALLBACK_URL"`

	Environment  string `env:"ENV" envDefault:"development"`
	LogFile      string `env:"LOG_FILE" envDefault:"stdout"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	OTLPEndpoint string `env:"OTLP_ENDPOINT"`
}

// ClientConfig is the client process configuration, read from the environment.
type ClientConfig struct {
	ServerIP   string `env:"SERVER_IP" envDefault:"127.0.0.1"`
	ServerPort int    `env:"SERVER_PORT" envDefault:"7000"`
	LocalIP    string `env:"LOCAL_IP" envDefault:"127.0.0.1"`
	LocalPort  int    `env:"LOCAL_PORT" envDefault:"8080"`
	TunnelID   string `env:"TUNNEL_ID"`

	LogFile  string `env:"LOG_FILE"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadServer parses the server configuration from the environment.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server configuration: %w", err)
	}

	// env substitutes the default for a variable that is set but empty, so
	// an explicitly empty BASE_DOMAIN is rejected here.
	if value, set := os.LookupEnv("BASE_DOMAIN"); set && value == "" {
		return nil, fmt.Errorf("BASE_DOMAIN is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadClient parses the client configuration from the environment.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse client configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *ServerConfig) Validate() error {
	for name, port := range map[string]int{
		"FRP_PORT":  c.FRPPort,
		"API_PORT":  c.APIPort,
		"HTTP_PORT": c.HTTPPort,
	} {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid %s: %d", name, port)
		}
	}

	if c.BaseDomain == "" {
		return fmt.Errorf("BASE_DOMAIN is required")
	}

	if c.APISecretKey == "" {
		return fmt.Errorf("API_SECRET_KEY is required")
	}

	return nil
}

func (c *ClientConfig) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}

	if c.LocalPort <= 0 || c.LocalPort > 65535 {
		return fmt.Errorf("invalid LOCAL_PORT: %d", c.LocalPort)
	}

	return nil
}
