package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/cz7host/frp/internal/config"
	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/tunnel"
)

// Client maintains the outbound control connection and opens a fresh
// data channel for every NEW_CONNECTION command the server sends.
type Client struct {
	cfg    *config.ClientConfig
	logger *logging.Logger
	conn   net.Conn
}

func New(cfg *config.ClientConfig) *Client {
	return &Client{
		cfg:    cfg,
		logger: logging.GetGlobalLogger(),
	}
}

func (c *Client) serverAddr() string {
	return net.JoinHostPort(c.cfg.ServerIP, strconv.Itoa(c.cfg.ServerPort))
}

func (c *Client) localAddr() string {
	return net.JoinHostPort(c.cfg.LocalIP, strconv.Itoa(c.cfg.LocalPort))
}

// Connect dials the server and registers this process as the tunnel's
// control channel.
func (c *Client) Connect() error {
	conn, err := net.Dial("tcp", c.serverAddr())
	if err != nil {
		return fmt.Errorf("failed to connect to FRP server at %s: %w", c.serverAddr(), err)
	}

	if _, err := conn.Write([]byte(tunnel.CmdControl + c.cfg.TunnelID + "\n")); err != nil {
		conn.Close()
		return fmt.Errorf("failed to register control channel: %w", err)
	}

	c.conn = conn
	c.logger.Info("[%s] Control channel established to %s", c.cfg.TunnelID, c.serverAddr())
	c.logger.Info("[%s] Forwarding to local service at %s", c.cfg.TunnelID, c.localAddr())
	return nil
}

// Serve processes server commands until the control connection dies or
// ctx is cancelled. Cancellation returns nil; an unexpected loss of the
// control channel returns an error.
func (c *Client) Serve(ctx context.Context) error {
	if c.conn == nil {
		return errors.New("not connected")
	}

	// Unblock the command read on cancellation.
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			c.conn.Close()
		case <-stopped:
		}
	}()

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			c.conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return errors.New("server closed the control connection")
			}
			return fmt.Errorf("control channel failed: %w", err)
		}

		command := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(command, tunnel.CmdNewConnection) {
			token := strings.TrimPrefix(command, tunnel.CmdNewConnection)
			// Data channels must not serialize with the command loop.
			go c.openDataChannel(token)
		}
	}
}

// Run is Connect followed by Serve.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(); err != nil {
		return err
	}
	return c.Serve(ctx)
}

// openDataChannel dials the server with the rendezvous token, connects
// to the local service and splices the two.
func (c *Client) openDataChannel(token string) {
	serverConn, err := net.Dial("tcp", c.serverAddr())
	if err != nil {
		c.logger.Error("[%s] Failed to open data channel: %v", c.cfg.TunnelID, err)
		return
	}

	if _, err := serverConn.Write([]byte(tunnel.CmdData + token + "\n")); err != nil {
		serverConn.Close()
		c.logger.Error("[%s] Failed to claim data channel: %v", c.cfg.TunnelID, err)
		return
	}

	localConn, err := net.Dial("tcp", c.localAddr())
	if err != nil {
		// The public side observes a reset; nothing else to salvage.
		serverConn.Close()
		c.logger.Error("[%s] Cannot reach local service at %s: %v", c.cfg.TunnelID, c.localAddr(), err)
		return
	}

	tunnel.Splice(serverConn, serverConn, localConn, localConn)
}
