package tunnel

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/registry"
)

// FRPServer accepts client connections on the FRP port and classifies
// each by its first line: CONTROL binds a long-lived command channel,
// DATA claims a pending rendezvous and becomes a raw byte pipe.
type FRPServer struct {
	registry *registry.Registry
	logger   *logging.Logger
	listener net.Listener

	// Invoked after each successful control bind (bot callback).
	onConnect func(registry.TunnelSnapshot)
}

func NewFRPServer(reg *registry.Registry) *FRPServer {
	return &FRPServer{
		registry: reg,
		logger:   logging.GetGlobalLogger(),
	}
}

// SetOnConnectHook registers a hook invoked on each control bind.
func (s *FRPServer) SetOnConnectHook(hook func(registry.TunnelSnapshot)) {
	s.onConnect = hook
}

// Start begins accepting connections on addr.
func (s *FRPServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener
	go s.acceptConnections()

	s.logger.Info("FRP server listening on %s", addr)
	return nil
}

// Stop closes the listener. Established tunnels keep running.
func (s *FRPServer) Stop() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

// Addr returns the bound listener address.
func (s *FRPServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *FRPServer) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Error("Failed to accept FRP connection: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

func (s *FRPServer) handleConnection(conn net.Conn) {
	reader := bufio.NewReaderSize(conn, MaxCommandLine)
	line, err := readCommandLine(reader)
	if err != nil {
		// Malformed, oversize or dead before a full line arrived.
		conn.Close()
		return
	}

	switch {
	case strings.HasPrefix(line, CmdControl):
		s.handleControl(conn, reader, strings.TrimPrefix(line, CmdControl))
	case strings.HasPrefix(line, CmdData):
		s.handleData(conn, reader, strings.TrimPrefix(line, CmdData))
	default:
		conn.Close()
	}
}

// handleControl binds the connection as a tunnel's control channel and
// holds it until the peer goes away. Nothing the client sends after the
// CONTROL line means anything; the read exists to detect closure.
func (s *FRPServer) handleControl(conn net.Conn, reader *bufio.Reader, tunnelID string) {
	snapshot, err := s.registry.BindControl(tunnelID, conn, conn.RemoteAddr().String())
	if err != nil {
		s.logger.Debug("[%s] Control bind rejected: %v", tunnelID, err)
		conn.Close()
		return
	}

	s.logger.Info("[%s] Client connected from %s", tunnelID, snapshot.ClientAddr)

	if s.onConnect != nil {
		go s.onConnect(snapshot)
	}

	io.Copy(io.Discard, reader)

	if removed, ok := s.registry.UnbindControl(conn); ok {
		s.logger.Info("[%s] Client disconnected, tunnel purged", removed.TunnelID)
	}
	conn.Close()
}

// handleData claims a pending rendezvous. The buffered request head is
// replayed toward the client first so the backend sees an intact request,
// then both sockets are spliced.
func (s *FRPServer) handleData(conn net.Conn, reader *bufio.Reader, token string) {
	pending, ok := s.registry.TakePending(token)
	if !ok {
		conn.Close()
		return
	}

	if len(pending.Head) > 0 {
		if _, err := conn.Write(pending.Head); err != nil {
			conn.Close()
			pending.PublicConn.Close()
			return
		}
	}

	Splice(pending.PublicConn, pending.PublicConn, conn, reader)
}
