package tunnel

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/registry"
	"github.com/cz7host/frp/internal/utils"
)

var headTerminator = []byte("\r\n\r\n")

// notFoundResponse is the exact byte sequence written for unmapped hosts.
var notFoundResponse = []byte("HTTP/1.1 404 Not Found\r\nContent-Length: 26\r\n\r\nCZ7 Host: Tunnel Not Found")

var errHeadTooLarge = errors.New("request head exceeds size cap")

// HTTPProxy accepts public HTTP connections, reads the request head far
// enough to extract the Host header and hands the connection to the
// rendezvous engine. Everything already read is carried along as the
// replayable head buffer.
type HTTPProxy struct {
	registry   *registry.Registry
	rendezvous *Rendezvous
	logger     *logging.Logger
	listener   net.Listener
}

func NewHTTPProxy(reg *registry.Registry, rdv *Rendezvous) *HTTPProxy {
	return &HTTPProxy{
		registry:   reg,
		rendezvous: rdv,
		logger:     logging.GetGlobalLogger(),
	}
}

// Start begins accepting public connections on addr.
func (p *HTTPProxy) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	p.listener = listener
	go p.acceptConnections()

	p.logger.Info("HTTP proxy listening on %s for *.%s", addr, p.registry.BaseDomain())
	return nil
}

// Stop closes the listener. In-flight sessions keep running.
func (p *HTTPProxy) Stop() error {
	if p.listener == nil {
		return nil
	}
	return p.listener.Close()
}

// Addr returns the bound listener address.
func (p *HTTPProxy) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

func (p *HTTPProxy) acceptConnections() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			p.logger.Error("Failed to accept public connection: %v", err)
			continue
		}

		go p.handleConnection(conn)
	}
}

func (p *HTTPProxy) handleConnection(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(headReadTimeout))
	head, err := readRequestHead(conn)
	if err != nil {
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	host, ok := extractHost(head)
	if !ok {
		conn.Close()
		return
	}

	tunnelID, ok := p.registry.LookupHost(host)
	if !ok {
		conn.Write(notFoundResponse)
		conn.Close()
		return
	}

	p.rendezvous.Initiate(tunnelID, conn, head)
}

// readRequestHead accumulates bytes until the header terminator shows up.
// Pipelined bytes past the terminator that arrive in the same read stay
// in the buffer and are replayed to the backend verbatim.
func readRequestHead(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 0, 1024)
	chunk := make([]byte, 1024)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if bytes.Contains(buf, headTerminator) {
				return buf, nil
			}
			if len(buf) > maxHeaderBytes {
				return nil, errHeadTooLarge
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

// extractHost finds the first Host header in the request head and
// normalizes its value. Only the Host header is consulted; absolute-URI
// request lines are not rewritten.
func extractHost(head []byte) (string, bool) {
	for _, line := range strings.Split(string(head), "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "host:") {
			host := utils.NormalizeHost(line[len("host:"):])
			if host == "" {
				return "", false
			}
			return host, true
		}
	}
	return "", false
}
