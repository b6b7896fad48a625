package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cz7host/frp/internal/config"
)

// fakeServer is a minimal FRP-side endpoint: it hands out the control
// connection and any data connections the client dials back.
type fakeServer struct {
	listener net.Listener
	control  chan net.Conn
	data     chan dataConn
}

type dataConn struct {
	conn  net.Conn
	token string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &fakeServer{
		listener: listener,
		control:  make(chan net.Conn, 1),
		data:     make(chan dataConn, 16),
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				line, err := bufio.NewReader(conn).ReadString('\n')
				if err != nil {
					conn.Close()
					return
				}
				line = strings.TrimRight(line, "\n")
				switch {
				case strings.HasPrefix(line, "CONTROL:"):
					s.control <- conn
				case strings.HasPrefix(line, "DATA:"):
					s.data <- dataConn{conn: conn, token: strings.TrimPrefix(line, "DATA:")}
				default:
					conn.Close()
				}
			}(conn)
		}
	}()

	return s
}

func (s *fakeServer) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// startEchoService runs a local TCP echo server.
func startEchoService(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				io.Copy(conn, conn)
			}(conn)
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port
}

func testClientConfig(serverPort, localPort int) *config.ClientConfig {
	return &config.ClientConfig{
		ServerIP:   "127.0.0.1",
		ServerPort: serverPort,
		LocalIP:    "127.0.0.1",
		LocalPort:  localPort,
		TunnelID:   "tunnel-1",
	}
}

func TestClientRegistersControlChannel(t *testing.T) {
	server := newFakeServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(testClientConfig(server.port(), 1))
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case conn := <-server.control:
		conn.Close()
	case <-time.After(3 * time.Second):
		t.Fatal("client never registered a control channel")
	}

	// Server-side close terminates the client with an error.
	select {
	case err := <-done:
		if err == nil {
			t.Error("expected an error after server closed the control channel")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("client did not terminate")
	}
}

func TestClientServesDataChannel(t *testing.T) {
	server := newFakeServer(t)
	echoPort := startEchoService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(testClientConfig(server.port(), echoPort))
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	var control net.Conn
	select {
	case control = <-server.control:
	case <-time.After(3 * time.Second):
		t.Fatal("no control channel")
	}
	defer control.Close()

	if _, err := control.Write([]byte("NEW_CONNECTION:tok-42\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	var data dataConn
	select {
	case data = <-server.data:
	case <-time.After(3 * time.Second):
		t.Fatal("client never opened a data channel")
	}
	defer data.conn.Close()

	if data.token != "tok-42" {
		t.Errorf("token = %q, want tok-42", data.token)
	}

	// Bytes pushed down the data channel come back via the local echo.
	if _, err := data.conn.Write([]byte("ping")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 4)
	if _, err := io.ReadFull(data.conn, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf) != "ping" {
		t.Errorf("got %q", buf)
	}

	// Cancellation shuts the client down cleanly.
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("client did not stop on cancellation")
	}
}

func TestClientConcurrentDataChannels(t *testing.T) {
	server := newFakeServer(t)
	echoPort := startEchoService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(testClientConfig(server.port(), echoPort))
	go c.Run(ctx)

	control := <-server.control
	defer control.Close()

	// Several commands back to back; the client must serve them all
	// without serializing on the command loop.
	const channels = 5
	for i := 0; i < channels; i++ {
		control.Write([]byte("NEW_CONNECTION:tok\n"))
	}

	for i := 0; i < channels; i++ {
		select {
		case data := <-server.data:
			data.conn.Close()
		case <-time.After(3 * time.Second):
			t.Fatalf("only %d of %d data channels arrived", i, channels)
		}
	}
}

func TestClientLocalDialFailure(t *testing.T) {
	server := newFakeServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nothing listens on the local port.
	unusedPort := func() int {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		port := l.Addr().(*net.TCPAddr).Port
		l.Close()
		return port
	}()

	c := New(testClientConfig(server.port(), unusedPort))
	go c.Run(ctx)

	control := <-server.control
	defer control.Close()
	control.Write([]byte("NEW_CONNECTION:tok\n"))

	var data dataConn
	select {
	case data = <-server.data:
	case <-time.After(3 * time.Second):
		t.Fatal("client never opened a data channel")
	}
	defer data.conn.Close()

	// The client closes the server-side link when the backend is down.
	data.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 1)
	if _, err := data.conn.Read(buf); err == nil {
		t.Error("expected the data channel to be closed")
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Error("data channel was not closed")
		}
	}
}

func TestServeWithoutConnect(t *testing.T) {
	c := New(testClientConfig(1, 1))
	if err := c.Serve(context.Background()); err == nil {
		t.Error("expected an error when serving without a connection")
	}
}
