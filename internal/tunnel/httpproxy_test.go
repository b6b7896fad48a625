package tunnel

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cz7host/frp/internal/registry"
)

func TestExtractHost(t *testing.T) {
	tests := []struct {
		name     string
		head     string
		wantHost string
		wantOK   bool
	}{
		{
			"plain host",
			"GET / HTTP/1.1\r\nHost: foo.tunnel.test\r\n\r\n",
			"foo.tunnel.test", true,
		},
		{
			"host with port",
			"GET / HTTP/1.1\r\nHost: foo.tunnel.test:8080\r\n\r\n",
			"foo.tunnel.test", true,
		},
		{
			"mixed case name and value",
			"GET / HTTP/1.1\r\nHOST: FOO.Tunnel.TEST\r\n\r\n",
			"foo.tunnel.test", true,
		},
		{
			"host after other headers",
			"GET / HTTP/1.1\r\nAccept: */*\r\nHost: bar.tunnel.test\r\n\r\n",
			"bar.tunnel.test", true,
		},
		{
			"no host header",
			"GET / HTTP/1.1\r\nAccept: */*\r\n\r\n",
			"", false,
		},
		{
			"empty host value",
			"GET / HTTP/1.1\r\nHost: \r\n\r\n",
			"", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, ok := extractHost([]byte(tt.head))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
		})
	}
}

func startHTTPProxy(t *testing.T, reg *registry.Registry, rdv *Rendezvous) string {
	t.Helper()

	proxy := NewHTTPProxy(reg, rdv)
	if err := proxy.Start("127.0.0.1:0"); err != nil {
		t.Fatalf("failed to start HTTP proxy: %v", err)
	}
	t.Cleanup(func() { proxy.Stop() })

	return proxy.Addr().String()
}

func TestUnknownHostGets404(t *testing.T) {
	reg := registry.New("tunnel.test")
	addr := startHTTPProxy(t, reg, NewRendezvous(reg))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET / HTTP/1.1\r\nHost: nope.tunnel.test\r\n\r\n"))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	resp, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(resp, notFoundResponse) {
		t.Errorf("got %q, want the 404 literal", resp)
	}
}

func TestMissingHostHeaderCloses(t *testing.T) {
	reg := registry.New("tunnel.test")
	addr := startHTTPProxy(t, reg, NewRendezvous(reg))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET / HTTP/1.1\r\nAccept: */*\r\n\r\n"))
	expectClosed(t, conn)
}

func TestOversizeHeadCloses(t *testing.T) {
	reg := registry.New("tunnel.test")
	addr := startHTTPProxy(t, reg, NewRendezvous(reg))

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// More than the cap, never a terminator.
	junk := bytes.Repeat([]byte("X"), maxHeaderBytes+1024)
	conn.Write(junk)
	expectClosed(t, conn)
}

// fakeClient mimics the tunnel client: it binds a control channel and
// serves every rendezvous by echoing the request head back at the public
// side, prefixed with a 200 status line.
func fakeClient(t *testing.T, addr, tunnelID string) {
	t.Helper()

	control, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("control dial failed: %v", err)
	}
	t.Cleanup(func() { control.Close() })

	if _, err := control.Write([]byte("CONTROL:" + tunnelID + "\n")); err != nil {
		t.Fatalf("control write failed: %v", err)
	}

	go func() {
		reader := bufio.NewReader(control)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			token := strings.TrimRight(strings.TrimPrefix(line, CmdNewConnection), "\n")
			go func(token string) {
				data, err := net.Dial("tcp", addr)
				if err != nil {
					return
				}
				defer data.Close()
				data.Write([]byte("DATA:" + token + "\n"))

				// Read one request head and echo it as the body.
				var head []byte
				buf := make([]byte, 1024)
				for !bytes.Contains(head, headTerminator) {
					n, err := data.Read(buf)
					if err != nil {
						return
					}
					head = append(head, buf[:n]...)
				}
				fmt.Fprintf(data, "HTTP/1.1 200 OK\r\nContent-Length: %d\r\n\r\n%s", len(head), head)
			}(token)
		}
	}()
}

func TestProxyEndToEnd(t *testing.T) {
	_, reg, frpAddr := startFRPServer(t)
	rdv := NewRendezvous(reg)
	httpAddr := startHTTPProxy(t, reg, rdv)

	id := reg.RegisterTunnel("u1", 8080).TunnelID
	if _, err := reg.MapDomain(id, "foo"); err != nil {
		t.Fatalf("map domain failed: %v", err)
	}

	fakeClient(t, frpAddr, id)
	waitFor(t, "control bind", func() bool {
		snapshot, _ := reg.GetTunnel(id)
		return snapshot.Connected
	})

	request := "GET /hello HTTP/1.1\r\nHost: foo.tunnel.test\r\n\r\n"

	conn, err := net.Dial("tcp", httpAddr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte(request))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reader := bufio.NewReader(conn)
	status, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.HasPrefix(status, "HTTP/1.1 200 OK") {
		t.Fatalf("unexpected status line: %q", status)
	}

	// The body is the exact head the backend observed.
	rest, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.HasSuffix(rest, []byte(request)) {
		t.Errorf("backend did not observe the intact request head: %q", rest)
	}
}

func TestProxyConcurrentSessionsNoCrossTalk(t *testing.T) {
	_, reg, frpAddr := startFRPServer(t)
	rdv := NewRendezvous(reg)
	httpAddr := startHTTPProxy(t, reg, rdv)

	id := reg.RegisterTunnel("u1", 8080).TunnelID
	reg.MapDomain(id, "foo")

	fakeClient(t, frpAddr, id)
	waitFor(t, "control bind", func() bool {
		snapshot, _ := reg.GetTunnel(id)
		return snapshot.Connected
	})

	const sessions = 25
	var wg sync.WaitGroup
	errs := make(chan error, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			request := fmt.Sprintf("GET /req-%d HTTP/1.1\r\nHost: foo.tunnel.test\r\nX-Session: %d\r\n\r\n", i, i)
			conn, err := net.Dial("tcp", httpAddr)
			if err != nil {
				errs <- err
				return
			}
			defer conn.Close()

			conn.Write([]byte(request))
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			resp, err := io.ReadAll(conn)
			if err != nil {
				errs <- fmt.Errorf("session %d: %w", i, err)
				return
			}
			if !bytes.HasSuffix(resp, []byte(request)) {
				errs <- fmt.Errorf("session %d observed foreign bytes: %q", i, resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
