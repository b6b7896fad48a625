package registry

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a tunnel id has no live record.
	ErrNotFound = errors.New("tunnel not found")
	// ErrConflict is returned when a domain is already bound to another tunnel.
	ErrConflict = errors.New("domain already in use")
	// ErrAlreadyConnected is returned when a tunnel already has a bound control link.
	ErrAlreadyConnected = errors.New("tunnel already connected")
)

// ControlLink is the writable half of a bound control connection.
// Command writes are serialized so concurrent rendezvous signals
// never interleave on the wire.
type ControlLink struct {
	mu       sync.Mutex
	conn     net.Conn
	peerAddr string
}

// WriteCommand writes one command line on the control channel.
func (l *ControlLink) WriteCommand(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := l.conn.Write([]byte(line))
	return err
}

// Close closes the underlying control connection. The FRP listener's
// blocked read observes the close and runs the cleanup path.
func (l *ControlLink) Close() error {
	return l.conn.Close()
}

// PeerAddr returns the remote address of the control connection.
func (l *ControlLink) PeerAddr() string {
	return l.peerAddr
}

// TunnelSnapshot is a serializable view of a tunnel record. It never
// carries the live socket handle.
type TunnelSnapshot struct {
	TunnelID   string `json:"tunnel_id"`
	UserID     string `json:"user_id"`
	LocalPort  int    `json:"local_port"`
	Domain     string `json:"domain,omitempty"`
	Connected  bool   `json:"connected"`
	ClientAddr string `json:"client_addr,omitempty"`
}

type tunnelEntry struct {
	tunnelID  string
	userID    string
	localPort int
	domain    string
	control   *ControlLink
}

func (t *tunnelEntry) snapshot() TunnelSnapshot {
	s := TunnelSnapshot{
		TunnelID:  t.tunnelID,
		UserID:    t.userID,
		LocalPort: t.localPort,
		Domain:    t.domain,
		Connected: t.control != nil,
	}
	if t.control != nil {
		s.ClientAddr = t.control.peerAddr
	}
	return s
}

// Pending is a rendezvous waiting for its DATA channel. Ownership of
// PublicConn transfers in through PutPending and out through TakePending
// or the expiry sweep; whoever takes the entry owns the close.
type Pending struct {
	Token      string
	PublicConn net.Conn
	Head       []byte
	CreatedAt  time.Time
}

// Registry holds all tunnel and rendezvous state. Every operation runs
// under one mutex; none of them block on I/O.
type Registry struct {
	mu         sync.Mutex
	baseDomain string
	tunnels    map[string]*tunnelEntry
	domains    map[string]string
	pending    map[string]*Pending
}

func New(baseDomain string) *Registry {
	return &Registry{
		baseDomain: strings.ToLower(baseDomain),
		tunnels:    make(map[string]*tunnelEntry),
		domains:    make(map[string]string),
		pending:    make(map[string]*Pending),
	}
}

// BaseDomain returns the configured base domain.
func (r *Registry) BaseDomain() string {
	return r.baseDomain
}

// RegisterTunnel allocates a fresh tunnel id and inserts an unconnected record.
func (r *Registry) RegisterTunnel(userID string, localPort int) TunnelSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &tunnelEntry{
		tunnelID:  uuid.NewString(),
		userID:    userID,
		localPort: localPort,
	}
	r.tunnels[entry.tunnelID] = entry
	return entry.snapshot()
}

// DeleteTunnel removes a tunnel record and its domain mapping. A bound
// control link is closed after the state mutation, which makes the FRP
// listener's blocked read fail and run its cleanup path (a no-op by then).
func (r *Registry) DeleteTunnel(tunnelID string) error {
	r.mu.Lock()
	entry, ok := r.tunnels[tunnelID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}

	if entry.domain != "" {
		delete(r.domains, entry.domain)
	}
	delete(r.tunnels, tunnelID)
	control := entry.control
	r.mu.Unlock()

	if control != nil {
		control.Close()
	}
	return nil
}

// GetTunnel returns a snapshot of the tunnel record.
func (r *Registry) GetTunnel(tunnelID string) (TunnelSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tunnels[tunnelID]
	if !ok {
		return TunnelSnapshot{}, ErrNotFound
	}
	return entry.snapshot(), nil
}

// MapDomain binds lower(subdomain).baseDomain to the tunnel, replacing any
// previous domain the tunnel held. Re-mapping the same tunnel to the same
// host is a no-op.
func (r *Registry) MapDomain(tunnelID, subdomain string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tunnels[tunnelID]
	if !ok {
		return "", ErrNotFound
	}

	fullHost := strings.ToLower(subdomain) + "." + r.baseDomain
	if owner, taken := r.domains[fullHost]; taken && owner != tunnelID {
		return "", ErrConflict
	}

	if entry.domain != "" && entry.domain != fullHost {
		delete(r.domains, entry.domain)
	}
	r.domains[fullHost] = tunnelID
	entry.domain = fullHost
	return fullHost, nil
}

// BindControl attaches a control connection to an unconnected tunnel.
func (r *Registry) BindControl(tunnelID string, conn net.Conn, peerAddr string) (TunnelSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tunnels[tunnelID]
	if !ok {
		return TunnelSnapshot{}, ErrNotFound
	}
	if entry.control != nil {
		return TunnelSnapshot{}, ErrAlreadyConnected
	}

	entry.control = &ControlLink{conn: conn, peerAddr: peerAddr}
	return entry.snapshot(), nil
}

// UnbindControl reverses BindControl, keyed by connection identity. The
// tunnel record and its domain mapping are removed entirely: a tunnel
// whose client went away must stop resolving.
func (r *Registry) UnbindControl(conn net.Conn) (TunnelSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.tunnels {
		if entry.control != nil && entry.control.conn == conn {
			if entry.domain != "" {
				delete(r.domains, entry.domain)
			}
			delete(r.tunnels, id)
			return entry.snapshot(), true
		}
	}
	return TunnelSnapshot{}, false
}

// ControlLink returns the control link of a connected tunnel.
func (r *Registry) ControlLink(tunnelID string) (*ControlLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tunnels[tunnelID]
	if !ok || entry.control == nil {
		return nil, false
	}
	return entry.control, true
}

// LookupHost resolves a lowercased hostname to a tunnel id.
func (r *Registry) LookupHost(hostname string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tunnelID, ok := r.domains[hostname]
	return tunnelID, ok
}

// PutPending stores a rendezvous entry, transferring ownership of the
// public connection into the registry.
func (r *Registry) PutPending(token string, publicConn net.Conn, head []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending[token] = &Pending{
		Token:      token,
		PublicConn: publicConn,
		Head:       head,
		CreatedAt:  time.Now(),
	}
}

// TakePending removes and returns a rendezvous entry. Exactly one caller
// wins a given token.
func (r *Registry) TakePending(token string) (*Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[token]
	if !ok {
		return nil, false
	}
	delete(r.pending, token)
	return entry, true
}

// ExpirePending removes and returns every pending entry older than ttl.
// The caller owns closing the returned public connections.
func (r *Registry) ExpirePending(ttl time.Duration) []*Pending {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	var expired []*Pending
	for token, entry := range r.pending {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.pending, token)
			expired = append(expired, entry)
		}
	}
	return expired
}

// PendingCount reports the number of outstanding rendezvous entries.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
