package tunnel

import (
	"net"
	"sync"
	"time"

	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/registry"

	"github.com/google/uuid"
)

// Rendezvous pairs waiting public connections with the data channels the
// client dials in response to NEW_CONNECTION signals. It also owns the
// sweep that reaps entries no DATA channel ever claimed.
type Rendezvous struct {
	registry *registry.Registry
	logger   *logging.Logger

	ttl       time.Duration
	sweepTick time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

func NewRendezvous(reg *registry.Registry) *Rendezvous {
	return &Rendezvous{
		registry:  reg,
		logger:    logging.GetGlobalLogger(),
		ttl:       pendingTTL,
		sweepTick: sweepInterval,
		done:      make(chan struct{}),
	}
}

// Initiate hands a public connection off to a tunnel: park it under a
// fresh token and ask the client for a data channel. Ownership of
// publicConn moves into the pending map; on failure it is closed here,
// unless a DATA claim has already taken the entry.
func (r *Rendezvous) Initiate(tunnelID string, publicConn net.Conn, head []byte) {
	link, ok := r.registry.ControlLink(tunnelID)
	if !ok {
		r.logger.Debug("[%s] Signal dropped: tunnel not connected", tunnelID)
		publicConn.Close()
		return
	}

	token := uuid.NewString()
	r.registry.PutPending(token, publicConn, head)

	if err := link.WriteCommand(CmdNewConnection + token + "\n"); err != nil {
		// Revoke: the claim may already have raced in, in which case the
		// FRP listener owns the socket now.
		if entry, taken := r.registry.TakePending(token); taken {
			entry.PublicConn.Close()
		}
		r.logger.Warn("[%s] Failed to signal client: %v", tunnelID, err)
		return
	}

	r.logger.Debug("[%s] Client signaled for new connection (token: %.8s)", tunnelID, token)
}

// Start launches the expiry sweep.
func (r *Rendezvous) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.sweepTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.done:
				return
			}
		}
	}()
}

// Stop halts the sweep and reaps everything still pending.
func (r *Rendezvous) Stop() {
	close(r.done)
	r.wg.Wait()
	for _, entry := range r.registry.ExpirePending(0) {
		entry.PublicConn.Close()
	}
}

func (r *Rendezvous) sweep() {
	expired := r.registry.ExpirePending(r.ttl)
	for _, entry := range expired {
		entry.PublicConn.Close()
	}
	if len(expired) > 0 {
		r.logger.Info("Reaped %d expired rendezvous entries", len(expired))
	}
}
