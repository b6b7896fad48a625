package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cz7host/frp/internal/logging"
	"github.com/cz7host/frp/internal/registry"
)

const callbackTimeout = 5 * time.Second

// CallbackService notifies the bot when a tunnel client connects.
// Delivery is best-effort: failures are logged and never retried.
type CallbackService struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

func NewCallbackService(url, apiKey string) *CallbackService {
	return &CallbackService{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: callbackTimeout},
		logger:     logging.GetGlobalLogger(),
	}
}

type connectedEvent struct {
	TunnelID string `json:"tunnel_id"`
	UserID   string `json:"user_id"`
	Event    string `json:"event"`
}

// NotifyConnected posts a "connected" event for the tunnel. A no-op when
// no callback URL is configured.
func (s *CallbackService) NotifyConnected(snapshot registry.TunnelSnapshot) {
	if s.url == "" {
		return
	}

	payload, err := json.Marshal(connectedEvent{
		TunnelID: snapshot.TunnelID,
		UserID:   snapshot.UserID,
		Event:    "connected",
	})
	if err != nil {
		s.logger.Error("[%s] Failed to marshal callback payload: %v", snapshot.TunnelID, err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		s.logger.Error("[%s] Failed to build callback request: %v", snapshot.TunnelID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("[%s] Failed to deliver bot callback: %v", snapshot.TunnelID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		s.logger.Info("[%s] Bot callback delivered", snapshot.TunnelID)
	} else {
		s.logger.Warn("[%s] Bot callback rejected: %s", snapshot.TunnelID, resp.Status)
	}
}
