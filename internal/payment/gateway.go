package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/kiosko-dev/backend-kiosko/internal/resilience"
)

// ErrGateway wraps any failure talking to the external payment provider.
var ErrGateway = errors.New("payment gateway error")

// HTTPGateway talks to a hosted-checkout style provider over JSON.
type HTTPGateway struct {
	BaseURL   string
	SecretKey string
	Client    *resilience.HTTPClient
}

type sessionPayload struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url"`
	Expired     bool   `json:"expired"`
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body any) (sessionPayload, error) {
	if g == nil || g.Client == nil {
		return sessionPayload{}, fmt.Errorf("%w: client not configured", ErrGateway)
	}
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return sessionPayload{}, err
		}
		reader = bytes.NewReader(buf)
	}
	url := strings.TrimRight(g.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return sessionPayload{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(ctx, req)
	if err != nil {
		return sessionPayload{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return sessionPayload{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return sessionPayload{}, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return sessionPayload{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	return payload, nil
}

// CreateSession opens a hosted checkout session for the order.
func (g *HTTPGateway) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	payload, err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", map[string]any{
		"reference":   req.OrderNumber,
		"amount":      req.Amount,
		"currency":    req.Currency,
		"success_url": req.SuccessURL,
		"cancel_url":  req.CancelURL,
	})
	if err != nil {
		return Session{}, err
	}
	if payload.ID == "" || payload.RedirectURL == "" {
		return Session{}, fmt.Errorf("%w: session missing id or redirect url", ErrGateway)
	}
	return Session{ID: payload.ID, RedirectURL: payload.RedirectURL}, nil
}

// RetrieveSession queries the gateway for the session's payment outcome.
func (g *HTTPGateway) RetrieveSession(ctx context.Context, sessionID string) (SessionState, error) {
	payload, err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return SessionState{}, err
	}
	status := strings.ToLower(strings.TrimSpace(payload.Status))
	return SessionState{
		Paid:    status == "paid" || status == "complete",
		Expired: payload.Expired || status == "expired",
		Status:  status,
	}, nil
}

// MockGateway is an in-memory gateway for development and tests.
type MockGateway struct {
	mu       sync.Mutex
	seq      int
	sessions map[string]*SessionState
}

// NewMockGateway constructs an empty mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{sessions: make(map[string]*SessionState)}
}

// CreateSession records a new unpaid session.
func (m *MockGateway) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("mock_sess_%06d", m.seq)
	m.sessions[id] = &SessionState{Status: "open"}
	return Session{ID: id, RedirectURL: "https://gateway.mock/checkout/" + id}, nil
}

// RetrieveSession returns the recorded state of a session.
func (m *MockGateway) RetrieveSession(_ context.Context, sessionID string) (SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.sessions[sessionID]
	if !ok {
		return SessionState{}, fmt.Errorf("%w: unknown session %s", ErrGateway, sessionID)
	}
	return *state, nil
}

// SetPaid marks a mock session paid.
func (m *MockGateway) SetPaid(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Paid = true
		s.Status = "paid"
	}
}

// SetExpired marks a mock session expired.
func (m *MockGateway) SetExpired(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Expired = true
		s.Status = "expired"
	}
}
