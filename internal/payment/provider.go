package payment

import "context"

// SessionRequest captures the information needed to open a gateway checkout session.
type SessionRequest struct {
	OrderNumber string
	Amount      int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// Session is the gateway's handle for one checkout attempt.
type Session struct {
	ID          string
	RedirectURL string
}

// SessionState is the gateway-reported outcome of a session.
type SessionState struct {
	Paid    bool
	Expired bool
	Status  string
}

// Gateway abstracts the external payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (SessionState, error)
}
