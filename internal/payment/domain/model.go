package domain

import (
	"context"
	"errors"
)

// RegisterIntent describes a payment to be opened with the gateway. The
// session identifier is our transaction ID; the gateway echoes it back in
// every notification.
type RegisterIntent struct {
	SessionID   string
	Amount      int64
	Currency    string
	Description string
	Email       string
	ReturnURL   string
}

// Registration is the gateway's answer: an opaque token and where to send
// the payer.
type Registration struct {
	Token       string
	RedirectURL string
}

// Notification is the asynchronous signed result delivered by the gateway.
// Field order matters for signature verification and must not be reordered.
type Notification struct {
	MerchantID   int64  `json:"merchantId"`
	PosID        int64  `json:"posId"`
	SessionID    string `json:"sessionId"`
	Amount       int64  `json:"amount"`
	OriginAmount int64  `json:"originAmount"`
	Currency     string `json:"currency"`
	OrderID      int64  `json:"orderId"`
	MethodID     int64  `json:"methodId"`
	Statement    string `json:"statement"`
	Sign         string `json:"sign"`
}

// Gateway is the external payment collaborator. Implementations must bound
// Register with the caller's context deadline.
type Gateway interface {
	Register(ctx context.Context, intent RegisterIntent) (*Registration, error)
	// VerifyNotification checks the payload's sign against the shared secret.
	// False means the payload must be rejected before any state change.
	VerifyNotification(n Notification) bool
	// TestMode reports that no real credentials are configured and payments
	// run against the internal simulation endpoint.
	TestMode() bool
}

var (
	ErrGatewayUnavailable = errors.New("payment_gateway_unavailable")
	ErrInvalidSignature   = errors.New("invalid_signature")
)
