package domain

import "context"

// StatusInfo is the read-model for the polling endpoint. It only reveals
// state already decided by settlement, so it sits outside the trust boundary.
type StatusInfo struct {
	Status string `json:"status"`
	Type   string `json:"type,omitempty"`
	AdID   string `json:"ad_id,omitempty"`
}

const StatusUnknown = "unknown"

type Service interface {
	// Settle moves a pending transaction to completed and applies its ad-side
	// effect exactly once. Calling it again for the same transaction is a
	// successful no-op with applied=false. The caller must have verified the
	// notification signature first when invoked from the webhook path.
	Settle(ctx context.Context, txID, providerPaymentID string) (applied bool, err error)

	// Status reports a transaction's current state. Malformed ids return
	// transaction.ErrMalformedID before any lookup; unknown ids yield
	// StatusUnknown rather than an error, to avoid enabling enumeration.
	Status(ctx context.Context, txID string) (StatusInfo, error)
}
