package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
)

type IntentRequest struct {
	AdID            snowflake.ID
	Type            txdomain.Type
	ManagementToken string
}

type Intent struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	RedirectURL   string `json:"redirect_url"`
	TestMode      bool   `json:"test_mode,omitempty"`
}

// Service opens a payment attempt: authorizes the management token, prices
// the operation (activation may be free), creates the pending transaction
// and registers it with the gateway.
type Service interface {
	RegisterIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}
