package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	checkoutdomain "github.com/korkiapp/korki/internal/checkout/domain"
	paymentdomain "github.com/korkiapp/korki/internal/payment/domain"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
)

// webhookRequest mirrors the gateway notification with pointer fields so a
// missing key is distinguishable from a zero value.
type webhookRequest struct {
	MerchantID   *int64  `json:"merchantId"`
	PosID        int64   `json:"posId"`
	SessionID    *string `json:"sessionId"`
	Amount       *int64  `json:"amount"`
	OriginAmount int64   `json:"originAmount"`
	Currency     string  `json:"currency"`
	OrderID      int64   `json:"orderId"`
	MethodID     int64   `json:"methodId"`
	Statement    string  `json:"statement"`
	Sign         *string `json:"sign"`
}

func (r webhookRequest) validate() error {
	switch {
	case r.SessionID == nil || *r.SessionID == "":
		return newValidationError("sessionId", "required", "sessionId is required")
	case r.MerchantID == nil:
		return newValidationError("merchantId", "required", "merchantId is required")
	case r.Amount == nil:
		return newValidationError("amount", "required", "amount is required")
	case r.Sign == nil || *r.Sign == "":
		return newValidationError("sign", "required", "sign is required")
	}
	return nil
}

func (r webhookRequest) notification() paymentdomain.Notification {
	return paymentdomain.Notification{
		MerchantID:   *r.MerchantID,
		PosID:        r.PosID,
		SessionID:    *r.SessionID,
		Amount:       *r.Amount,
		OriginAmount: r.OriginAmount,
		Currency:     r.Currency,
		OrderID:      r.OrderID,
		MethodID:     r.MethodID,
		Statement:    r.Statement,
		Sign:         *r.Sign,
	}
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.metrics.RecordWebhook("malformed")
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		s.metrics.RecordWebhook("malformed")
		AbortWithError(c, err)
		return
	}

	n := req.notification()
	if !s.gateway.VerifyNotification(n) {
		s.metrics.RecordWebhook("invalid_signature")
		s.log.Warn("webhook signature rejected", zap.String("session_id", n.SessionID))
		AbortWithError(c, paymentdomain.ErrInvalidSignature)
		return
	}

	s.settleNotification(c, n)
}

// settleNotification drives the verified notification through settlement.
// Shared by the live webhook and the test-mode simulator.
func (s *Server) settleNotification(c *gin.Context, n paymentdomain.Notification) {
	applied, err := s.settlementSvc.Settle(c.Request.Context(), n.SessionID, strconv.FormatInt(n.OrderID, 10))
	if err != nil {
		s.metrics.RecordWebhook("error")
		AbortWithError(c, err)
		return
	}

	if applied {
		s.metrics.RecordWebhook("settled")
	} else {
		s.metrics.RecordWebhook("duplicate")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type intentRequest struct {
	AdID            string `json:"ad_id"`
	Type            string `json:"type"`
	ManagementToken string `json:"management_token"`
}

func (s *Server) RegisterPaymentIntent(c *gin.Context) {
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request body"))
		return
	}
	if req.AdID == "" {
		AbortWithError(c, newValidationError("ad_id", "required", "ad_id is required"))
		return
	}
	if req.ManagementToken == "" {
		AbortWithError(c, newValidationError("management_token", "required", "management_token is required"))
		return
	}

	adID, err := snowflake.ParseString(req.AdID)
	if err != nil {
		AbortWithError(c, newValidationError("ad_id", "invalid", "ad_id is not a valid id"))
		return
	}

	intent, err := s.checkoutSvc.RegisterIntent(c.Request.Context(), checkoutdomain.IntentRequest{
		AdID:            adID,
		Type:            txdomain.Type(req.Type),
		ManagementToken: req.ManagementToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, intent)
}

var simulatePageTmpl = template.Must(template.New("simulate").Parse(`<!DOCTYPE html>
<html lang="pl">
<head><meta charset="utf-8"><title>Symulacja płatności</title></head>
<body>
  <h1>Symulacja płatności</h1>
  <p>Transakcja: {{.TransactionID}}</p>
  <p>Kwota: {{.Amount}} {{.Currency}}</p>
  <form method="post" action="/payments/simulate/{{.TransactionID}}/complete">
    <button type="submit">Zapłać</button>
  </form>
</body>
</html>`))

func (s *Server) SimulatePaymentPage(c *gin.Context) {
	if !s.gateway.TestMode() {
		AbortWithError(c, ErrForbidden)
		return
	}

	tx, err := s.findSimulatedTransaction(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = simulatePageTmpl.Execute(c.Writer, gin.H{
		"TransactionID": tx.ID,
		"Amount":        fmt.Sprintf("%d,%02d", tx.Amount/100, tx.Amount%100),
		"Currency":      tx.Currency,
	})
}

// SimulatePaymentComplete forges the notification a real gateway would send
// and runs it through the same verify-then-settle path as the live webhook.
func (s *Server) SimulatePaymentComplete(c *gin.Context) {
	if !s.gateway.TestMode() {
		AbortWithError(c, ErrForbidden)
		return
	}

	tx, err := s.findSimulatedTransaction(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	n := paymentdomain.Notification{
		SessionID:    tx.ID,
		Amount:       tx.Amount,
		OriginAmount: tx.Amount,
		Currency:     tx.Currency,
		OrderID:      time.Now().UnixMilli(),
		Statement:    "korki.app simulation",
	}
	sign, err := s.gateway.SignNotification(n)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	n.Sign = sign

	if !s.gateway.VerifyNotification(n) {
		AbortWithError(c, paymentdomain.ErrInvalidSignature)
		return
	}

	s.settleNotification(c, n)
}

func (s *Server) findSimulatedTransaction(c *gin.Context) (*txdomain.Transaction, error) {
	id := c.Param("id")
	tx, err := s.txRepo.FindByID(c.Request.Context(), s.db, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, txdomain.ErrNotFound
	}
	return tx, nil
}

func (s *Server) GetTransactionStatus(c *gin.Context) {
	info, err := s.settlementSvc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}
