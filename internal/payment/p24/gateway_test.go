package p24_test

import (
	"context"
	"strings"
	"testing"

	"github.com/korkiapp/korki/internal/payment/domain"
	"github.com/korkiapp/korki/internal/payment/p24"
	"go.uber.org/zap"
)

func newTestGateway() *p24.Gateway {
	return p24.New(p24.Config{PublicURL: "https://korki.test"}, zap.NewNop())
}

func TestTestModeWithoutCredentials(t *testing.T) {
	g := newTestGateway()
	if !g.TestMode() {
		t.Fatal("gateway without credentials must run in test mode")
	}

	live := p24.New(p24.Config{
		MerchantID: 12345,
		PosID:      12345,
		APIKey:     "key",
		CRC:        "crc",
		BaseURL:    "https://sandbox.przelewy24.pl",
		PublicURL:  "https://korki.test",
	}, zap.NewNop())
	if live.TestMode() {
		t.Fatal("gateway with full credentials must not run in test mode")
	}
}

func TestRegisterInTestModeRedirectsToSimulator(t *testing.T) {
	g := newTestGateway()

	reg, err := g.Register(context.Background(), domain.RegisterIntent{
		SessionID: "sess-1",
		Amount:    2900,
		Currency:  "PLN",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.HasSuffix(reg.RedirectURL, "/payments/simulate/sess-1") {
		t.Fatalf("redirect url = %s, want simulator path", reg.RedirectURL)
	}
}

func TestVerifyNotification(t *testing.T) {
	g := newTestGateway()

	n := domain.Notification{
		SessionID:    "sess-1",
		Amount:       2900,
		OriginAmount: 2900,
		Currency:     "PLN",
		OrderID:      42,
		Statement:    "korki.app: aktywacja/ogłoszenie",
	}
	sign, err := g.SignNotification(n)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	n.Sign = sign

	if !g.VerifyNotification(n) {
		t.Fatal("correctly signed notification must verify")
	}

	upper := n
	upper.Sign = strings.ToUpper(sign)
	if !g.VerifyNotification(upper) {
		t.Fatal("sign comparison must be case insensitive")
	}

	tampered := n
	tampered.Amount = 1
	if g.VerifyNotification(tampered) {
		t.Fatal("tampered amount must fail verification")
	}

	badSign := n
	badSign.Sign = strings.Repeat("0", 96)
	if g.VerifyNotification(badSign) {
		t.Fatal("wrong sign must fail verification")
	}
}

func TestVerifyNotificationRejectsForeignMerchant(t *testing.T) {
	g := p24.New(p24.Config{
		MerchantID: 12345,
		PosID:      12345,
		APIKey:     "key",
		CRC:        "crc",
		BaseURL:    "https://sandbox.przelewy24.pl",
		PublicURL:  "https://korki.test",
	}, zap.NewNop())

	n := domain.Notification{MerchantID: 99999, SessionID: "sess-1", Amount: 100}
	sign, err := g.SignNotification(n)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	n.Sign = sign

	if g.VerifyNotification(n) {
		t.Fatal("notification for another merchant must be rejected")
	}
}
