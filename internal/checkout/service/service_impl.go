package service

import (
	"context"
	"crypto/hmac"
	"fmt"

	"github.com/google/uuid"
	advertdomain "github.com/korkiapp/korki/internal/advert/domain"
	"github.com/korkiapp/korki/internal/checkout/domain"
	"github.com/korkiapp/korki/internal/clock"
	eligibilitydomain "github.com/korkiapp/korki/internal/eligibility/domain"
	paymentdomain "github.com/korkiapp/korki/internal/payment/domain"
	"github.com/korkiapp/korki/internal/phone"
	settlementdomain "github.com/korkiapp/korki/internal/settlement/domain"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	PriceActivation int64
	PriceExtension  int64
	PriceBump       int64
	Currency        string
	PublicURL       string
	Provider        string
}

func (c Config) withDefaults() Config {
	if c.Currency == "" {
		c.Currency = "PLN"
	}
	if c.Provider == "" {
		c.Provider = "p24"
	}
	return c
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	AdRepo     advertdomain.Repository
	TxRepo     txdomain.Repository
	Ledger     eligibilitydomain.Service
	Gateway    paymentdomain.Gateway
	Settlement settlementdomain.Service
	Hasher     *phone.Hasher
	Cfg        Config
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	adRepo     advertdomain.Repository
	txRepo     txdomain.Repository
	ledger     eligibilitydomain.Service
	gateway    paymentdomain.Gateway
	settlement settlementdomain.Service
	hasher     *phone.Hasher
	cfg        Config
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("checkout"),
		clock:      p.Clock,
		adRepo:     p.AdRepo,
		txRepo:     p.TxRepo,
		ledger:     p.Ledger,
		gateway:    p.Gateway,
		settlement: p.Settlement,
		hasher:     p.Hasher,
		cfg:        p.Cfg.withDefaults(),
	}
}

func (s *Service) RegisterIntent(ctx context.Context, req domain.IntentRequest) (*domain.Intent, error) {
	if !req.Type.Valid() {
		return nil, txdomain.ErrInvalidType
	}

	ad, err := s.adRepo.FindByID(ctx, s.db, req.AdID)
	if err != nil {
		return nil, err
	}
	if ad == nil || ad.Status == advertdomain.StatusDeleted || ad.Status == advertdomain.StatusBanned {
		return nil, advertdomain.ErrNotFound
	}
	if !hmac.Equal([]byte(req.ManagementToken), []byte(ad.ManagementToken)) {
		return nil, advertdomain.ErrInvalidToken
	}

	amount, err := s.price(ctx, req.Type, ad)
	if err != nil {
		return nil, err
	}

	tx := &txdomain.Transaction{
		ID:              uuid.NewString(),
		AdID:            ad.ID,
		Type:            req.Type,
		Amount:          amount,
		Currency:        s.cfg.Currency,
		Status:          txdomain.StatusPending,
		PaymentProvider: s.cfg.Provider,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.txRepo.Insert(ctx, s.db, tx); err != nil {
		return nil, err
	}

	// A free activation has nothing to collect: settle right away instead of
	// bouncing the user through the gateway. The settlement path is the same
	// one the webhook drives, so the exactly-once guarantees hold.
	if amount == 0 {
		if _, err := s.settlement.Settle(ctx, tx.ID, ""); err != nil {
			return nil, err
		}
		return &domain.Intent{
			TransactionID: tx.ID,
			Amount:        0,
			Currency:      s.cfg.Currency,
			RedirectURL:   fmt.Sprintf("%s/payments/status/%s", s.cfg.PublicURL, tx.ID),
		}, nil
	}

	reg, err := s.gateway.Register(ctx, paymentdomain.RegisterIntent{
		SessionID:   tx.ID,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Description: fmt.Sprintf("korki.app: %s #%s", req.Type, ad.ID),
		Email:       ad.ContactEmail,
		ReturnURL:   fmt.Sprintf("%s/payments/status/%s", s.cfg.PublicURL, tx.ID),
	})
	if err != nil {
		// Fail fast rather than leaving the row pending for the sweep: the
		// payer never got a redirect, so nothing can complete this attempt.
		reason := fmt.Sprintf("gateway registration failed: %v", err)
		if _, failErr := s.txRepo.FailPending(ctx, s.db, tx.ID, reason); failErr != nil {
			s.log.Error("mark transaction failed", zap.String("transaction_id", tx.ID), zap.Error(failErr))
		}
		return nil, err
	}

	if err := s.txRepo.SetProviderSession(ctx, s.db, tx.ID, reg.Token); err != nil {
		return nil, err
	}

	return &domain.Intent{
		TransactionID: tx.ID,
		Amount:        amount,
		Currency:      s.cfg.Currency,
		RedirectURL:   reg.RedirectURL,
		TestMode:      s.gateway.TestMode(),
	}, nil
}

// price looks up the operation's price. Activation is free exactly when the
// ad's phone fingerprint has never consumed its free slot; the slot itself is
// only consumed later, on the winning settlement.
func (s *Service) price(ctx context.Context, typ txdomain.Type, ad *advertdomain.Advertisement) (int64, error) {
	switch typ {
	case txdomain.TypeActivation:
		if ad.PhoneHash == "" && ad.PhoneContact != "" {
			// Ads stored before fingerprinting have a contact number but no
			// hash. Backfill it so settlement sees the same key.
			if fp := s.hasher.Fingerprint(ad.PhoneContact); fp.Valid {
				if err := s.adRepo.SetPhoneHash(ctx, s.db, ad.ID, fp.Key); err != nil {
					return 0, err
				}
				ad.PhoneHash = fp.Key
			}
		}
		free, err := s.ledger.FreeSlotAvailable(ctx, s.db, ad.PhoneHash)
		if err != nil {
			return 0, err
		}
		if free {
			return 0, nil
		}
		return s.cfg.PriceActivation, nil
	case txdomain.TypeExtension:
		return s.cfg.PriceExtension, nil
	case txdomain.TypeBump:
		return s.cfg.PriceBump, nil
	default:
		return 0, txdomain.ErrInvalidType
	}
}
