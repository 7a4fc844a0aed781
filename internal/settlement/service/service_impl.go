package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	advertdomain "github.com/korkiapp/korki/internal/advert/domain"
	"github.com/korkiapp/korki/internal/clock"
	eligibilitydomain "github.com/korkiapp/korki/internal/eligibility/domain"
	"github.com/korkiapp/korki/internal/notifier"
	obsmetrics "github.com/korkiapp/korki/internal/observability/metrics"
	"github.com/korkiapp/korki/internal/settlement/domain"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Config struct {
	ValidityDays  int
	ExtensionDays int
	PublicURL     string
}

func (c Config) withDefaults() Config {
	if c.ValidityDays <= 0 {
		c.ValidityDays = 30
	}
	if c.ExtensionDays <= 0 {
		c.ExtensionDays = 30
	}
	return c
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	TxRepo   txdomain.Repository
	AdRepo   advertdomain.Repository
	Ledger   eligibilitydomain.Service
	Notifier *notifier.Notifier
	Cfg      Config
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	txRepo   txdomain.Repository
	adRepo   advertdomain.Repository
	ledger   eligibilitydomain.Service
	notifier *notifier.Notifier
	cfg      Config
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("settlement"),
		clock:    p.Clock,
		txRepo:   p.TxRepo,
		adRepo:   p.AdRepo,
		ledger:   p.Ledger,
		notifier: p.Notifier,
		cfg:      p.Cfg.withDefaults(),
		metrics:  p.Metrics,
	}
}

// Settle performs the one-time pending→completed transition and applies the
// ad-side effect. The conditional update on the transaction row is the single
// serialization point: of any number of racing webhook deliveries and
// poll-triggered attempts, exactly one matches a row and proceeds; the rest
// observe an already-terminal transaction and return applied=false with no
// error.
func (s *Service) Settle(ctx context.Context, txID, providerPaymentID string) (bool, error) {
	tx, err := s.txRepo.FindByID(ctx, s.db, txID)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, txdomain.ErrNotFound
	}

	now := s.clock.Now()
	var ad *advertdomain.Advertisement

	winner := false
	err = s.db.WithContext(ctx).Transaction(func(dbtx *gorm.DB) error {
		won, err := s.txRepo.CompletePending(ctx, dbtx, txID, providerPaymentID, now)
		if err != nil {
			return err
		}
		if !won {
			return nil
		}
		winner = true

		ad, err = s.adRepo.FindByID(ctx, dbtx, tx.AdID)
		if err != nil {
			return err
		}
		if ad == nil {
			return advertdomain.ErrNotFound
		}
		return s.applySideEffect(ctx, dbtx, tx, ad, now)
	})
	if err != nil {
		if errors.Is(err, eligibilitydomain.ErrFreeSlotUsed) {
			// Another activation on the same fingerprint won the slot after
			// this one was priced at zero. The rollback left the row pending;
			// terminate it so the sweep does not keep retrying a settlement
			// that can never pay out.
			if _, failErr := s.txRepo.FailPending(ctx, s.db, txID, "free slot already consumed"); failErr != nil {
				s.log.Error("fail losing free activation",
					zap.String("transaction_id", txID),
					zap.Error(failErr),
				)
			}
			s.log.Warn("free activation rejected, slot already consumed",
				zap.String("transaction_id", txID),
			)
			s.recordMetric(string(tx.Type), "rejected")
			return false, err
		}
		s.recordMetric(string(tx.Type), "error")
		return false, err
	}

	if !winner {
		s.log.Debug("transaction already settled",
			zap.String("transaction_id", txID),
			zap.String("type", string(tx.Type)),
		)
		s.recordMetric(string(tx.Type), "duplicate")
		return false, nil
	}

	s.log.Info("transaction settled",
		zap.String("transaction_id", txID),
		zap.String("type", string(tx.Type)),
		zap.Int64("amount", tx.Amount),
	)
	s.recordMetric(string(tx.Type), "completed")

	// Notification happens only after the transition has committed, and its
	// failure never reaches the caller.
	if tx.Type == txdomain.TypeActivation && ad != nil {
		s.notifier.SendWelcome(ad.ContactEmail, notifier.WelcomeData{
			Title:     ad.Title,
			ManageURL: notifier.ManageURL(s.cfg.PublicURL, ad.ManagementToken),
		})
	}

	return true, nil
}

func (s *Service) applySideEffect(ctx context.Context, dbtx *gorm.DB, tx *txdomain.Transaction, ad *advertdomain.Advertisement, now time.Time) error {
	switch tx.Type {
	case txdomain.TypeActivation:
		expiresAt := now.AddDate(0, 0, s.cfg.ValidityDays)
		if err := s.adRepo.Activate(ctx, dbtx, ad.ID, expiresAt, now); err != nil {
			return err
		}
		// The free slot is consumed here and only here: on the winning
		// settlement of a genuinely free activation, inside the same
		// transaction as the completion so both commit or roll back
		// together. A paid activation leaves an unused slot untouched.
		if tx.Amount == 0 && ad.PhoneHash != "" {
			consumed, err := s.ledger.ConsumeFreeSlot(ctx, dbtx, ad.PhoneHash)
			if err != nil {
				return err
			}
			if !consumed {
				return eligibilitydomain.ErrFreeSlotUsed
			}
		}
		return nil

	case txdomain.TypeExtension:
		base := now
		if ad.ExpiresAt != nil && ad.ExpiresAt.After(now) {
			base = *ad.ExpiresAt
		}
		return s.adRepo.Extend(ctx, dbtx, ad.ID, base.AddDate(0, 0, s.cfg.ExtensionDays))

	case txdomain.TypeBump:
		return s.adRepo.Bump(ctx, dbtx, ad.ID, now)

	default:
		return fmt.Errorf("%w: %s", txdomain.ErrInvalidType, tx.Type)
	}
}

func (s *Service) Status(ctx context.Context, txID string) (domain.StatusInfo, error) {
	if _, err := uuid.Parse(txID); err != nil {
		return domain.StatusInfo{}, txdomain.ErrMalformedID
	}

	tx, err := s.txRepo.FindByID(ctx, s.db, txID)
	if err != nil {
		return domain.StatusInfo{}, err
	}
	if tx == nil {
		return domain.StatusInfo{Status: domain.StatusUnknown}, nil
	}

	return domain.StatusInfo{
		Status: string(tx.Status),
		Type:   string(tx.Type),
		AdID:   tx.AdID.String(),
	}, nil
}

func (s *Service) recordMetric(txType, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSettlement(txType, outcome)
	}
}
