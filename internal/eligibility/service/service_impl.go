package service

import (
	"context"

	"github.com/korkiapp/korki/internal/clock"
	"github.com/korkiapp/korki/internal/eligibility/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("eligibility"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// FreeSlotAvailable reports whether the fingerprint may still claim the
// one-time free activation. An empty key (unparseable phone) never qualifies.
func (s *Service) FreeSlotAvailable(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	record, err := s.repo.Find(ctx, db, key)
	if err != nil {
		return false, err
	}
	if record == nil {
		return true, nil
	}
	return record.FreeUsedAt == nil, nil
}

// ConsumeFreeSlot durably marks the slot as used on the given handle and
// reports whether this call took it. A consume of an already-used slot
// returns false without error; callers decide what losing means.
func (s *Service) ConsumeFreeSlot(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	return s.repo.ConsumeFreeSlot(ctx, db, key, s.clock.Now())
}
