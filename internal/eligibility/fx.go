package eligibility

import (
	"github.com/korkiapp/korki/internal/eligibility/repository"
	"github.com/korkiapp/korki/internal/eligibility/service"
	"go.uber.org/fx"
)

var Module = fx.Module("eligibility",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
