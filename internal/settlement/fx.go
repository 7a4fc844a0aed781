package settlement

import (
	"github.com/korkiapp/korki/internal/config"
	"github.com/korkiapp/korki/internal/settlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settlement",
	fx.Provide(func(cfg config.Config) service.Config {
		return service.Config{
			ValidityDays:  cfg.AdValidityDays,
			ExtensionDays: cfg.ExtensionDays,
			PublicURL:     cfg.PublicURL,
		}
	}),
	fx.Provide(service.NewService),
)
