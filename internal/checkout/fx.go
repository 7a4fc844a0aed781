package checkout

import (
	"github.com/korkiapp/korki/internal/checkout/service"
	"github.com/korkiapp/korki/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout",
	fx.Provide(func(cfg config.Config) service.Config {
		return service.Config{
			PriceActivation: cfg.PriceActivation,
			PriceExtension:  cfg.PriceExtension,
			PriceBump:       cfg.PriceBump,
			Currency:        cfg.Currency,
			PublicURL:       cfg.PublicURL,
		}
	}),
	fx.Provide(service.NewService),
)
