package sweep

import (
	"github.com/korkiapp/korki/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("sweep",
	fx.Provide(func(cfg config.Config) Config {
		return Config{
			WarningWindow:  cfg.WarningWindow,
			AbandonTimeout: cfg.AbandonTimeout,
			PublicURL:      cfg.PublicURL,
		}
	}),
	fx.Provide(New),
)
