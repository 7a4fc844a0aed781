package phone

import (
	"github.com/korkiapp/korki/internal/config"
	"go.uber.org/fx"
)

func NewFromConfig(cfg config.Config) *Hasher {
	return NewHasher(cfg.PhoneHashSecret, cfg.PhoneRegion)
}

var Module = fx.Module("phone",
	fx.Provide(NewFromConfig),
)
