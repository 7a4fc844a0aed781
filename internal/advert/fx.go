package advert

import (
	"github.com/korkiapp/korki/internal/advert/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("advert",
	fx.Provide(repository.Provide),
)
