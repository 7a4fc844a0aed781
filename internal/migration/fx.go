package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	advertdomain "github.com/korkiapp/korki/internal/advert/domain"
	"github.com/korkiapp/korki/internal/config"
	eligibilitydomain "github.com/korkiapp/korki/internal/eligibility/domain"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned migrations are written for postgres. Other drivers
			// only appear in dev and tests, where the model schema suffices.
			return conn.AutoMigrate(
				&advertdomain.Advertisement{},
				&txdomain.Transaction{},
				&eligibilitydomain.FingerprintRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
