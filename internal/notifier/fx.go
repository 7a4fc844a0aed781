package notifier

import (
	"github.com/korkiapp/korki/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewFromConfig(cfg config.Config, log *zap.Logger) *Notifier {
	var provider Provider = NoOpProvider{}
	if cfg.SMTPHost != "" {
		provider = NewSMTP(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return New(provider, log, cfg.NotifyTimeout)
}

var Module = fx.Module("notifier",
	fx.Provide(NewFromConfig),
)
