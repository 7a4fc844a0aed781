package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/korkiapp/korki/internal/advert"
	"github.com/korkiapp/korki/internal/checkout"
	"github.com/korkiapp/korki/internal/clock"
	"github.com/korkiapp/korki/internal/config"
	"github.com/korkiapp/korki/internal/eligibility"
	"github.com/korkiapp/korki/internal/logger"
	"github.com/korkiapp/korki/internal/migration"
	"github.com/korkiapp/korki/internal/notifier"
	obsmetrics "github.com/korkiapp/korki/internal/observability/metrics"
	"github.com/korkiapp/korki/internal/payment/p24"
	"github.com/korkiapp/korki/internal/phone"
	"github.com/korkiapp/korki/internal/ratelimit"
	"github.com/korkiapp/korki/internal/server"
	"github.com/korkiapp/korki/internal/settlement"
	"github.com/korkiapp/korki/internal/sweep"
	"github.com/korkiapp/korki/internal/transaction"
	"github.com/korkiapp/korki/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		obsmetrics.Module,

		phone.Module,
		advert.Module,
		eligibility.Module,
		transaction.Module,
		p24.Module,
		notifier.Module,
		settlement.Module,
		checkout.Module,
		sweep.Module,
		ratelimit.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
