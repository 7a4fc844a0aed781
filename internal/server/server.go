package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	checkoutdomain "github.com/korkiapp/korki/internal/checkout/domain"
	"github.com/korkiapp/korki/internal/config"
	obsmetrics "github.com/korkiapp/korki/internal/observability/metrics"
	"github.com/korkiapp/korki/internal/payment/p24"
	"github.com/korkiapp/korki/internal/ratelimit"
	settlementdomain "github.com/korkiapp/korki/internal/settlement/domain"
	"github.com/korkiapp/korki/internal/sweep"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	gateway       *p24.Gateway
	checkoutSvc   checkoutdomain.Service
	settlementSvc settlementdomain.Service
	txRepo        txdomain.Repository
	sweeper       *sweep.Reconciler
	limiter       ratelimit.Limiter
	metrics       *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Gateway       *p24.Gateway
	CheckoutSvc   checkoutdomain.Service
	SettlementSvc settlementdomain.Service
	TxRepo        txdomain.Repository
	Sweeper       *sweep.Reconciler
	Limiter       ratelimit.Limiter
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("server"),
		gateway:       p.Gateway,
		checkoutSvc:   p.CheckoutSvc,
		settlementSvc: p.SettlementSvc,
		txRepo:        p.TxRepo,
		sweeper:       p.Sweeper,
		limiter:       p.Limiter,
		metrics:       p.Metrics,
	}

	svc.registerPaymentRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPaymentRoutes() {
	s.engine.POST("/webhooks/p24", s.RateLimit("webhook"), s.HandlePaymentWebhook)

	payments := s.engine.Group("/payments")
	payments.POST("/intents", s.RegisterPaymentIntent)
	payments.GET("/simulate/:id", s.SimulatePaymentPage)
	payments.POST("/simulate/:id/complete", s.SimulatePaymentComplete)

	s.engine.GET("/transactions/:id/status", s.RateLimit("status"), s.GetTransactionStatus)
}

func (s *Server) registerInternalRoutes() {
	s.engine.GET("/internal/sweep", s.RunSweep)
}
