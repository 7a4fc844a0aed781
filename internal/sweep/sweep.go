package sweep

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	advertdomain "github.com/korkiapp/korki/internal/advert/domain"
	"github.com/korkiapp/korki/internal/clock"
	"github.com/korkiapp/korki/internal/notifier"
	obsmetrics "github.com/korkiapp/korki/internal/observability/metrics"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Report carries per-pass counts back to the sweep endpoint.
type Report struct {
	WarningsSent int64 `json:"warnings_sent"`
	Expired      int64 `json:"expired"`
	Abandoned    int64 `json:"abandoned"`
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	AdRepo   advertdomain.Repository
	TxRepo   txdomain.Repository
	Notifier *notifier.Notifier
	Cfg      Config
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Reconciler is the time-based complement to event-driven settlement. Each
// pass is idempotent and safe under overlapping invocations; rerunning a
// sweep that finds nothing is a no-op.
type Reconciler struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	adRepo   advertdomain.Repository
	txRepo   txdomain.Repository
	notifier *notifier.Notifier
	cfg      Config
	metrics  *obsmetrics.Metrics
}

func New(p Params) *Reconciler {
	return &Reconciler{
		db:       p.DB,
		log:      p.Log.Named("sweep"),
		clock:    p.Clock,
		adRepo:   p.AdRepo,
		txRepo:   p.TxRepo,
		notifier: p.Notifier,
		cfg:      p.Cfg.withDefaults(),
		metrics:  p.Metrics,
	}
}

// Run executes the three passes. A failing pass does not stop the others;
// errors are joined for the caller.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var report Report
	var err error

	err = errors.Join(err, r.warningPass(ctx, &report))
	err = errors.Join(err, r.expiryPass(ctx, &report))
	err = errors.Join(err, r.abandonedPass(ctx, &report))

	r.log.Info("sweep finished",
		zap.Int64("warnings_sent", report.WarningsSent),
		zap.Int64("expired", report.Expired),
		zap.Int64("abandoned", report.Abandoned),
	)
	return report, err
}

// warningPass flags first, notifies second. The set-once flag makes a second
// sweep in immediate succession a no-op, at the accepted cost that a crash
// between flag and send silently skips one notification.
func (r *Reconciler) warningPass(ctx context.Context, report *Report) error {
	now := r.clock.Now()
	ads, err := r.adRepo.ListExpiring(ctx, r.db, now, now.Add(r.cfg.WarningWindow), r.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(ads) == 0 {
		return nil
	}

	ids := make([]snowflake.ID, 0, len(ads))
	for _, ad := range ads {
		ids = append(ids, ad.ID)
	}
	n, err := r.adRepo.MarkWarningSent(ctx, r.db, ids, now)
	if err != nil {
		return err
	}
	report.WarningsSent = n
	r.recordSweep("warning", float64(n))

	for _, ad := range ads {
		if ad.ExpiresAt == nil {
			continue
		}
		// Per-ad delivery: one recipient's failure must not abort the batch.
		// The notifier logs and swallows its own errors.
		r.notifier.SendExpiryWarning(ad.ContactEmail, notifier.ExpiryWarningData{
			Title:     ad.Title,
			ExpiresAt: ad.ExpiresAt.Format("2006-01-02"),
			ManageURL: notifier.ManageURL(r.cfg.PublicURL, ad.ManagementToken),
		})
	}
	return nil
}

func (r *Reconciler) expiryPass(ctx context.Context, report *Report) error {
	n, err := r.adRepo.ExpireOverdue(ctx, r.db, r.clock.Now())
	if err != nil {
		return err
	}
	report.Expired = n
	r.recordSweep("expiry", float64(n))
	return nil
}

// abandonedPass fails stale pending transactions without touching their
// advertisements: an abandoned attempt must not deactivate an ad that may
// have been activated through another path.
func (r *Reconciler) abandonedPass(ctx context.Context, report *Report) error {
	cutoff := r.clock.Now().Add(-r.cfg.AbandonTimeout)
	n, err := r.txRepo.FailAbandoned(ctx, r.db, cutoff, "timeout: no payment confirmation received")
	if err != nil {
		return err
	}
	report.Abandoned = n
	r.recordSweep("abandoned", float64(n))
	return nil
}

func (r *Reconciler) recordSweep(pass string, n float64) {
	if r.metrics != nil && n > 0 {
		r.metrics.RecordSweepActions(pass, n)
	}
}
