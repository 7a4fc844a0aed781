package sweep_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	advertdomain "github.com/korkiapp/korki/internal/advert/domain"
	advertrepo "github.com/korkiapp/korki/internal/advert/repository"
	"github.com/korkiapp/korki/internal/clock"
	"github.com/korkiapp/korki/internal/notifier"
	"github.com/korkiapp/korki/internal/sweep"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
	txrepo "github.com/korkiapp/korki/internal/transaction/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingProvider struct {
	mu sync.Mutex
	to []string
}

func (p *recordingProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.to = append(p.to, to)
	return nil
}

func (p *recordingProvider) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.to)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE advertisements (
			id BIGINT PRIMARY KEY,
			management_token TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			phone_contact TEXT,
			phone_hash TEXT,
			contact_email TEXT,
			created_at DATETIME NOT NULL,
			expires_at DATETIME,
			visible_at DATETIME NOT NULL,
			expiring_warning_sent_at DATETIME
		)`,
		`CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			ad_id BIGINT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			payment_provider TEXT NOT NULL,
			payment_session_id TEXT,
			payment_id TEXT,
			webhook_received_at DATETIME,
			error_message TEXT,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	return db
}

type env struct {
	db       *gorm.DB
	clk      *clock.FakeClock
	provider *recordingProvider
	sweeper  *sweep.Reconciler
	adRepo   advertdomain.Repository
	txRepo   txdomain.Repository
	node     *snowflake.Node
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	provider := &recordingProvider{}

	adRepo := advertrepo.Provide()
	transactionRepo := txrepo.Provide()

	sweeper := sweep.New(sweep.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clk,
		AdRepo:   adRepo,
		TxRepo:   transactionRepo,
		Notifier: notifier.New(provider, zap.NewNop(), time.Second),
		Cfg: sweep.Config{
			WarningWindow:  72 * time.Hour,
			AbandonTimeout: time.Hour,
			BatchSize:      100,
			PublicURL:      "https://korki.test",
		},
	})

	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	return &env{
		db:       db,
		clk:      clk,
		provider: provider,
		sweeper:  sweeper,
		adRepo:   adRepo,
		txRepo:   transactionRepo,
		node:     node,
	}
}

func (e *env) insertActiveAd(t *testing.T, expiresIn time.Duration) *advertdomain.Advertisement {
	t.Helper()
	expires := e.clk.Now().Add(expiresIn)
	ad := &advertdomain.Advertisement{
		ID:              e.node.Generate(),
		ManagementToken: fmt.Sprintf("token-%d", e.node.Generate()),
		Kind:            advertdomain.KindOffering,
		Title:           "Fizyka, matura",
		Status:          advertdomain.StatusActive,
		ContactEmail:    "tutor@example.com",
		CreatedAt:       e.clk.Now(),
		ExpiresAt:       &expires,
		VisibleAt:       e.clk.Now(),
	}
	if err := e.adRepo.Insert(context.Background(), e.db, ad); err != nil {
		t.Fatalf("insert ad: %v", err)
	}
	return ad
}

func (e *env) insertPendingTx(t *testing.T, adID snowflake.ID, age time.Duration) *txdomain.Transaction {
	t.Helper()
	tx := &txdomain.Transaction{
		ID:              fmt.Sprintf("ab%06d00-0000-4000-8000-000000000000", int64(e.node.Generate())%1000000),
		AdID:            adID,
		Type:            txdomain.TypeActivation,
		Amount:          2900,
		Currency:        "PLN",
		Status:          txdomain.StatusPending,
		PaymentProvider: "p24",
		CreatedAt:       e.clk.Now().Add(-age),
	}
	if err := e.txRepo.Insert(context.Background(), e.db, tx); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	return tx
}

func TestWarningPassFlagsAndNotifiesOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	soon := e.insertActiveAd(t, 48*time.Hour)
	e.insertActiveAd(t, 240*time.Hour) // far from expiry, no warning

	report, err := e.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.WarningsSent != 1 {
		t.Fatalf("warnings sent = %d, want 1", report.WarningsSent)
	}
	if e.provider.count() != 1 {
		t.Fatalf("emails delivered = %d, want 1", e.provider.count())
	}

	// A second run straight after must not warn the same ad again.
	report, err = e.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.WarningsSent != 0 {
		t.Fatalf("second run warnings = %d, want 0", report.WarningsSent)
	}
	if e.provider.count() != 1 {
		t.Fatal("second run must not re-deliver the warning")
	}

	got, err := e.adRepo.FindByID(ctx, e.db, soon.ID)
	if err != nil || got == nil {
		t.Fatalf("reload ad: %v", err)
	}
	if got.ExpiringWarningSentAt == nil {
		t.Fatal("warning flag must be set")
	}
	if got.Status != advertdomain.StatusActive {
		t.Fatal("warning must not change ad status")
	}
}

func TestExpiryPass(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	overdue := e.insertActiveAd(t, 24*time.Hour)
	alive := e.insertActiveAd(t, 96*time.Hour)

	e.clk.Advance(48 * time.Hour)

	report, err := e.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Expired != 1 {
		t.Fatalf("expired = %d, want 1", report.Expired)
	}

	got, _ := e.adRepo.FindByID(ctx, e.db, overdue.ID)
	if got.Status != advertdomain.StatusExpired {
		t.Fatalf("overdue ad status = %s, want expired", got.Status)
	}
	got, _ = e.adRepo.FindByID(ctx, e.db, alive.ID)
	if got.Status != advertdomain.StatusActive {
		t.Fatalf("alive ad status = %s, want active", got.Status)
	}

	// Idempotent: nothing left to expire.
	report, err = e.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Expired != 0 {
		t.Fatalf("second run expired = %d, want 0", report.Expired)
	}
}

func TestAbandonedPassLeavesAdUntouched(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	ad := e.insertActiveAd(t, 240*time.Hour)
	stale := e.insertPendingTx(t, ad.ID, 2*time.Hour)
	fresh := e.insertPendingTx(t, ad.ID, 10*time.Minute)

	report, err := e.sweeper.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Abandoned != 1 {
		t.Fatalf("abandoned = %d, want 1", report.Abandoned)
	}

	got, _ := e.txRepo.FindByID(ctx, e.db, stale.ID)
	if got.Status != txdomain.StatusFailed {
		t.Fatalf("stale tx status = %s, want failed", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage == "" {
		t.Fatal("abandoned transaction must carry a reason")
	}

	got, _ = e.txRepo.FindByID(ctx, e.db, fresh.ID)
	if got.Status != txdomain.StatusPending {
		t.Fatalf("fresh tx status = %s, want pending", got.Status)
	}

	gotAd, _ := e.adRepo.FindByID(ctx, e.db, ad.ID)
	if gotAd.Status != advertdomain.StatusActive {
		t.Fatal("abandoning a transaction must not touch its advertisement")
	}
}
