package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	advertdomain "github.com/korkiapp/korki/internal/advert/domain"
	advertrepo "github.com/korkiapp/korki/internal/advert/repository"
	"github.com/korkiapp/korki/internal/clock"
	eligibilitydomain "github.com/korkiapp/korki/internal/eligibility/domain"
	eligibilityrepo "github.com/korkiapp/korki/internal/eligibility/repository"
	eligibilityservice "github.com/korkiapp/korki/internal/eligibility/service"
	"github.com/korkiapp/korki/internal/notifier"
	settlementdomain "github.com/korkiapp/korki/internal/settlement/domain"
	settlementservice "github.com/korkiapp/korki/internal/settlement/service"
	txdomain "github.com/korkiapp/korki/internal/transaction/domain"
	txrepo "github.com/korkiapp/korki/internal/transaction/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingProvider struct {
	mu       sync.Mutex
	subjects []string
	to       []string
}

func (p *recordingProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.to = append(p.to, to)
	p.subjects = append(p.subjects, subject)
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
		`CREATE TABLE phone_fingerprints (
			fingerprint TEXT PRIMARY KEY,
			free_used_at DATETIME,
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

type fixture struct {
	db       *gorm.DB
	clk      *clock.FakeClock
	provider *recordingProvider
	adRepo   advertdomain.Repository
	txRepo   txdomain.Repository
	node     *snowflake.Node
	svc      settlementdomain.Service
}

func newFixture(t *testing.T) (*fixture, func(ctx context.Context, txID, paymentID string) (bool, error)) {
	t.Helper()

	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	provider := &recordingProvider{}

	adRepo := advertrepo.Provide()
	transactionRepo := txrepo.Provide()

	ledger := eligibilityservice.NewService(eligibilityservice.Params{
		Log:   zap.NewNop(),
		Repo:  eligibilityrepo.Provide(),
		Clock: clk,
	})

	svc := settlementservice.NewService(settlementservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clk,
		TxRepo:   transactionRepo,
		AdRepo:   adRepo,
		Ledger:   ledger,
		Notifier: notifier.New(provider, zap.NewNop(), time.Second),
		Cfg: settlementservice.Config{
			ValidityDays:  30,
			ExtensionDays: 30,
			PublicURL:     "https://korki.test",
		},
	})

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	f := &fixture{
		db:       db,
		clk:      clk,
		provider: provider,
		adRepo:   adRepo,
		txRepo:   transactionRepo,
		node:     node,
		svc:      svc,
	}
	return f, svc.Settle
}

func (f *fixture) insertAd(t *testing.T, status advertdomain.Status, phoneHash string) *advertdomain.Advertisement {
	t.Helper()
	ad := &advertdomain.Advertisement{
		ID:              f.node.Generate(),
		ManagementToken: fmt.Sprintf("token-%d", f.node.Generate()),
		Kind:            advertdomain.KindOffering,
		Title:           "Matematyka, szkoła średnia",
		Status:          status,
		PhoneContact:    "500 600 700",
		PhoneHash:       phoneHash,
		ContactEmail:    "tutor@example.com",
		CreatedAt:       f.clk.Now(),
		VisibleAt:       f.clk.Now(),
	}
	if err := f.adRepo.Insert(context.Background(), f.db, ad); err != nil {
		t.Fatalf("insert ad: %v", err)
	}
	return ad
}

func (f *fixture) insertTx(t *testing.T, adID snowflake.ID, typ txdomain.Type, amount int64) *txdomain.Transaction {
	t.Helper()
	tx := &txdomain.Transaction{
		ID:              fmt.Sprintf("c0ffee00-0000-4000-8000-%012d", int64(f.node.Generate())%1000000000000),
		AdID:            adID,
		Type:            typ,
		Amount:          amount,
		Currency:        "PLN",
		Status:          txdomain.StatusPending,
		PaymentProvider: "p24",
		CreatedAt:       f.clk.Now(),
	}
	if err := f.txRepo.Insert(context.Background(), f.db, tx); err != nil {
		t.Fatalf("insert transaction: %v", err)
	}
	return tx
}

func (f *fixture) reloadAd(t *testing.T, id snowflake.ID) *advertdomain.Advertisement {
	t.Helper()
	ad, err := f.adRepo.FindByID(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("reload ad: %v", err)
	}
	if ad == nil {
		t.Fatal("ad vanished")
	}
	return ad
}

func (f *fixture) reloadTx(t *testing.T, id string) *txdomain.Transaction {
	t.Helper()
	tx, err := f.txRepo.FindByID(context.Background(), f.db, id)
	if err != nil {
		t.Fatalf("reload transaction: %v", err)
	}
	if tx == nil {
		t.Fatal("transaction vanished")
	}
	return tx
}

func TestSettlePaidActivation(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 2900)

	applied, err := settle(ctx, tx.ID, "order-42")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !applied {
		t.Fatal("first settle must apply")
	}

	got := f.reloadTx(t, tx.ID)
	if got.Status != txdomain.StatusCompleted {
		t.Fatalf("transaction status = %s, want completed", got.Status)
	}
	if got.PaymentID == nil || *got.PaymentID != "order-42" {
		t.Fatal("payment id must be recorded")
	}
	if got.WebhookReceivedAt == nil {
		t.Fatal("webhook timestamp must be recorded")
	}

	gotAd := f.reloadAd(t, ad.ID)
	if gotAd.Status != advertdomain.StatusActive {
		t.Fatalf("ad status = %s, want active", gotAd.Status)
	}
	if gotAd.ExpiresAt == nil {
		t.Fatal("activation must set expiry")
	}
	wantExpiry := f.clk.Now().AddDate(0, 0, 30)
	if !gotAd.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", gotAd.ExpiresAt, wantExpiry)
	}

	// A paid activation never touches the free slot.
	var count int64
	if err := f.db.Raw(`SELECT COUNT(*) FROM phone_fingerprints`).Scan(&count).Error; err != nil {
		t.Fatalf("count fingerprints: %v", err)
	}
	if count != 0 {
		t.Fatal("paid activation must not consume the free slot")
	}
}

func TestSettleFreeActivationConsumesSlot(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-free")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 0)

	applied, err := settle(ctx, tx.ID, "")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !applied {
		t.Fatal("settle must apply")
	}

	var usedAt *time.Time
	if err := f.db.Raw(`SELECT free_used_at FROM phone_fingerprints WHERE fingerprint = ?`, "fp-free").Scan(&usedAt).Error; err != nil {
		t.Fatalf("read fingerprint: %v", err)
	}
	if usedAt == nil {
		t.Fatal("free activation must consume the slot")
	}
}

func TestSettleSecondFreeActivationRejected(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	// Two ads share a fingerprint and both were priced at zero before either
	// settled. Only one activation may keep the free price.
	adWinner := f.insertAd(t, advertdomain.StatusInactive, "fp-shared")
	adLoser := f.insertAd(t, advertdomain.StatusInactive, "fp-shared")
	txWinner := f.insertTx(t, adWinner.ID, txdomain.TypeActivation, 0)
	txLoser := f.insertTx(t, adLoser.ID, txdomain.TypeActivation, 0)

	applied, err := settle(ctx, txWinner.ID, "")
	if err != nil {
		t.Fatalf("first settle: %v", err)
	}
	if !applied {
		t.Fatal("first free settle must apply")
	}

	applied, err = settle(ctx, txLoser.ID, "")
	if !errors.Is(err, eligibilitydomain.ErrFreeSlotUsed) {
		t.Fatalf("second settle err = %v, want ErrFreeSlotUsed", err)
	}
	if applied {
		t.Fatal("losing settle must not apply")
	}

	gotLoser := f.reloadTx(t, txLoser.ID)
	if gotLoser.Status != txdomain.StatusFailed {
		t.Fatalf("losing transaction status = %s, want failed", gotLoser.Status)
	}
	gotAd := f.reloadAd(t, adLoser.ID)
	if gotAd.Status != advertdomain.StatusInactive {
		t.Fatalf("losing ad status = %s, want inactive", gotAd.Status)
	}
	if f.provider.count() != 1 {
		t.Fatalf("welcome emails = %d, want 1", f.provider.count())
	}

	// The rejection is terminal: a retried delivery for the loser stays failed.
	applied, err = settle(ctx, txLoser.ID, "")
	if err != nil {
		t.Fatalf("retried settle: %v", err)
	}
	if applied {
		t.Fatal("failed transaction must not settle on retry")
	}
}

func TestSettleConcurrentDeliveries(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 2900)

	const deliveries = 8
	results := make(chan bool, deliveries)
	errs := make(chan error, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := settle(ctx, tx.ID, "order-7")
			if err != nil {
				errs <- err
				return
			}
			results <- applied
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("settle: %v", err)
	}
	wins := 0
	for applied := range results {
		if applied {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("winning settles = %d, want exactly 1", wins)
	}
	if f.provider.count() != 1 {
		t.Fatalf("welcome emails = %d, want 1", f.provider.count())
	}

	got := f.reloadTx(t, tx.ID)
	if got.Status != txdomain.StatusCompleted {
		t.Fatalf("transaction status = %s, want completed", got.Status)
	}
}

func TestSettleIdempotent(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 2900)

	if _, err := settle(ctx, tx.ID, "order-1"); err != nil {
		t.Fatalf("first settle: %v", err)
	}
	firstWelcomes := f.provider.count()

	applied, err := settle(ctx, tx.ID, "order-1-redelivered")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if applied {
		t.Fatal("second settle must be a no-op")
	}

	got := f.reloadTx(t, tx.ID)
	if got.PaymentID == nil || *got.PaymentID != "order-1" {
		t.Fatal("redelivery must not overwrite the original payment id")
	}
	if f.provider.count() != firstWelcomes {
		t.Fatal("redelivery must not send another welcome email")
	}
}

func TestSettleFailedTransactionStaysFailed(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 2900)

	won, err := f.txRepo.FailPending(ctx, f.db, tx.ID, "timeout")
	if err != nil || !won {
		t.Fatalf("fail pending: won=%v err=%v", won, err)
	}

	applied, err := settle(ctx, tx.ID, "order-late")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if applied {
		t.Fatal("a failed transaction is terminal, settlement must not apply")
	}

	gotAd := f.reloadAd(t, ad.ID)
	if gotAd.Status != advertdomain.StatusInactive {
		t.Fatalf("ad status = %s, want inactive", gotAd.Status)
	}
}

func TestSettleUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	_, settle := newFixture(t)

	_, err := settle(ctx, "11111111-1111-4111-8111-111111111111", "order-1")
	if !errors.Is(err, txdomain.ErrNotFound) {
		t.Fatalf("settle unknown = %v, want ErrNotFound", err)
	}
}

func TestSettleExtension(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusActive, "fp-1")
	expires := f.clk.Now().AddDate(0, 0, 10)
	warned := f.clk.Now()
	if err := f.db.Exec(
		`UPDATE advertisements SET expires_at = ?, expiring_warning_sent_at = ? WHERE id = ?`,
		expires, warned, ad.ID,
	).Error; err != nil {
		t.Fatalf("seed expiry: %v", err)
	}

	tx := f.insertTx(t, ad.ID, txdomain.TypeExtension, 1900)
	if _, err := settle(ctx, tx.ID, "order-ext"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	gotAd := f.reloadAd(t, ad.ID)
	wantExpiry := expires.AddDate(0, 0, 30)
	if gotAd.ExpiresAt == nil || !gotAd.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v (extension stacks on remaining time)", gotAd.ExpiresAt, wantExpiry)
	}
	if gotAd.ExpiringWarningSentAt != nil {
		t.Fatal("extension must clear the expiry warning flag")
	}
}

func TestSettleExtensionRevivesExpiredAd(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusExpired, "fp-1")
	past := f.clk.Now().AddDate(0, 0, -5)
	if err := f.db.Exec(`UPDATE advertisements SET expires_at = ? WHERE id = ?`, past, ad.ID).Error; err != nil {
		t.Fatalf("seed expiry: %v", err)
	}

	tx := f.insertTx(t, ad.ID, txdomain.TypeExtension, 1900)
	if _, err := settle(ctx, tx.ID, "order-ext"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	gotAd := f.reloadAd(t, ad.ID)
	if gotAd.Status != advertdomain.StatusActive {
		t.Fatalf("ad status = %s, want active", gotAd.Status)
	}
	// Expired ads extend from now, not from the lapsed expiry.
	wantExpiry := f.clk.Now().AddDate(0, 0, 30)
	if gotAd.ExpiresAt == nil || !gotAd.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires_at = %v, want %v", gotAd.ExpiresAt, wantExpiry)
	}
}

func TestSettleBumpTerminal(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusActive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeBump, 900)

	if _, err := settle(ctx, tx.ID, "order-bump"); err != nil {
		t.Fatalf("settle: %v", err)
	}
	bumpedAt := f.reloadAd(t, ad.ID).VisibleAt

	// A redelivered webhook for the same bump must not move visibility again.
	f.clk.Advance(2 * time.Hour)
	applied, err := settle(ctx, tx.ID, "order-bump")
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if applied {
		t.Fatal("second settle must be a no-op")
	}
	if !f.reloadAd(t, ad.ID).VisibleAt.Equal(bumpedAt) {
		t.Fatal("visible_at must not move on a duplicate settlement")
	}
}

func TestSettleActivationSendsWelcome(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 2900)

	if _, err := settle(ctx, tx.ID, "order-1"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if f.provider.count() != 1 {
		t.Fatalf("welcome emails sent = %d, want 1", f.provider.count())
	}

	// Non-activation settlements stay silent.
	bump := f.insertTx(t, ad.ID, txdomain.TypeBump, 900)
	if _, err := settle(ctx, bump.ID, "order-2"); err != nil {
		t.Fatalf("settle bump: %v", err)
	}
	if f.provider.count() != 1 {
		t.Fatal("bump settlement must not send a welcome email")
	}
}

func TestStatusMalformedID(t *testing.T) {
	ctx := context.Background()
	f, _ := newFixture(t)

	_, err := f.svc.Status(ctx, "not-a-uuid")
	if !errors.Is(err, txdomain.ErrMalformedID) {
		t.Fatalf("status = %v, want ErrMalformedID", err)
	}
}

func TestStatusUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	f, _ := newFixture(t)

	info, err := f.svc.Status(ctx, "22222222-2222-4222-8222-222222222222")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if info.Status != settlementdomain.StatusUnknown {
		t.Fatalf("status = %s, want %s", info.Status, settlementdomain.StatusUnknown)
	}
}

func TestStatusKnownTransaction(t *testing.T) {
	ctx := context.Background()
	f, settle := newFixture(t)

	ad := f.insertAd(t, advertdomain.StatusInactive, "fp-1")
	tx := f.insertTx(t, ad.ID, txdomain.TypeActivation, 2900)

	info, err := f.svc.Status(ctx, tx.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if info.Status != string(txdomain.StatusPending) {
		t.Fatalf("status = %s, want pending", info.Status)
	}

	if _, err := settle(ctx, tx.ID, "order-1"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	info, err = f.svc.Status(ctx, tx.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if info.Status != string(txdomain.StatusCompleted) {
		t.Fatalf("status = %s, want completed", info.Status)
	}
	if info.AdID != ad.ID.String() {
		t.Fatalf("ad id = %s, want %s", info.AdID, ad.ID)
	}
}
