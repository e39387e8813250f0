package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sipsmart/cup-service/internal/domain"
	"github.com/sipsmart/cup-service/internal/store"
)

type settlementRepoStub struct {
	store.Repository

	shop    *domain.Store
	count   int
	revenue int64

	batch      *domain.SettlementBatch
	approveOK  bool
	payoutOK   bool
	createdLog []*domain.SettlementBatch
}

func (s *settlementRepoStub) FindStoreByID(ctx context.Context, storeID uuid.UUID) (*domain.Store, error) {
	if s.shop == nil {
		return nil, store.ErrStoreNotFound
	}
	return s.shop, nil
}

func (s *settlementRepoStub) AggregateStoreRevenue(ctx context.Context, storeID uuid.UUID, periodStart, periodEnd time.Time) (int, int64, error) {
	return s.count, s.revenue, nil
}

func (s *settlementRepoStub) CreateSettlementBatch(ctx context.Context, batch *domain.SettlementBatch) error {
	s.createdLog = append(s.createdLog, batch)
	return nil
}

func (s *settlementRepoStub) FindSettlementBatchByID(ctx context.Context, batchID uuid.UUID) (*domain.SettlementBatch, error) {
	if s.batch == nil {
		return nil, store.ErrSettlementNotFound
	}
	return s.batch, nil
}

func (s *settlementRepoStub) ApproveSettlementBatch(ctx context.Context, batchID, adminID uuid.UUID) (bool, error) {
	return s.approveOK, nil
}

func (s *settlementRepoStub) MarkSettlementBatchPaid(ctx context.Context, batchID uuid.UUID, paymentReference string) (bool, error) {
	return s.payoutOK, nil
}

func TestCreateSettlementBatch_RevenueShare(t *testing.T) {
	storeID := uuid.New()
	repo := &settlementRepoStub{
		shop: &domain.Store{
			ID:                storeID,
			PartnerID:         uuid.New(),
			ContractType:      domain.ContractRevenueShare,
			CommissionPercent: 10,
		},
		count:   300,
		revenue: 4500000,
	}
	svc := borrowTestService(repo, time.Now())

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	batch, err := svc.CreateSettlementBatch(context.Background(), storeID, start, end)
	if err != nil {
		t.Fatalf("expected batch creation to succeed, got %v", err)
	}
	if batch.CommissionAmount != 450000 {
		t.Fatalf("expected commission 450000, got %d", batch.CommissionAmount)
	}
	if batch.NetPayable != 4050000 {
		t.Fatalf("expected net payable 4050000, got %d", batch.NetPayable)
	}
	if batch.Status != domain.SettlementPending {
		t.Fatalf("expected pending status, got %s", batch.Status)
	}
	if len(repo.createdLog) != 1 {
		t.Fatalf("expected one persisted batch, got %d", len(repo.createdLog))
	}
}

func TestCreateSettlementBatch_CommissionFallsBackToPlatformRate(t *testing.T) {
	storeID := uuid.New()
	repo := &settlementRepoStub{
		shop: &domain.Store{
			ID:           storeID,
			ContractType: domain.ContractRevenueShare,
			// No per-contract rate configured.
		},
		count:   10,
		revenue: 100000,
	}
	svc := borrowTestService(repo, time.Now())
	svc.commissionPercent = 12

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	batch, err := svc.CreateSettlementBatch(context.Background(), storeID, start, start.AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("expected batch creation to succeed, got %v", err)
	}
	if batch.CommissionPercent != 12 {
		t.Fatalf("expected platform rate 12, got %f", batch.CommissionPercent)
	}
	if batch.CommissionAmount != 12000 {
		t.Fatalf("expected commission 12000, got %d", batch.CommissionAmount)
	}
}

func TestCreateSettlementBatch_InvalidPeriod(t *testing.T) {
	svc := borrowTestService(&settlementRepoStub{}, time.Now())

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.CreateSettlementBatch(context.Background(), uuid.New(), start, start); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected invalid period error, got %v", err)
	}
}

func TestApproveSettlementBatch_WrongStateSurfacesNotPending(t *testing.T) {
	repo := &settlementRepoStub{
		approveOK: false,
		batch:     &domain.SettlementBatch{ID: uuid.New(), Status: domain.SettlementPaid},
	}
	svc := borrowTestService(repo, time.Now())

	_, err := svc.ApproveSettlementBatch(context.Background(), repo.batch.ID, uuid.New())
	if !errors.Is(err, ErrBatchNotPending) {
		t.Fatalf("expected not-pending error for paid batch, got %v", err)
	}
}

func TestApproveSettlementBatch_MissingBatchSurfacesNotFound(t *testing.T) {
	repo := &settlementRepoStub{approveOK: false}
	svc := borrowTestService(repo, time.Now())

	_, err := svc.ApproveSettlementBatch(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, store.ErrSettlementNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestPayoutSettlementBatch_RequiresPaymentReference(t *testing.T) {
	svc := borrowTestService(&settlementRepoStub{}, time.Now())

	if _, err := svc.PayoutSettlementBatch(context.Background(), uuid.New(), ""); !errors.Is(err, ErrMissingPaymentRef) {
		t.Fatalf("expected missing payment reference error, got %v", err)
	}
}

func TestPayoutSettlementBatch_WrongStateSurfacesNotApproved(t *testing.T) {
	repo := &settlementRepoStub{
		payoutOK: false,
		batch:    &domain.SettlementBatch{ID: uuid.New(), Status: domain.SettlementPending},
	}
	svc := borrowTestService(repo, time.Now())

	_, err := svc.PayoutSettlementBatch(context.Background(), repo.batch.ID, "BANK-REF-001")
	if !errors.Is(err, ErrBatchNotApproved) {
		t.Fatalf("expected not-approved error for pending batch, got %v", err)
	}
}

func TestPayoutSettlementBatch_Success(t *testing.T) {
	repo := &settlementRepoStub{
		payoutOK: true,
		batch:    &domain.SettlementBatch{ID: uuid.New(), Status: domain.SettlementPaid},
	}
	svc := borrowTestService(repo, time.Now())

	batch, err := svc.PayoutSettlementBatch(context.Background(), repo.batch.ID, "BANK-REF-001")
	if err != nil {
		t.Fatalf("expected payout to succeed, got %v", err)
	}
	if batch.Status != domain.SettlementPaid {
		t.Fatalf("expected paid status, got %s", batch.Status)
	}
}
