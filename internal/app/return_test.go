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

type returnRepoStub struct {
	store.Repository

	cup  *domain.Cup
	shop *domain.Store
	tx   *domain.BorrowTransaction

	returnErr         error
	totalPointsResult int

	returnCalled bool
	returnParams store.ReturnCupParams
}

func (s *returnRepoStub) FindCupByID(ctx context.Context, cupID string) (*domain.Cup, error) {
	if s.cup == nil {
		return nil, store.ErrCupNotFound
	}
	return s.cup, nil
}

func (s *returnRepoStub) FindStoreByID(ctx context.Context, storeID uuid.UUID) (*domain.Store, error) {
	if s.shop == nil {
		return nil, store.ErrStoreNotFound
	}
	return s.shop, nil
}

func (s *returnRepoStub) FindOngoingTransactionByCup(ctx context.Context, cupID string) (*domain.BorrowTransaction, error) {
	if s.tx == nil {
		return nil, store.ErrNoActiveTransaction
	}
	return s.tx, nil
}

func (s *returnRepoStub) ReturnCupAtomic(ctx context.Context, params store.ReturnCupParams) (int, error) {
	s.returnCalled = true
	s.returnParams = params
	if s.returnErr != nil {
		return 0, s.returnErr
	}
	return s.totalPointsResult, nil
}

func returnFixture(userID, storeID uuid.UUID, dueTime time.Time, deposit int64) *returnRepoStub {
	txID := uuid.New()
	return &returnRepoStub{
		cup: &domain.Cup{
			ID:                   "10293847",
			Status:               domain.CupStatusInUse,
			StoreID:              storeID,
			CurrentUserID:        &userID,
			CurrentTransactionID: &txID,
		},
		shop: &domain.Store{ID: storeID},
		tx: &domain.BorrowTransaction{
			ID:            txID,
			UserID:        userID,
			CupID:         "10293847",
			BorrowStoreID: storeID,
			BorrowTime:    dueTime.Add(-24 * time.Hour),
			DueTime:       dueTime,
			Status:        domain.TransactionOngoing,
			DepositAmount: deposit,
		},
	}
}

func TestReturn_OnTimeRefundsFrozenDeposit(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	dueTime := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	// The record froze a 20000 deposit at borrow time; the refund must match
	// it even if configuration has since changed.
	repo := returnFixture(userID, storeID, dueTime, 20000)
	repo.totalPointsResult = 50

	svc := borrowTestService(repo, dueTime.Add(-time.Hour))
	svc.depositAmount = 30000

	result, err := svc.Return(context.Background(), userID, domain.ReturnRequest{CupID: "10293847", StoreID: storeID})
	if err != nil {
		t.Fatalf("expected return to succeed, got %v", err)
	}
	if result.RefundAmount != 20000 {
		t.Fatalf("expected refund of frozen 20000 deposit, got %d", result.RefundAmount)
	}
	if result.IsOverdue {
		t.Fatal("expected on-time return")
	}
	if result.GreenPointsEarned != 50 {
		t.Fatalf("expected 50 on-time points, got %d", result.GreenPointsEarned)
	}
	if repo.returnParams.RefundAmount != 20000 {
		t.Fatalf("expected persisted refund 20000, got %d", repo.returnParams.RefundAmount)
	}
}

func TestReturn_OverdueUsesFloorHoursAndReducedPoints(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	dueTime := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	repo := returnFixture(userID, storeID, dueTime, 20000)
	repo.totalPointsResult = 20

	// 2h30m late bills as 2 whole overdue hours.
	svc := borrowTestService(repo, dueTime.Add(2*time.Hour+30*time.Minute))

	result, err := svc.Return(context.Background(), userID, domain.ReturnRequest{CupID: "10293847", StoreID: storeID})
	if err != nil {
		t.Fatalf("expected return to succeed, got %v", err)
	}
	if !result.IsOverdue {
		t.Fatal("expected overdue return")
	}
	if result.OverdueHours != 2 {
		t.Fatalf("expected 2 overdue hours (floor), got %d", result.OverdueHours)
	}
	if result.GreenPointsEarned != 20 {
		t.Fatalf("expected 20 overdue points, got %d", result.GreenPointsEarned)
	}
	if result.RefundAmount != 20000 {
		t.Fatalf("expected full deposit refund, got %d", result.RefundAmount)
	}
}

func TestReturn_CupHeldByAnotherUserRejected(t *testing.T) {
	userID := uuid.New()
	otherID := uuid.New()
	storeID := uuid.New()
	dueTime := time.Now().Add(time.Hour)

	repo := returnFixture(otherID, storeID, dueTime, 20000)
	svc := borrowTestService(repo, time.Now())

	_, err := svc.Return(context.Background(), userID, domain.ReturnRequest{CupID: "10293847", StoreID: storeID})
	if !errors.Is(err, store.ErrCupNotBorrowedByUser) {
		t.Fatalf("expected cup-not-borrowed error, got %v", err)
	}
	if repo.returnCalled {
		t.Fatal("did not expect atomic return for wrong holder")
	}
}

func TestReturn_DoubleCompletionSurfacesAlreadyClosed(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	dueTime := time.Now().Add(time.Hour)

	repo := returnFixture(userID, storeID, dueTime, 20000)
	repo.returnErr = store.ErrTransactionAlreadyClosed

	svc := borrowTestService(repo, time.Now())

	_, err := svc.Return(context.Background(), userID, domain.ReturnRequest{CupID: "10293847", StoreID: storeID})
	if !errors.Is(err, store.ErrTransactionAlreadyClosed) {
		t.Fatalf("expected already-closed error, got %v", err)
	}
}

func TestReturn_RankPromotionAnnounced(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	dueTime := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	// 180 points before, 230 after: crosses the sprout threshold.
	repo := returnFixture(userID, storeID, dueTime, 20000)
	repo.totalPointsResult = 230

	producer := &publisherStub{}
	svc := borrowTestService(repo, dueTime.Add(-time.Hour))
	svc.eventProducer = producer

	result, err := svc.Return(context.Background(), userID, domain.ReturnRequest{CupID: "10293847", StoreID: storeID})
	if err != nil {
		t.Fatalf("expected return to succeed, got %v", err)
	}
	if result.RankUp == nil {
		t.Fatal("expected a rank promotion")
	}
	if *result.RankUp != domain.RankSprout {
		t.Fatalf("expected promotion to sprout, got %s", *result.RankUp)
	}

	wantKeys := map[string]bool{"achievement.on_time_return": false, "achievement.rank_up": false}
	for _, key := range producer.routingKeys {
		if _, ok := wantKeys[key]; ok {
			wantKeys[key] = true
		}
	}
	for key, seen := range wantKeys {
		if !seen {
			t.Fatalf("expected %s event to be published, got %v", key, producer.routingKeys)
		}
	}
}

func TestReturn_NoRankUpWithinSameRank(t *testing.T) {
	userID := uuid.New()
	storeID := uuid.New()
	dueTime := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	repo := returnFixture(userID, storeID, dueTime, 20000)
	repo.totalPointsResult = 150 // 100 -> 150, still seedling

	svc := borrowTestService(repo, dueTime.Add(-time.Hour))

	result, err := svc.Return(context.Background(), userID, domain.ReturnRequest{CupID: "10293847", StoreID: storeID})
	if err != nil {
		t.Fatalf("expected return to succeed, got %v", err)
	}
	if result.RankUp != nil {
		t.Fatalf("did not expect a rank promotion, got %s", *result.RankUp)
	}
}
