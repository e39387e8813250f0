/**
 * @description
 * This file contains the core business logic for the cup-service. The
 * `Service` struct orchestrates the cup borrow/return lifecycle, coordinating
 * between the database repository, the push-notification sender and the
 * message broker.
 *
 * Key features:
 * - Implements the main use cases: Borrow and Return.
 * - Precondition checks fail fast before any mutation; the actual state
 *   transition is delegated to a single-transaction repository call.
 * - Side effects (push notifications, achievement posts, email jobs) are
 *   best effort and never fail a completed borrow or return.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For transaction id generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq, pkg/pushclient: For external side-effect delivery.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sipsmart/cup-service/internal/domain"
	"github.com/sipsmart/cup-service/internal/store"
	"github.com/sipsmart/cup-service/pkg/rabbitmq"
)

var (
	ErrInvalidCupID        = errors.New("cup id is required")
	ErrInvalidStoreID      = errors.New("store id is required")
	ErrInvalidDistance     = errors.New("distance must be positive")
	ErrInvalidVehicleType  = errors.New("vehicle type must be 'bus' or 'bike'")
	ErrInvalidOrderAmount  = errors.New("order amount must be positive")
	ErrInvalidVoucherCode  = errors.New("voucher code is required")
	ErrRateLimited         = errors.New("too many requests")
	ErrEmptyCupImport      = errors.New("cup import needs at least one cup id")
	ErrInvalidReportAction = errors.New("unknown cup report action")
)

// CupUnavailableError reports a borrow attempt on a cup that is not
// available, carrying the cup's current status for the response body. It
// unwraps to store.ErrCupNotAvailable so existing errors.Is checks hold.
type CupUnavailableError struct {
	Status domain.CupStatus
}

func (e *CupUnavailableError) Error() string {
	return fmt.Sprintf("cup is not available (current status: %s)", e.Status)
}

func (e *CupUnavailableError) Unwrap() error { return store.ErrCupNotAvailable }

// PushSender delivers a push notification to a user. Implementations must be
// safe for concurrent use; failures are logged and swallowed by callers.
type PushSender interface {
	Send(ctx context.Context, userID uuid.UUID, title, message, url string) error
}

// BorrowRateLimiter is the distributed rate limiter consulted before a
// borrow or trip debit is attempted.
type BorrowRateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the cup lifecycle.
type Service struct {
	repo          store.Repository
	push          PushSender
	eventProducer rabbitmq.Publisher

	depositAmount     int64
	borrowDuration    time.Duration
	onTimePoints      int
	overduePoints     int
	commissionPercent float64

	borrowRateLimit int
	rateLimiter     BorrowRateLimiter

	now func() time.Time
}

// NewService creates a new cup service instance. depositAmount and
// borrowDurationHours come from process configuration; they are captured
// into each transaction at borrow time, so later config changes never touch
// open records.
func NewService(
	repo store.Repository,
	push PushSender,
	producer rabbitmq.Publisher,
	depositAmount int64,
	borrowDurationHours int,
	onTimePoints int,
	overduePoints int,
	commissionPercent float64,
) *Service {
	return &Service{
		repo:              repo,
		push:              push,
		eventProducer:     producer,
		depositAmount:     depositAmount,
		borrowDuration:    time.Duration(borrowDurationHours) * time.Hour,
		onTimePoints:      onTimePoints,
		overduePoints:     overduePoints,
		commissionPercent: commissionPercent,
		now:               time.Now,
	}
}

// SetRateLimiter wires the optional distributed rate limiter.
func (s *Service) SetRateLimiter(limiter BorrowRateLimiter, borrowPerMinute int) {
	s.rateLimiter = limiter
	s.borrowRateLimit = borrowPerMinute
}

// ResolveInternalUserID converts the auth provider's subject claim into the
// internal UUID used by our database.
func (s *Service) ResolveInternalUserID(ctx context.Context, subject string) (uuid.UUID, error) {
	return s.repo.FindUserIDByAuthSubject(ctx, subject)
}

func (s *Service) consumeRateLimit(ctx context.Context, scope string, userID uuid.UUID) error {
	if s.rateLimiter == nil || s.borrowRateLimit <= 0 {
		return nil
	}
	count, _, err := s.rateLimiter.ConsumeRateLimit(ctx, scope, userID.String(), s.borrowRateLimit, time.Minute)
	if err != nil {
		// A limiter outage must not block borrowing; log and continue.
		log.Printf("level=warn component=service flow=%s msg=\"rate limiter unavailable; allowing request\" user_id=%s err=%v", scope, userID, err)
		return nil
	}
	if count > s.borrowRateLimit {
		return ErrRateLimited
	}
	return nil
}

// Borrow opens a cup loan: validates user, cup and store preconditions, then
// executes the deposit debit, cup claim, counter moves and record insert as
// one atomic unit.
func (s *Service) Borrow(ctx context.Context, userID uuid.UUID, req domain.BorrowRequest) (*domain.BorrowResult, error) {
	if req.CupID == "" {
		return nil, ErrInvalidCupID
	}
	if req.StoreID == uuid.Nil {
		return nil, ErrInvalidStoreID
	}
	if err := s.consumeRateLimit(ctx, "borrow", userID); err != nil {
		return nil, err
	}

	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsBlacklisted {
		return nil, store.ErrUserBlacklisted
	}
	if user.WalletFrozen {
		return nil, store.ErrWalletFrozen
	}
	if user.WalletBalance < s.depositAmount {
		return nil, store.ErrInsufficientBalance
	}

	cup, err := s.repo.FindCupByID(ctx, req.CupID)
	if err != nil {
		return nil, err
	}
	if cup.Status != domain.CupStatusAvailable {
		return nil, &CupUnavailableError{Status: cup.Status}
	}
	if cup.StoreID != req.StoreID {
		// A claim against any store but the cup's home store would move the
		// wrong store's counters.
		return nil, store.ErrCupStoreMismatch
	}

	storeRec, err := s.repo.FindStoreByID(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	if storeRec.AvailableCount < 1 {
		return nil, store.ErrStoreOutOfStock
	}

	// Preconditions passed; the repository re-checks every guard inside the
	// transaction, so a race simply surfaces the same typed error.
	borrowTime := s.now().UTC()
	params := store.BorrowCupParams{
		TransactionID: uuid.New(),
		UserID:        userID,
		CupID:         req.CupID,
		StoreID:       req.StoreID,
		DepositAmount: s.depositAmount,
		BorrowTime:    borrowTime,
		DueTime:       borrowTime.Add(s.borrowDuration),
	}
	if err := s.repo.BorrowCupAtomic(ctx, params); err != nil {
		return nil, err
	}

	log.Printf("level=info component=service flow=borrow outcome=success user_id=%s cup_id=%s transaction_id=%s deposit=%d",
		userID, req.CupID, params.TransactionID, params.DepositAmount)

	// Best-effort side effects. Failure here never rolls back the borrow.
	s.notify(ctx, userID, "Cup borrowed",
		fmt.Sprintf("Return your cup by %s to get your %d deposit back.", params.DueTime.Format(time.RFC3339), params.DepositAmount), "")
	if s.eventProducer != nil {
		if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, "email.borrow.confirmation", domain.EmailEvent{
			UserID:        userID,
			Email:         user.Email,
			Template:      "borrow_confirmation",
			TransactionID: params.TransactionID,
			DueTime:       params.DueTime,
			DepositAmount: params.DepositAmount,
			Timestamp:     borrowTime,
		}); err != nil {
			log.Printf("level=warn component=service flow=borrow msg=\"email event publish failed\" transaction_id=%s err=%v", params.TransactionID, err)
		}
	}

	return &domain.BorrowResult{
		TransactionID: params.TransactionID,
		DueTime:       params.DueTime,
		DepositAmount: params.DepositAmount,
	}, nil
}

// GetTransaction returns one borrow record, restricted to its owner. Records
// belonging to other users are indistinguishable from missing ones.
func (s *Service) GetTransaction(ctx context.Context, userID, transactionID uuid.UUID) (*domain.BorrowTransaction, error) {
	txn, err := s.repo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, store.ErrTransactionNotFound
	}
	return txn, nil
}

// Return closes a cup loan: refunds the deposit, awards green points, moves
// the cup into cleaning and completes the borrow record, all as one atomic
// unit. Overdue hours use floor on this path (the sweep's warning path uses
// ceil).
func (s *Service) Return(ctx context.Context, userID uuid.UUID, req domain.ReturnRequest) (*domain.ReturnResult, error) {
	if req.CupID == "" {
		return nil, ErrInvalidCupID
	}
	if req.StoreID == uuid.Nil {
		return nil, ErrInvalidStoreID
	}

	cup, err := s.repo.FindCupByID(ctx, req.CupID)
	if err != nil {
		return nil, err
	}
	if cup.Status != domain.CupStatusInUse || cup.CurrentUserID == nil || *cup.CurrentUserID != userID {
		return nil, store.ErrCupNotBorrowedByUser
	}

	if _, err := s.repo.FindStoreByID(ctx, req.StoreID); err != nil {
		return nil, err
	}

	txRecord, err := s.repo.FindOngoingTransactionByCup(ctx, req.CupID)
	if err != nil {
		return nil, err
	}

	returnTime := s.now().UTC()
	isOverdue := returnTime.After(txRecord.DueTime)
	overdueHours := 0
	if isOverdue {
		overdueHours = int(returnTime.Sub(txRecord.DueTime) / time.Hour)
	}
	points := GreenPoints(isOverdue, s.onTimePoints, s.overduePoints)

	totalPoints, err := s.repo.ReturnCupAtomic(ctx, store.ReturnCupParams{
		TransactionID: txRecord.ID,
		UserID:        userID,
		CupID:         req.CupID,
		BorrowStoreID: txRecord.BorrowStoreID,
		ReturnStoreID: req.StoreID,
		ReturnTime:    returnTime,
		RefundAmount:  txRecord.DepositAmount,
		GreenPoints:   points,
		IsOverdue:     isOverdue,
		OverdueHours:  overdueHours,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service flow=return outcome=success user_id=%s cup_id=%s transaction_id=%s refund=%d points=%d overdue=%t",
		userID, req.CupID, txRecord.ID, txRecord.DepositAmount, points, isOverdue)

	result := &domain.ReturnResult{
		RefundAmount:      txRecord.DepositAmount,
		GreenPointsEarned: points,
		IsOverdue:         isOverdue,
		OverdueHours:      overdueHours,
	}

	// Rank promotion is evaluated against the post-award total.
	rankBefore := domain.RankForPoints(totalPoints - points)
	rankAfter := domain.RankForPoints(totalPoints)
	if rankBefore != rankAfter {
		result.RankUp = &rankAfter
	}

	// Achievement posts are best effort: an on-time return posts one, a rank
	// promotion posts a second.
	if !isOverdue {
		s.publishAchievement(ctx, domain.AchievementEvent{
			UserID:    userID,
			Kind:      "on_time_return",
			Message:   "Returned a cup on time",
			Points:    points,
			Timestamp: returnTime,
		})
	}
	if result.RankUp != nil {
		s.publishAchievement(ctx, domain.AchievementEvent{
			UserID:    userID,
			Kind:      "rank_up",
			Message:   fmt.Sprintf("Reached rank %s", rankAfter),
			Rank:      rankAfter,
			Timestamp: returnTime,
		})
	}
	s.notify(ctx, userID, "Deposit refunded",
		fmt.Sprintf("Your %d deposit is back in your wallet. +%d green points!", txRecord.DepositAmount, points), "")

	return result, nil
}

func (s *Service) publishAchievement(ctx context.Context, event domain.AchievementEvent) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.EventsExchange, "achievement."+event.Kind, event); err != nil {
		log.Printf("level=warn component=service msg=\"achievement publish failed\" kind=%s user_id=%s err=%v", event.Kind, event.UserID, err)
	}
}

func (s *Service) notify(ctx context.Context, userID uuid.UUID, title, message, url string) {
	if s.push == nil {
		return
	}
	if err := s.push.Send(ctx, userID, title, message, url); err != nil {
		log.Printf("level=warn component=service msg=\"push notification failed\" user_id=%s title=%q err=%v", userID, title, err)
	}
}
