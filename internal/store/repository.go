/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the cup-service. By defining an
 * interface, we decouple the application's business logic from the specific
 * database implementation (PostgreSQL), making the code more modular and
 * easier to test.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sipsmart/cup-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	FindUserIDByAuthSubject(ctx context.Context, subject string) (uuid.UUID, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)

	// Cup and store lookups
	FindCupByID(ctx context.Context, cupID string) (*domain.Cup, error)
	FindStoreByID(ctx context.Context, storeID uuid.UUID) (*domain.Store, error)

	// Lifecycle operations. Each runs as a single database transaction
	// covering the wallet movement, the cup CAS transition, the borrow record
	// and both inventory counter adjustments; a failure in any step leaves no
	// partial state.
	BorrowCupAtomic(ctx context.Context, params BorrowCupParams) error
	ReturnCupAtomic(ctx context.Context, params ReturnCupParams) (int, error)
	FindOngoingTransactionByCup(ctx context.Context, cupID string) (*domain.BorrowTransaction, error)
	FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.BorrowTransaction, error)

	// Sweep methods. Writes are guarded by a status precondition so repeated
	// or concurrent invocations are no-ops for already-processed records.
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]domain.BorrowTransaction, error)
	MarkTransactionOverdue(ctx context.Context, transactionID uuid.UUID, overdueHours int) (bool, error)
	ListDueSoonTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.BorrowTransaction, error)
	CreateNotificationOnce(ctx context.Context, transactionID, userID uuid.UUID, notificationType, title, message string) (bool, error)

	// Admin cup operations
	CreateCupsBulk(ctx context.Context, storeID uuid.UUID, material domain.CupMaterial, cupIDs []string) (int, error)
	RetireCupAtomic(ctx context.Context, cupID string, status domain.CupStatus, reason string) error
	ReinstateCup(ctx context.Context, cupID string) error
	MarkCupCleaned(ctx context.Context, cupID string) error

	// Transport trips
	GetTransportRate(ctx context.Context, vehicleType domain.VehicleType) (*domain.TransportRate, error)
	RecordTripAtomic(ctx context.Context, trip *domain.Trip) error

	// Vouchers
	FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error)
	CountVoucherUsesByUser(ctx context.Context, voucherID, userID uuid.UUID) (int, error)

	// Settlement methods
	AggregateStoreRevenue(ctx context.Context, storeID uuid.UUID, periodStart, periodEnd time.Time) (int, int64, error)
	CreateSettlementBatch(ctx context.Context, batch *domain.SettlementBatch) error
	FindSettlementBatchByID(ctx context.Context, batchID uuid.UUID) (*domain.SettlementBatch, error)
	ApproveSettlementBatch(ctx context.Context, batchID, adminID uuid.UUID) (bool, error)
	MarkSettlementBatchPaid(ctx context.Context, batchID uuid.UUID, paymentReference string) (bool, error)
	EscrowSummary(ctx context.Context) (*domain.EscrowSummary, error)
	ReconcileStoreInventory(ctx context.Context, storeID uuid.UUID) ([]domain.InventoryDrift, error)

	// Impact
	UserTripDistanceKm(ctx context.Context, userID uuid.UUID) (float64, error)
}

// BorrowCupParams carries everything the borrow transaction writes. DueTime
// and DepositAmount are computed by the caller and frozen here.
type BorrowCupParams struct {
	TransactionID uuid.UUID
	UserID        uuid.UUID
	CupID         string
	StoreID       uuid.UUID
	DepositAmount int64
	BorrowTime    time.Time
	DueTime       time.Time
}

// ReturnCupParams carries everything the return transaction writes. The
// borrow store and return store may differ; the in-use counter is decremented
// at the borrow store and the cleaning counter incremented at the return
// store.
type ReturnCupParams struct {
	TransactionID uuid.UUID
	UserID        uuid.UUID
	CupID         string
	BorrowStoreID uuid.UUID
	ReturnStoreID uuid.UUID
	ReturnTime    time.Time
	RefundAmount  int64
	GreenPoints   int
	IsOverdue     bool
	OverdueHours  int
}
