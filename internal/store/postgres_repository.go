/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL needed for the cup lifecycle, wallet
 * movements, sweeps, vouchers, trips and settlement batches.
 *
 * The borrow and return operations each run inside one database transaction;
 * every state-changing statement carries its own precondition in the WHERE
 * clause (compare-and-set on cup status, balance guard on the wallet debit,
 * stock guard on the counter decrement) so concurrent callers racing on the
 * same cup serialize on the row and the loser gets a typed error instead of a
 * double assignment.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sipsmart/cup-service/internal/domain"
)

var (
	ErrUserNotFound             = errors.New("user not found")
	ErrUserBlacklisted          = errors.New("user is blacklisted")
	ErrWalletFrozen             = errors.New("wallet is frozen")
	ErrInsufficientBalance      = errors.New("insufficient wallet balance")
	ErrCupNotFound              = errors.New("cup not found")
	ErrCupNotAvailable          = errors.New("cup is not available")
	ErrCupStoreMismatch         = errors.New("cup belongs to a different store")
	ErrCupNotBorrowedByUser     = errors.New("cup is not borrowed by this user")
	ErrCupNotRetired            = errors.New("cup is not retired")
	ErrCupNotCleaning           = errors.New("cup is not in cleaning")
	ErrStoreNotFound            = errors.New("store not found")
	ErrStoreOutOfStock          = errors.New("store has no available cups")
	ErrNoActiveTransaction      = errors.New("no active transaction for cup")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionAlreadyClosed = errors.New("transaction already closed")
	ErrVoucherNotFound          = errors.New("voucher not found")
	ErrSettlementNotFound       = errors.New("settlement batch not found")
	ErrRateNotFound             = errors.New("transport rate not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserIDByAuthSubject resolves the internal UUID from the auth provider's
// subject claim (set during onboarding).
func (r *PostgresRepository) FindUserIDByAuthSubject(ctx context.Context, subject string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE auth_subject = $1", subject).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// FindUserByID retrieves a user with wallet and gamification state.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var user domain.User
	query := `
		SELECT id, auth_subject, email, wallet_balance, wallet_frozen, is_blacklisted,
		       green_points, cups_saved, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.AuthSubject, &user.Email, &user.WalletBalance, &user.WalletFrozen,
		&user.IsBlacklisted, &user.GreenPoints, &user.CupsSaved, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// FindCupByID retrieves a cup by its external code.
func (r *PostgresRepository) FindCupByID(ctx context.Context, cupID string) (*domain.Cup, error) {
	var cup domain.Cup
	query := `
		SELECT id, material, status, store_id, current_user_id, current_transaction_id,
		       total_uses, retired_reason, created_at, updated_at
		FROM cups
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, cupID).Scan(
		&cup.ID, &cup.Material, &cup.Status, &cup.StoreID, &cup.CurrentUserID,
		&cup.CurrentTransactionID, &cup.TotalUses, &cup.RetiredReason, &cup.CreatedAt, &cup.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCupNotFound
		}
		return nil, err
	}
	return &cup, nil
}

// FindStoreByID retrieves a partner store with its inventory counters and
// contract terms.
func (r *PostgresRepository) FindStoreByID(ctx context.Context, storeID uuid.UUID) (*domain.Store, error) {
	var s domain.Store
	query := `
		SELECT id, partner_id, name, available_count, in_use_count, cleaning_count,
		       latitude, longitude, contract_type, commission_percent, fixed_fee,
		       created_at, updated_at
		FROM stores
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, storeID).Scan(
		&s.ID, &s.PartnerID, &s.Name, &s.AvailableCount, &s.InUseCount, &s.CleaningCount,
		&s.Latitude, &s.Longitude, &s.ContractType, &s.CommissionPercent, &s.FixedFee,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	return &s, nil
}

// classifyDebitFailure re-reads the wallet row to turn a zero-row debit into
// the precise precondition error. Runs inside the failed transaction's
// connection so the caller can still roll back cleanly.
func classifyDebitFailure(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64) error {
	var balance int64
	var frozen, blacklisted bool
	err := tx.QueryRow(ctx,
		"SELECT wallet_balance, wallet_frozen, is_blacklisted FROM users WHERE id = $1",
		userID,
	).Scan(&balance, &frozen, &blacklisted)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrUserNotFound
		}
		return err
	}
	switch {
	case blacklisted:
		return ErrUserBlacklisted
	case frozen:
		return ErrWalletFrozen
	case balance < amount:
		return ErrInsufficientBalance
	default:
		return ErrInsufficientBalance
	}
}

// BorrowCupAtomic performs the borrow as one database transaction: debit the
// deposit, flip the cup to in_use with a status CAS, move the store counters
// and insert the borrow record. Any guard failing rolls back the whole unit.
func (r *PostgresRepository) BorrowCupAtomic(ctx context.Context, params BorrowCupParams) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Debit the deposit. The balance guard keeps the wallet from ever
	// going negative; frozen or blacklisted wallets never debit.
	debit := `
		UPDATE users
		SET wallet_balance = wallet_balance - $1, updated_at = NOW()
		WHERE id = $2
		  AND wallet_balance >= $1
		  AND wallet_frozen = false
		  AND is_blacklisted = false
	`
	ct, err := tx.Exec(ctx, debit, params.DepositAmount, params.UserID)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return classifyDebitFailure(ctx, tx, params.UserID, params.DepositAmount)
	}

	// 2. Claim the cup. The status precondition is the serialization point:
	// of two concurrent borrows, exactly one update matches. The store
	// predicate keeps the counter moves in step 3 bound to the cup's home
	// store, so a claim against the wrong store never lands.
	claim := `
		UPDATE cups
		SET status = 'in_use',
		    current_user_id = $1,
		    current_transaction_id = $2,
		    total_uses = total_uses + 1,
		    updated_at = NOW()
		WHERE id = $3 AND status = 'available' AND store_id = $4
	`
	ct, err = tx.Exec(ctx, claim, params.UserID, params.TransactionID, params.CupID, params.StoreID)
	if err != nil {
		return fmt.Errorf("failed to claim cup: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrCupNotAvailable
	}

	// 3. Move the inventory counters with a stock guard.
	counters := `
		UPDATE stores
		SET available_count = available_count - 1,
		    in_use_count = in_use_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND available_count >= 1
	`
	ct, err = tx.Exec(ctx, counters, params.StoreID)
	if err != nil {
		return fmt.Errorf("failed to adjust store counters: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStoreOutOfStock
	}

	// 4. Create the borrow record with dueTime and deposit frozen at creation.
	insert := `
		INSERT INTO transactions (
			id, user_id, cup_id, borrow_store_id, borrow_time, due_time,
			status, deposit_amount, is_overdue, overdue_hours, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, 'ongoing', $7, false, 0, NOW(), NOW())
	`
	if _, err = tx.Exec(ctx, insert,
		params.TransactionID, params.UserID, params.CupID, params.StoreID,
		params.BorrowTime, params.DueTime, params.DepositAmount,
	); err != nil {
		return fmt.Errorf("failed to insert borrow record: %w", err)
	}

	return tx.Commit(ctx)
}

// ReturnCupAtomic performs the return as one database transaction: close the
// borrow record, put the cup into cleaning, move the counters, refund the
// deposit and award points. Returns the user's post-award green point total
// so the caller can evaluate rank promotion.
func (r *PostgresRepository) ReturnCupAtomic(ctx context.Context, params ReturnCupParams) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Close the borrow record. A record the overdue sweep already flipped
	// to 'overdue' is still a legal close; a completed one is not, which
	// makes double-completion and sweep races lose here.
	closeTx := `
		UPDATE transactions
		SET status = 'completed',
		    return_store_id = $1,
		    return_time = $2,
		    refund_amount = $3,
		    green_points_earned = $4,
		    is_overdue = $5,
		    overdue_hours = $6,
		    updated_at = NOW()
		WHERE id = $7 AND status IN ('ongoing', 'overdue')
	`
	ct, err := tx.Exec(ctx, closeTx,
		params.ReturnStoreID, params.ReturnTime, params.RefundAmount,
		params.GreenPoints, params.IsOverdue, params.OverdueHours, params.TransactionID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close borrow record: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return 0, ErrTransactionAlreadyClosed
	}

	// 2. Release the cup into cleaning; the holder guard rejects returns by
	// anyone but the borrower.
	release := `
		UPDATE cups
		SET status = 'cleaning',
		    store_id = $1,
		    current_user_id = NULL,
		    current_transaction_id = NULL,
		    updated_at = NOW()
		WHERE id = $2 AND status = 'in_use' AND current_user_id = $3
	`
	ct, err = tx.Exec(ctx, release, params.ReturnStoreID, params.CupID, params.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to release cup: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return 0, ErrCupNotBorrowedByUser
	}

	// 3. Counters: in_use leaves the borrow store, cleaning enters the
	// return store (they are the same store on the common path).
	ct, err = tx.Exec(ctx,
		`UPDATE stores SET in_use_count = in_use_count - 1, updated_at = NOW() WHERE id = $1 AND in_use_count >= 1`,
		params.BorrowStoreID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement in-use counter: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// The guard kept an already-zero counter from going negative; the
		// underlying drift is left for reconciliation to repair.
		log.Printf("level=warn component=store flow=return msg=\"in-use counter already zero; decrement skipped\" store_id=%s cup_id=%s", params.BorrowStoreID, params.CupID)
	}
	if _, err = tx.Exec(ctx,
		`UPDATE stores SET cleaning_count = cleaning_count + 1, updated_at = NOW() WHERE id = $1`,
		params.ReturnStoreID,
	); err != nil {
		return 0, fmt.Errorf("failed to increment cleaning counter: %w", err)
	}

	// 4. Refund the deposit, award points, bump the lifetime counter.
	var totalPoints int
	credit := `
		UPDATE users
		SET wallet_balance = wallet_balance + $1,
		    green_points = green_points + $2,
		    cups_saved = cups_saved + 1,
		    updated_at = NOW()
		WHERE id = $3
		RETURNING green_points
	`
	if err = tx.QueryRow(ctx, credit, params.RefundAmount, params.GreenPoints, params.UserID).Scan(&totalPoints); err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to credit wallet: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return totalPoints, nil
}

func scanTransaction(row pgx.Row) (*domain.BorrowTransaction, error) {
	var t domain.BorrowTransaction
	err := row.Scan(
		&t.ID, &t.UserID, &t.CupID, &t.BorrowStoreID, &t.ReturnStoreID,
		&t.BorrowTime, &t.DueTime, &t.ReturnTime, &t.Status, &t.DepositAmount,
		&t.RefundAmount, &t.GreenPointsEarned, &t.IsOverdue, &t.OverdueHours,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const transactionColumns = `
	id, user_id, cup_id, borrow_store_id, return_store_id,
	borrow_time, due_time, return_time, status, deposit_amount,
	refund_amount, green_points_earned, is_overdue, overdue_hours,
	created_at, updated_at
`

// FindOngoingTransactionByCup returns the single open borrow record for a
// cup, whether still 'ongoing' or already swept to 'overdue'.
func (r *PostgresRepository) FindOngoingTransactionByCup(ctx context.Context, cupID string) (*domain.BorrowTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE cup_id = $1 AND status IN ('ongoing', 'overdue')
		ORDER BY borrow_time DESC
		LIMIT 1
	`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, cupID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNoActiveTransaction
		}
		return nil, err
	}
	return t, nil
}

// FindTransactionByID retrieves a borrow record by id.
func (r *PostgresRepository) FindTransactionByID(ctx context.Context, transactionID uuid.UUID) (*domain.BorrowTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(r.db.QueryRow(ctx, query, transactionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListOverdueCandidates returns ongoing transactions past their due time.
func (r *PostgresRepository) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]domain.BorrowTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'ongoing' AND due_time < $1
		ORDER BY due_time ASC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BorrowTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// MarkTransactionOverdue flips an ongoing record to overdue. The status
// precondition makes the sweep idempotent: a record already swept, or
// completed by a racing return, is untouched.
func (r *PostgresRepository) MarkTransactionOverdue(ctx context.Context, transactionID uuid.UUID, overdueHours int) (bool, error) {
	query := `
		UPDATE transactions
		SET status = 'overdue', is_overdue = true, overdue_hours = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'ongoing'
	`
	ct, err := r.db.Exec(ctx, query, overdueHours, transactionID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// ListDueSoonTransactions returns ongoing transactions whose due time falls
// inside the reminder window.
func (r *PostgresRepository) ListDueSoonTransactions(ctx context.Context, windowStart, windowEnd time.Time) ([]domain.BorrowTransaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = 'ongoing' AND due_time >= $1 AND due_time <= $2
		ORDER BY due_time ASC
	`
	rows, err := r.db.Query(ctx, query, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BorrowTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// CreateNotificationOnce records a notification keyed by (transaction_id,
// notification_type). The unique constraint is the idempotency guard; a
// duplicate insert reports false and the caller skips the send.
func (r *PostgresRepository) CreateNotificationOnce(ctx context.Context, transactionID, userID uuid.UUID, notificationType, title, message string) (bool, error) {
	query := `
		INSERT INTO notifications (transaction_id, user_id, notification_type, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (transaction_id, notification_type) DO NOTHING
	`
	ct, err := r.db.Exec(ctx, query, transactionID, userID, notificationType, title, message)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// CreateCupsBulk provisions cups to a store in one transaction, adjusting the
// available counter by the number actually inserted (duplicates are skipped).
func (r *PostgresRepository) CreateCupsBulk(ctx context.Context, storeID uuid.UUID, material domain.CupMaterial, cupIDs []string) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, cupID := range cupIDs {
		ct, err := tx.Exec(ctx, `
			INSERT INTO cups (id, material, status, store_id, total_uses, created_at, updated_at)
			VALUES ($1, $2, 'available', $3, 0, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING
		`, cupID, material, storeID)
		if err != nil {
			return 0, fmt.Errorf("failed to insert cup %s: %w", cupID, err)
		}
		inserted += int(ct.RowsAffected())
	}

	if inserted > 0 {
		if _, err := tx.Exec(ctx,
			`UPDATE stores SET available_count = available_count + $1, updated_at = NOW() WHERE id = $2`,
			inserted, storeID,
		); err != nil {
			return 0, fmt.Errorf("failed to adjust available counter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// RetireCupAtomic marks a cup lost or broken. Allowed from available or
// in_use; an in_use cup forfeits the outstanding deposit (the open record is
// closed with no refund and no points). Counters are adjusted for whichever
// bucket the cup leaves.
func (r *PostgresRepository) RetireCupAtomic(ctx context.Context, cupID string, status domain.CupStatus, reason string) error {
	if status != domain.CupStatusLost && status != domain.CupStatusBroken {
		return fmt.Errorf("invalid retirement status %q", status)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var prevStatus string
	var storeID uuid.UUID
	var currentTxID *uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT status, store_id, current_transaction_id
		FROM cups
		WHERE id = $1
		FOR UPDATE
	`, cupID).Scan(&prevStatus, &storeID, &currentTxID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrCupNotFound
		}
		return fmt.Errorf("failed to lock cup: %w", err)
	}
	if prevStatus != string(domain.CupStatusAvailable) && prevStatus != string(domain.CupStatusInUse) {
		return ErrCupNotAvailable
	}

	if _, err = tx.Exec(ctx, `
		UPDATE cups
		SET status = $1, retired_reason = $2, current_user_id = NULL,
		    current_transaction_id = NULL, updated_at = NOW()
		WHERE id = $3
	`, status, reason, cupID); err != nil {
		return fmt.Errorf("failed to retire cup: %w", err)
	}

	counterSQL := `UPDATE stores SET available_count = available_count - 1, updated_at = NOW() WHERE id = $1 AND available_count >= 1`
	if prevStatus == string(domain.CupStatusInUse) {
		counterSQL = `UPDATE stores SET in_use_count = in_use_count - 1, updated_at = NOW() WHERE id = $1 AND in_use_count >= 1`
	}
	if _, err = tx.Exec(ctx, counterSQL, storeID); err != nil {
		return fmt.Errorf("failed to adjust counters: %w", err)
	}

	// Close a dangling borrow record without refund: the deposit is forfeited.
	if currentTxID != nil {
		if _, err = tx.Exec(ctx, `
			UPDATE transactions
			SET status = 'completed', return_time = NOW(), refund_amount = 0,
			    green_points_earned = 0, updated_at = NOW()
			WHERE id = $1 AND status IN ('ongoing', 'overdue')
		`, *currentTxID); err != nil {
			return fmt.Errorf("failed to close dangling borrow record: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ReinstateCup returns a retired cup to circulation via the cleaning bucket.
func (r *PostgresRepository) ReinstateCup(ctx context.Context, cupID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storeID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE cups
		SET status = 'cleaning', retired_reason = NULL, updated_at = NOW()
		WHERE id = $1 AND status IN ('lost', 'broken')
		RETURNING store_id
	`, cupID).Scan(&storeID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrCupNotRetired
		}
		return fmt.Errorf("failed to reinstate cup: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`UPDATE stores SET cleaning_count = cleaning_count + 1, updated_at = NOW() WHERE id = $1`,
		storeID,
	); err != nil {
		return fmt.Errorf("failed to adjust cleaning counter: %w", err)
	}

	return tx.Commit(ctx)
}

// MarkCupCleaned closes the happy-path loop: cleaning back to available.
func (r *PostgresRepository) MarkCupCleaned(ctx context.Context, cupID string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storeID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE cups
		SET status = 'available', updated_at = NOW()
		WHERE id = $1 AND status = 'cleaning'
		RETURNING store_id
	`, cupID).Scan(&storeID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrCupNotCleaning
		}
		return fmt.Errorf("failed to mark cup cleaned: %w", err)
	}

	ct, err := tx.Exec(ctx, `
		UPDATE stores
		SET cleaning_count = cleaning_count - 1,
		    available_count = available_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND cleaning_count >= 1
	`, storeID)
	if err != nil {
		return fmt.Errorf("failed to adjust counters: %w", err)
	}
	if ct.RowsAffected() == 0 {
		log.Printf("level=warn component=store flow=mark_cleaned msg=\"cleaning counter already zero; adjustment skipped\" store_id=%s cup_id=%s", storeID, cupID)
	}

	return tx.Commit(ctx)
}

// GetTransportRate loads the database-owned fare schedule for a vehicle type.
func (r *PostgresRepository) GetTransportRate(ctx context.Context, vehicleType domain.VehicleType) (*domain.TransportRate, error) {
	var rate domain.TransportRate
	query := `
		SELECT vehicle_type, base_fare, per_km, commission_percent
		FROM transport_rates
		WHERE vehicle_type = $1
	`
	err := r.db.QueryRow(ctx, query, vehicleType).Scan(
		&rate.VehicleType, &rate.BaseFare, &rate.PerKm, &rate.CommissionPercent,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRateNotFound
		}
		return nil, err
	}
	return &rate, nil
}

// RecordTripAtomic debits the fare and records the trip in one transaction.
func (r *PostgresRepository) RecordTripAtomic(ctx context.Context, trip *domain.Trip) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	debit := `
		UPDATE users
		SET wallet_balance = wallet_balance - $1, updated_at = NOW()
		WHERE id = $2
		  AND wallet_balance >= $1
		  AND wallet_frozen = false
		  AND is_blacklisted = false
	`
	ct, err := tx.Exec(ctx, debit, trip.Fare, trip.UserID)
	if err != nil {
		return fmt.Errorf("failed to debit fare: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return classifyDebitFailure(ctx, tx, trip.UserID, trip.Fare)
	}

	insert := `
		INSERT INTO trips (id, user_id, vehicle_type, distance_km, fare, commission, co2_saved_kg, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	if _, err = tx.Exec(ctx, insert,
		trip.ID, trip.UserID, trip.VehicleType, trip.DistanceKm,
		trip.Fare, trip.Commission, trip.CO2SavedKg,
	); err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	return tx.Commit(ctx)
}

// FindVoucherByCode retrieves a voucher by its code (case-insensitive).
func (r *PostgresRepository) FindVoucherByCode(ctx context.Context, code string) (*domain.Voucher, error) {
	var v domain.Voucher
	query := `
		SELECT id, code, type, value, max_discount, min_order_value, is_active,
		       valid_from, valid_until, per_user_limit, total_limit, total_used, created_at
		FROM vouchers
		WHERE lower(code) = lower($1)
	`
	err := r.db.QueryRow(ctx, query, code).Scan(
		&v.ID, &v.Code, &v.Type, &v.Value, &v.MaxDiscount, &v.MinOrderValue, &v.IsActive,
		&v.ValidFrom, &v.ValidUntil, &v.PerUserLimit, &v.TotalLimit, &v.TotalUsed, &v.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrVoucherNotFound
		}
		return nil, err
	}
	return &v, nil
}

// CountVoucherUsesByUser counts redemptions of a voucher by one user.
// voucher_uses rows are written by the ordering system when it commits an
// order; this service only reads them for the cap gates.
func (r *PostgresRepository) CountVoucherUsesByUser(ctx context.Context, voucherID, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM voucher_uses WHERE voucher_id = $1 AND user_id = $2",
		voucherID, userID,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// AggregateStoreRevenue sums completed-transaction deposits kept as service
// revenue for a store over a period. Only completed records count; escrowed
// deposits on ongoing loans are excluded by definition.
func (r *PostgresRepository) AggregateStoreRevenue(ctx context.Context, storeID uuid.UUID, periodStart, periodEnd time.Time) (int, int64, error) {
	var count int
	var revenue int64
	query := `
		SELECT COUNT(*), COALESCE(SUM(deposit_amount - COALESCE(refund_amount, 0)) , 0)
		FROM transactions
		WHERE borrow_store_id = $1
		  AND status = 'completed'
		  AND return_time >= $2 AND return_time < $3
	`
	err := r.db.QueryRow(ctx, query, storeID, periodStart, periodEnd).Scan(&count, &revenue)
	if err != nil {
		return 0, 0, err
	}
	return count, revenue, nil
}

// CreateSettlementBatch writes a new batch in pending state.
func (r *PostgresRepository) CreateSettlementBatch(ctx context.Context, batch *domain.SettlementBatch) error {
	query := `
		INSERT INTO settlement_batches (
			id, partner_id, store_id, period_start, period_end,
			total_transactions, total_revenue, commission_percent, commission_amount,
			fixed_fee, net_payable, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'pending', NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query,
		batch.ID, batch.PartnerID, batch.StoreID, batch.PeriodStart, batch.PeriodEnd,
		batch.TotalTransactions, batch.TotalRevenue, batch.CommissionPercent,
		batch.CommissionAmount, batch.FixedFee, batch.NetPayable,
	)
	return err
}

// FindSettlementBatchByID retrieves a settlement batch.
func (r *PostgresRepository) FindSettlementBatchByID(ctx context.Context, batchID uuid.UUID) (*domain.SettlementBatch, error) {
	var b domain.SettlementBatch
	query := `
		SELECT id, partner_id, store_id, period_start, period_end,
		       total_transactions, total_revenue, commission_percent, commission_amount,
		       fixed_fee, net_payable, status, approved_by, payment_reference, paid_at,
		       created_at, updated_at
		FROM settlement_batches
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, batchID).Scan(
		&b.ID, &b.PartnerID, &b.StoreID, &b.PeriodStart, &b.PeriodEnd,
		&b.TotalTransactions, &b.TotalRevenue, &b.CommissionPercent, &b.CommissionAmount,
		&b.FixedFee, &b.NetPayable, &b.Status, &b.ApprovedBy, &b.PaymentReference, &b.PaidAt,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return &b, nil
}

// ApproveSettlementBatch moves pending to approved. The status precondition
// enforces the forward-only state machine; false means the batch was not in
// pending state.
func (r *PostgresRepository) ApproveSettlementBatch(ctx context.Context, batchID, adminID uuid.UUID) (bool, error) {
	query := `
		UPDATE settlement_batches
		SET status = 'approved', approved_by = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'pending'
	`
	ct, err := r.db.Exec(ctx, query, adminID, batchID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// MarkSettlementBatchPaid moves approved to paid with the payment reference.
func (r *PostgresRepository) MarkSettlementBatchPaid(ctx context.Context, batchID uuid.UUID, paymentReference string) (bool, error) {
	query := `
		UPDATE settlement_batches
		SET status = 'paid', payment_reference = $1, paid_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = 'approved'
	`
	ct, err := r.db.Exec(ctx, query, paymentReference, batchID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// EscrowSummary sums outstanding deposits over open borrow records. That
// money is ring-fenced and never settleable.
func (r *PostgresRepository) EscrowSummary(ctx context.Context) (*domain.EscrowSummary, error) {
	var summary domain.EscrowSummary
	query := `
		SELECT COUNT(*), COALESCE(SUM(deposit_amount), 0)
		FROM transactions
		WHERE status IN ('ongoing', 'overdue')
	`
	err := r.db.QueryRow(ctx, query).Scan(&summary.OngoingTransactions, &summary.TotalDeposits)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// ReconcileStoreInventory recomputes the three counters from the cups table
// (the canonical source of truth), repairs any drift and reports what it
// found.
func (r *PostgresRepository) ReconcileStoreInventory(ctx context.Context, storeID uuid.UUID) ([]domain.InventoryDrift, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var storedAvailable, storedInUse, storedCleaning int
	err = tx.QueryRow(ctx, `
		SELECT available_count, in_use_count, cleaning_count
		FROM stores
		WHERE id = $1
		FOR UPDATE
	`, storeID).Scan(&storedAvailable, &storedInUse, &storedCleaning)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to lock store: %w", err)
	}

	var actualAvailable, actualInUse, actualCleaning int
	err = tx.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'available'),
			COUNT(*) FILTER (WHERE status = 'in_use'),
			COUNT(*) FILTER (WHERE status = 'cleaning')
		FROM cups
		WHERE store_id = $1
	`, storeID).Scan(&actualAvailable, &actualInUse, &actualCleaning)
	if err != nil {
		return nil, fmt.Errorf("failed to recount cups: %w", err)
	}

	var drift []domain.InventoryDrift
	if storedAvailable != actualAvailable {
		drift = append(drift, domain.InventoryDrift{StoreID: storeID, Counter: "available", Stored: storedAvailable, Actual: actualAvailable})
	}
	if storedInUse != actualInUse {
		drift = append(drift, domain.InventoryDrift{StoreID: storeID, Counter: "in_use", Stored: storedInUse, Actual: actualInUse})
	}
	if storedCleaning != actualCleaning {
		drift = append(drift, domain.InventoryDrift{StoreID: storeID, Counter: "cleaning", Stored: storedCleaning, Actual: actualCleaning})
	}

	if len(drift) > 0 {
		if _, err = tx.Exec(ctx, `
			UPDATE stores
			SET available_count = $1, in_use_count = $2, cleaning_count = $3, updated_at = NOW()
			WHERE id = $4
		`, actualAvailable, actualInUse, actualCleaning, storeID); err != nil {
			return nil, fmt.Errorf("failed to repair counters: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return drift, nil
}

// UserTripDistanceKm sums lifetime trip distance for the impact summary.
func (r *PostgresRepository) UserTripDistanceKm(ctx context.Context, userID uuid.UUID) (float64, error) {
	var km float64
	err := r.db.QueryRow(ctx,
		"SELECT COALESCE(SUM(distance_km), 0) FROM trips WHERE user_id = $1",
		userID,
	).Scan(&km)
	if err != nil {
		return 0, err
	}
	return km, nil
}
