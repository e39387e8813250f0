/**
 * @description
 * This file defines the borrow transaction record and the request/response
 * DTOs for the borrow and return operations. A BorrowTransaction is created
 * atomically with the cup transition to `in_use` and mutated exactly once at
 * return (or flipped to `overdue` by the periodic sweep).
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionStatus enumerates the borrow record lifecycle.
type TransactionStatus string

const (
	TransactionOngoing   TransactionStatus = "ongoing"
	TransactionCompleted TransactionStatus = "completed"
	TransactionOverdue   TransactionStatus = "overdue"
)

// BorrowTransaction is the ledger record for one cup loan. DueTime and
// DepositAmount are captured at borrow time and never mutated afterwards;
// configuration changes do not retroactively affect open records.
type BorrowTransaction struct {
	ID                uuid.UUID         `json:"id"`
	UserID            uuid.UUID         `json:"user_id"`
	CupID             string            `json:"cup_id"`
	BorrowStoreID     uuid.UUID         `json:"borrow_store_id"`
	ReturnStoreID     *uuid.UUID        `json:"return_store_id,omitempty"`
	BorrowTime        time.Time         `json:"borrow_time"`
	DueTime           time.Time         `json:"due_time"`
	ReturnTime        *time.Time        `json:"return_time,omitempty"`
	Status            TransactionStatus `json:"status"`
	DepositAmount     int64             `json:"deposit_amount"`
	RefundAmount      *int64            `json:"refund_amount,omitempty"`
	GreenPointsEarned *int              `json:"green_points_earned,omitempty"`
	IsOverdue         bool              `json:"is_overdue"`
	OverdueHours      int               `json:"overdue_hours"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// BorrowRequest is the DTO for POST /api/borrow.
type BorrowRequest struct {
	CupID   string    `json:"cup_id"`
	StoreID uuid.UUID `json:"store_id"`
}

// BorrowResult is returned to the client after a successful borrow.
type BorrowResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	DueTime       time.Time `json:"due_time"`
	DepositAmount int64     `json:"deposit_amount"`
}

// ReturnRequest is the DTO for POST /api/return.
type ReturnRequest struct {
	CupID   string    `json:"cup_id"`
	StoreID uuid.UUID `json:"store_id"`
}

// ReturnResult is returned to the client after a successful return. RankUp is
// set to the new rank name when the awarded points crossed a rank threshold.
type ReturnResult struct {
	RefundAmount      int64   `json:"refund_amount"`
	GreenPointsEarned int     `json:"green_points_earned"`
	IsOverdue         bool    `json:"is_overdue"`
	OverdueHours      int     `json:"overdue_hours"`
	RankUp            *string `json:"rank_up,omitempty"`
}

// SweepResult summarizes one run of a periodic sweep endpoint.
type SweepResult struct {
	Found     int `json:"found"`
	Processed int `json:"processed"`
}
