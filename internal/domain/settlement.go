/**
 * @description
 * Settlement domain models: the periodic aggregation of a partner store's
 * completed transactions into a payable amount, plus the escrow and inventory
 * reconciliation reports consumed by the admin surface.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// SettlementStatus enumerates the strictly forward-only batch lifecycle.
type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "pending"
	SettlementApproved SettlementStatus = "approved"
	SettlementPaid     SettlementStatus = "paid"
)

// Partner contract types. Commission applies only for revenue_share and
// hybrid contracts; fixed_fee partners are charged the flat fee alone.
const (
	ContractRevenueShare = "revenue_share"
	ContractFixedFee     = "fixed_fee"
	ContractHybrid       = "hybrid"
)

// SettlementBatch aggregates a store's completed transactions over a period.
// Invariant: NetPayable = TotalRevenue - CommissionAmount - FixedFee.
type SettlementBatch struct {
	ID                uuid.UUID        `json:"id"`
	PartnerID         uuid.UUID        `json:"partner_id"`
	StoreID           uuid.UUID        `json:"store_id"`
	PeriodStart       time.Time        `json:"period_start"`
	PeriodEnd         time.Time        `json:"period_end"`
	TotalTransactions int              `json:"total_transactions"`
	TotalRevenue      int64            `json:"total_revenue"`
	CommissionPercent float64          `json:"commission_percent"`
	CommissionAmount  int64            `json:"commission_amount"`
	FixedFee          int64            `json:"fixed_fee"`
	NetPayable        int64            `json:"net_payable"`
	Status            SettlementStatus `json:"status"`
	ApprovedBy        *uuid.UUID       `json:"approved_by,omitempty"`
	PaymentReference  *string          `json:"payment_reference,omitempty"`
	PaidAt            *time.Time       `json:"paid_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// EscrowSummary is the sum of outstanding deposits across all ongoing
// transactions. That money is ring-fenced and never counted as revenue.
type EscrowSummary struct {
	OngoingTransactions int   `json:"ongoing_transactions"`
	TotalDeposits       int64 `json:"total_deposits"`
}

// InventoryDrift reports one counter whose stored value disagreed with the
// count recomputed from the cups table during reconciliation.
type InventoryDrift struct {
	StoreID uuid.UUID `json:"store_id"`
	Counter string    `json:"counter"`
	Stored  int       `json:"stored"`
	Actual  int       `json:"actual"`
}

// SettlementActionRequest is the DTO for POST /admin/settlements.
type SettlementActionRequest struct {
	Action           string     `json:"action"` // 'create', 'approve', 'payout', 'escrow', 'reconciliation'
	StoreID          *uuid.UUID `json:"store_id,omitempty"`
	PeriodStart      *time.Time `json:"period_start,omitempty"`
	PeriodEnd        *time.Time `json:"period_end,omitempty"`
	BatchID          *uuid.UUID `json:"batch_id,omitempty"`
	PaymentReference string     `json:"payment_reference,omitempty"`
}
