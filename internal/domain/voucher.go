package domain

import (
	"time"

	"github.com/google/uuid"
)

// VoucherType enumerates the two discount schemes.
type VoucherType string

const (
	VoucherPercent VoucherType = "percent"
	VoucherFixed   VoucherType = "fixed"
)

// Voucher is a discount code with validity gates: active flag, date window,
// minimum order value, per-user usage cap and total usage cap.
type Voucher struct {
	ID            uuid.UUID   `json:"id"`
	Code          string      `json:"code"`
	Type          VoucherType `json:"type"`
	Value         int64       `json:"value"` // percent (0-100) or fixed amount
	MaxDiscount   *int64      `json:"max_discount,omitempty"`
	MinOrderValue int64       `json:"min_order_value"`
	IsActive      bool        `json:"is_active"`
	ValidFrom     time.Time   `json:"valid_from"`
	ValidUntil    time.Time   `json:"valid_until"`
	PerUserLimit  int         `json:"per_user_limit"` // 0 means unlimited
	TotalLimit    int         `json:"total_limit"`    // 0 means unlimited
	TotalUsed     int         `json:"total_used"`
	CreatedAt     time.Time   `json:"created_at"`
}

// ApplyVoucherRequest is the DTO for POST /api/vouchers/apply.
type ApplyVoucherRequest struct {
	VoucherCode string `json:"voucher_code"`
	OrderAmount int64  `json:"order_amount"`
}

// VoucherApplication is the discount breakdown returned to the client.
// Invariant: 0 <= DiscountAmount <= min(OrderAmount, MaxDiscount).
type VoucherApplication struct {
	VoucherCode    string `json:"voucher_code"`
	OrderAmount    int64  `json:"order_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalAmount    int64  `json:"final_amount"`
}
