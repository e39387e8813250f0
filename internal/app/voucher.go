package app

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sipsmart/cup-service/internal/domain"
	"github.com/sipsmart/cup-service/internal/store"
)

var (
	ErrVoucherInactive     = errors.New("voucher is not active")
	ErrVoucherNotStarted   = errors.New("voucher is not yet valid")
	ErrVoucherExpired      = errors.New("voucher has expired")
	ErrVoucherMinOrder     = errors.New("order amount below voucher minimum")
	ErrVoucherUserExceeded = errors.New("voucher usage limit reached for this user")
	ErrVoucherExhausted    = errors.New("voucher usage limit reached")
)

// ApplyVoucher validates a voucher against its gates and computes the
// discount breakdown for the given order amount. Validation order: lookup,
// active flag, date window, minimum order, total cap, per-user cap.
func (s *Service) ApplyVoucher(ctx context.Context, userID uuid.UUID, req domain.ApplyVoucherRequest) (*domain.VoucherApplication, error) {
	code := strings.TrimSpace(req.VoucherCode)
	if code == "" {
		return nil, ErrInvalidVoucherCode
	}
	if req.OrderAmount <= 0 {
		return nil, ErrInvalidOrderAmount
	}

	voucher, err := s.repo.FindVoucherByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !voucher.IsActive {
		return nil, ErrVoucherInactive
	}
	if now.Before(voucher.ValidFrom) {
		return nil, ErrVoucherNotStarted
	}
	if now.After(voucher.ValidUntil) {
		return nil, ErrVoucherExpired
	}
	if req.OrderAmount < voucher.MinOrderValue {
		return nil, ErrVoucherMinOrder
	}
	if voucher.TotalLimit > 0 && voucher.TotalUsed >= voucher.TotalLimit {
		return nil, ErrVoucherExhausted
	}
	if voucher.PerUserLimit > 0 {
		used, err := s.repo.CountVoucherUsesByUser(ctx, voucher.ID, userID)
		if err != nil {
			return nil, err
		}
		if used >= voucher.PerUserLimit {
			return nil, ErrVoucherUserExceeded
		}
	}

	discount := VoucherDiscount(req.OrderAmount, voucher)
	return &domain.VoucherApplication{
		VoucherCode:    voucher.Code,
		OrderAmount:    req.OrderAmount,
		DiscountAmount: discount,
		FinalAmount:    req.OrderAmount - discount,
	}, nil
}

// IsVoucherValidationError reports whether err is one of the voucher gate
// failures (as opposed to a lookup or infrastructure error).
func IsVoucherValidationError(err error) bool {
	return errors.Is(err, ErrVoucherInactive) ||
		errors.Is(err, ErrVoucherNotStarted) ||
		errors.Is(err, ErrVoucherExpired) ||
		errors.Is(err, ErrVoucherMinOrder) ||
		errors.Is(err, ErrVoucherUserExceeded) ||
		errors.Is(err, ErrVoucherExhausted) ||
		errors.Is(err, store.ErrVoucherNotFound)
}
