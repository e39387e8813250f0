/**
 * @description
 * Settlement batch operations for the admin reconciliation surface: creating
 * a pending batch from aggregated store revenue, the forward-only
 * approve/payout transitions, the escrow summary and inventory
 * reconciliation.
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
)

var (
	ErrInvalidPeriod          = errors.New("period start must precede period end")
	ErrBatchNotPending        = errors.New("settlement batch is not pending")
	ErrBatchNotApproved       = errors.New("settlement batch is not approved")
	ErrMissingPaymentRef      = errors.New("payment reference is required")
	ErrInvalidSettlementInput = errors.New("missing settlement parameters")
)

// CreateSettlementBatch aggregates a store's completed transactions over the
// period and writes a pending batch. Commission defaults to the configured
// platform rate unless the partner contract sets its own.
func (s *Service) CreateSettlementBatch(ctx context.Context, storeID uuid.UUID, periodStart, periodEnd time.Time) (*domain.SettlementBatch, error) {
	if !periodStart.Before(periodEnd) {
		return nil, ErrInvalidPeriod
	}

	storeRec, err := s.repo.FindStoreByID(ctx, storeID)
	if err != nil {
		return nil, err
	}

	count, revenue, err := s.repo.AggregateStoreRevenue(ctx, storeID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate store revenue: %w", err)
	}

	commissionPercent := storeRec.CommissionPercent
	if commissionPercent <= 0 {
		commissionPercent = s.commissionPercent
	}
	commission, net := SettlementNet(revenue, commissionPercent, storeRec.FixedFee, storeRec.ContractType)

	batch := &domain.SettlementBatch{
		ID:                uuid.New(),
		PartnerID:         storeRec.PartnerID,
		StoreID:           storeID,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		TotalTransactions: count,
		TotalRevenue:      revenue,
		CommissionPercent: commissionPercent,
		CommissionAmount:  commission,
		FixedFee:          storeRec.FixedFee,
		NetPayable:        net,
		Status:            domain.SettlementPending,
	}
	if err := s.repo.CreateSettlementBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to create settlement batch: %w", err)
	}

	log.Printf("level=info component=service flow=settlement action=create batch_id=%s store_id=%s transactions=%d revenue=%d net=%d",
		batch.ID, storeID, count, revenue, net)
	return batch, nil
}

// ApproveSettlementBatch moves a pending batch to approved.
func (s *Service) ApproveSettlementBatch(ctx context.Context, batchID, adminID uuid.UUID) (*domain.SettlementBatch, error) {
	ok, err := s.repo.ApproveSettlementBatch(ctx, batchID, adminID)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Distinguish missing batches from wrong-state ones for diagnostics.
		if _, findErr := s.repo.FindSettlementBatchByID(ctx, batchID); findErr != nil {
			return nil, findErr
		}
		return nil, ErrBatchNotPending
	}
	log.Printf("level=info component=service flow=settlement action=approve batch_id=%s admin_id=%s", batchID, adminID)
	return s.repo.FindSettlementBatchByID(ctx, batchID)
}

// PayoutSettlementBatch moves an approved batch to paid with the payment
// reference recorded.
func (s *Service) PayoutSettlementBatch(ctx context.Context, batchID uuid.UUID, paymentReference string) (*domain.SettlementBatch, error) {
	if paymentReference == "" {
		return nil, ErrMissingPaymentRef
	}
	ok, err := s.repo.MarkSettlementBatchPaid(ctx, batchID, paymentReference)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, findErr := s.repo.FindSettlementBatchByID(ctx, batchID); findErr != nil {
			return nil, findErr
		}
		return nil, ErrBatchNotApproved
	}
	log.Printf("level=info component=service flow=settlement action=payout batch_id=%s payment_ref=%s", batchID, paymentReference)
	return s.repo.FindSettlementBatchByID(ctx, batchID)
}

// EscrowSummary reports the ring-fenced deposit total across open loans.
func (s *Service) EscrowSummary(ctx context.Context) (*domain.EscrowSummary, error) {
	return s.repo.EscrowSummary(ctx)
}

// ReconcileInventory recomputes a store's counters from the cups table and
// repairs any drift.
func (s *Service) ReconcileInventory(ctx context.Context, storeID uuid.UUID) ([]domain.InventoryDrift, error) {
	drift, err := s.repo.ReconcileStoreInventory(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		log.Printf("level=warn component=service flow=reconciliation msg=\"inventory drift repaired\" store_id=%s drifted_counters=%d", storeID, len(drift))
	}
	return drift, nil
}
