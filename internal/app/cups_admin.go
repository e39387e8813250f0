package app

import (
	"context"
	"log"
	"strings"

	"github.com/sipsmart/cup-service/internal/domain"
)

// ImportCups bulk-provisions cups to a store with status available.
// Duplicate cup codes are skipped; the returned count is what was actually
// inserted.
func (s *Service) ImportCups(ctx context.Context, req domain.BulkCupImport) (int, error) {
	if len(req.CupIDs) == 0 {
		return 0, ErrEmptyCupImport
	}
	if req.Material != domain.MaterialPPPlastic && req.Material != domain.MaterialBambooFiber {
		req.Material = domain.MaterialPPPlastic
	}
	if _, err := s.repo.FindStoreByID(ctx, req.StoreID); err != nil {
		return 0, err
	}

	inserted, err := s.repo.CreateCupsBulk(ctx, req.StoreID, req.Material, req.CupIDs)
	if err != nil {
		return 0, err
	}
	log.Printf("level=info component=service flow=cup_import store_id=%s requested=%d inserted=%d", req.StoreID, len(req.CupIDs), inserted)
	return inserted, nil
}

// ReportCup handles the admin lifecycle side branches: loss/damage
// retirement, manual reinstatement of a retired cup, and closing the
// cleaning loop back to available.
func (s *Service) ReportCup(ctx context.Context, req domain.CupReportRequest) error {
	if strings.TrimSpace(req.CupID) == "" {
		return ErrInvalidCupID
	}

	switch req.Action {
	case "lost":
		return s.repo.RetireCupAtomic(ctx, req.CupID, domain.CupStatusLost, req.Reason)
	case "broken":
		return s.repo.RetireCupAtomic(ctx, req.CupID, domain.CupStatusBroken, req.Reason)
	case "reinstate":
		return s.repo.ReinstateCup(ctx, req.CupID)
	case "mark_cleaned":
		return s.repo.MarkCupCleaned(ctx, req.CupID)
	default:
		return ErrInvalidReportAction
	}
}
