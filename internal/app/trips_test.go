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

type tripRepoStub struct {
	store.Repository

	rate *domain.TransportRate
	user *domain.User

	distanceKm   float64
	recordedTrip *domain.Trip
}

func (s *tripRepoStub) GetTransportRate(ctx context.Context, vehicleType domain.VehicleType) (*domain.TransportRate, error) {
	if s.rate == nil {
		return nil, store.ErrRateNotFound
	}
	return s.rate, nil
}

func (s *tripRepoStub) RecordTripAtomic(ctx context.Context, trip *domain.Trip) error {
	s.recordedTrip = trip
	return nil
}

func (s *tripRepoStub) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	if s.user == nil {
		return nil, store.ErrUserNotFound
	}
	return s.user, nil
}

func (s *tripRepoStub) UserTripDistanceKm(ctx context.Context, userID uuid.UUID) (float64, error) {
	return s.distanceKm, nil
}

func TestPayTrip_Success(t *testing.T) {
	repo := &tripRepoStub{
		rate: &domain.TransportRate{
			VehicleType:       domain.VehicleBus,
			BaseFare:          5000,
			PerKm:             1500,
			CommissionPercent: 8,
		},
	}
	svc := borrowTestService(repo, time.Now())

	result, err := svc.PayTrip(context.Background(), uuid.New(), domain.TripRequest{
		DistanceKm:  4.5,
		VehicleType: domain.VehicleBus,
	})
	if err != nil {
		t.Fatalf("expected trip payment to succeed, got %v", err)
	}
	if result.Fare != 11750 {
		t.Fatalf("expected fare 11750, got %d", result.Fare)
	}
	if repo.recordedTrip == nil {
		t.Fatal("expected trip to be recorded")
	}
	if repo.recordedTrip.Fare != result.Fare {
		t.Fatal("expected recorded fare to match returned fare")
	}
}

func TestPayTrip_InputValidation(t *testing.T) {
	svc := borrowTestService(&tripRepoStub{}, time.Now())

	if _, err := svc.PayTrip(context.Background(), uuid.New(), domain.TripRequest{DistanceKm: 0, VehicleType: domain.VehicleBus}); !errors.Is(err, ErrInvalidDistance) {
		t.Fatalf("expected invalid distance error, got %v", err)
	}
	if _, err := svc.PayTrip(context.Background(), uuid.New(), domain.TripRequest{DistanceKm: 3, VehicleType: "scooter"}); !errors.Is(err, ErrInvalidVehicleType) {
		t.Fatalf("expected invalid vehicle error, got %v", err)
	}
}

func TestImpactSummary_CombinesCupsAndTrips(t *testing.T) {
	userID := uuid.New()
	repo := &tripRepoStub{
		user:       &domain.User{ID: userID, CupsSaved: 100},
		distanceKm: 50,
	}
	svc := borrowTestService(repo, time.Now())

	summary, err := svc.ImpactSummary(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected impact summary to succeed, got %v", err)
	}
	if summary.CupsSaved != 100 {
		t.Fatalf("expected 100 cups saved, got %d", summary.CupsSaved)
	}
	if summary.DistanceKm != 50 {
		t.Fatalf("expected 50km distance, got %f", summary.DistanceKm)
	}
}

type cupAdminRepoStub struct {
	store.Repository

	shop *domain.Store

	inserted      int
	retiredStatus domain.CupStatus
	reinstated    bool
	cleaned       bool
}

func (s *cupAdminRepoStub) FindStoreByID(ctx context.Context, storeID uuid.UUID) (*domain.Store, error) {
	if s.shop == nil {
		return nil, store.ErrStoreNotFound
	}
	return s.shop, nil
}

func (s *cupAdminRepoStub) CreateCupsBulk(ctx context.Context, storeID uuid.UUID, material domain.CupMaterial, cupIDs []string) (int, error) {
	return s.inserted, nil
}

func (s *cupAdminRepoStub) RetireCupAtomic(ctx context.Context, cupID string, status domain.CupStatus, reason string) error {
	s.retiredStatus = status
	return nil
}

func (s *cupAdminRepoStub) ReinstateCup(ctx context.Context, cupID string) error {
	s.reinstated = true
	return nil
}

func (s *cupAdminRepoStub) MarkCupCleaned(ctx context.Context, cupID string) error {
	s.cleaned = true
	return nil
}

func TestImportCups_SkipsDuplicates(t *testing.T) {
	repo := &cupAdminRepoStub{
		shop:     &domain.Store{ID: uuid.New()},
		inserted: 2,
	}
	svc := borrowTestService(repo, time.Now())

	created, err := svc.ImportCups(context.Background(), domain.BulkCupImport{
		StoreID:  repo.shop.ID,
		Material: domain.MaterialPPPlastic,
		CupIDs:   []string{"11111111", "22222222", "11111111"},
	})
	if err != nil {
		t.Fatalf("expected import to succeed, got %v", err)
	}
	if created != 2 {
		t.Fatalf("expected 2 inserted cups, got %d", created)
	}
}

func TestImportCups_EmptyRejected(t *testing.T) {
	svc := borrowTestService(&cupAdminRepoStub{}, time.Now())

	if _, err := svc.ImportCups(context.Background(), domain.BulkCupImport{StoreID: uuid.New()}); !errors.Is(err, ErrEmptyCupImport) {
		t.Fatalf("expected empty import error, got %v", err)
	}
}

func TestReportCup_ActionDispatch(t *testing.T) {
	tests := []struct {
		action string
		check  func(t *testing.T, repo *cupAdminRepoStub)
	}{
		{
			action: "lost",
			check: func(t *testing.T, repo *cupAdminRepoStub) {
				if repo.retiredStatus != domain.CupStatusLost {
					t.Fatalf("expected lost retirement, got %s", repo.retiredStatus)
				}
			},
		},
		{
			action: "broken",
			check: func(t *testing.T, repo *cupAdminRepoStub) {
				if repo.retiredStatus != domain.CupStatusBroken {
					t.Fatalf("expected broken retirement, got %s", repo.retiredStatus)
				}
			},
		},
		{
			action: "reinstate",
			check: func(t *testing.T, repo *cupAdminRepoStub) {
				if !repo.reinstated {
					t.Fatal("expected reinstate call")
				}
			},
		},
		{
			action: "mark_cleaned",
			check: func(t *testing.T, repo *cupAdminRepoStub) {
				if !repo.cleaned {
					t.Fatal("expected mark-cleaned call")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			repo := &cupAdminRepoStub{}
			svc := borrowTestService(repo, time.Now())
			if err := svc.ReportCup(context.Background(), domain.CupReportRequest{CupID: "10293847", Action: tt.action}); err != nil {
				t.Fatalf("expected action %s to succeed, got %v", tt.action, err)
			}
			tt.check(t, repo)
		})
	}
}

func TestReportCup_UnknownActionRejected(t *testing.T) {
	svc := borrowTestService(&cupAdminRepoStub{}, time.Now())

	err := svc.ReportCup(context.Background(), domain.CupReportRequest{CupID: "10293847", Action: "vaporize"})
	if !errors.Is(err, ErrInvalidReportAction) {
		t.Fatalf("expected unknown action error, got %v", err)
	}
}
