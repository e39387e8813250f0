package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/sipsmart/cup-service/internal/domain"
)

// PayTrip prices a green-mobility trip against the database-owned fare
// schedule, debits the rider's wallet and records the trip atomically.
func (s *Service) PayTrip(ctx context.Context, userID uuid.UUID, req domain.TripRequest) (*domain.TripResult, error) {
	if req.DistanceKm <= 0 {
		return nil, ErrInvalidDistance
	}
	if req.VehicleType != domain.VehicleBus && req.VehicleType != domain.VehicleBike {
		return nil, ErrInvalidVehicleType
	}
	if err := s.consumeRateLimit(ctx, "trip", userID); err != nil {
		return nil, err
	}

	rate, err := s.repo.GetTransportRate(ctx, req.VehicleType)
	if err != nil {
		return nil, err
	}

	fare, commission := TransportFare(req.DistanceKm, rate)
	trip := &domain.Trip{
		ID:          uuid.New(),
		UserID:      userID,
		VehicleType: req.VehicleType,
		DistanceKm:  req.DistanceKm,
		Fare:        fare,
		Commission:  commission,
		CO2SavedKg:  CO2SavedKg(req.DistanceKm, req.VehicleType),
	}
	if err := s.repo.RecordTripAtomic(ctx, trip); err != nil {
		return nil, err
	}

	log.Printf("level=info component=service flow=trip outcome=success user_id=%s vehicle=%s distance_km=%.2f fare=%d",
		userID, req.VehicleType, req.DistanceKm, fare)

	return &domain.TripResult{
		TripID:     trip.ID,
		Fare:       fare,
		Commission: commission,
		CO2SavedKg: trip.CO2SavedKg,
	}, nil
}

// ImpactSummary assembles the display-only ESG equivalents for a user's
// lifetime activity: cups saved at return time plus trip distance.
func (s *Service) ImpactSummary(ctx context.Context, userID uuid.UUID) (*domain.ImpactSummary, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	distanceKm, err := s.repo.UserTripDistanceKm(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := ESGEquivalents(user.CupsSaved, distanceKm)
	return &summary, nil
}
