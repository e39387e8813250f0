package domain

import (
	"time"

	"github.com/google/uuid"
)

// VehicleType enumerates the green-mobility vehicles a trip can use.
type VehicleType string

const (
	VehicleBus  VehicleType = "bus"
	VehicleBike VehicleType = "bike"
)

// CO2 saved per km versus a private car, by vehicle. Display figures, not
// part of any money movement.
const (
	CO2FactorBusKgPerKm  = 0.12
	CO2FactorBikeKgPerKm = 0.15
)

// TransportRate is the fare schedule row for one vehicle type, owned by the
// database so operators can adjust pricing without a deploy.
type TransportRate struct {
	VehicleType       VehicleType `json:"vehicle_type"`
	BaseFare          int64       `json:"base_fare"`
	PerKm             int64       `json:"per_km"`
	CommissionPercent float64     `json:"commission_percent"`
}

// Trip is a paid green-mobility ride debited from the rider's wallet.
type Trip struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"user_id"`
	VehicleType VehicleType `json:"vehicle_type"`
	DistanceKm  float64     `json:"distance_km"`
	Fare        int64       `json:"fare"`
	Commission  int64       `json:"commission"`
	CO2SavedKg  float64     `json:"co2_saved_kg"`
	CreatedAt   time.Time   `json:"created_at"`
}

// TripRequest is the DTO for POST /api/trips.
type TripRequest struct {
	DistanceKm  float64     `json:"distance_km"`
	VehicleType VehicleType `json:"vehicle_type"`
}

// TripResult is the fare breakdown returned after a trip payment.
type TripResult struct {
	TripID     uuid.UUID `json:"trip_id"`
	Fare       int64     `json:"fare"`
	Commission int64     `json:"commission"`
	CO2SavedKg float64   `json:"co2_saved_kg"`
}

// ImpactSummary holds the display-only ESG equivalents for a user's lifetime
// activity. The per-unit constants are intentionally approximate.
type ImpactSummary struct {
	CupsSaved      int     `json:"cups_saved"`
	DistanceKm     float64 `json:"distance_km"`
	PlasticSavedG  float64 `json:"plastic_saved_g"`
	CO2SavedKg     float64 `json:"co2_saved_kg"`
	WaterSavedL    float64 `json:"water_saved_l"`
	EnergySavedKWh float64 `json:"energy_saved_kwh"`
	TreeYears      float64 `json:"tree_years"`
}
