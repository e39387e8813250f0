/**
 * @description
 * Pure calculators for fees, rewards and display-only environmental
 * equivalents. Nothing here touches the database or produces side effects;
 * every function maps inputs to a numeric result.
 */

package app

import (
	"math"

	"github.com/sipsmart/cup-service/internal/domain"
)

// Per-unit environmental equivalents for a single avoided disposable cup.
// Display figures only; intentionally approximate and never part of any
// money movement.
const (
	plasticPerCupG   = 17.5
	co2PerCupG       = 30.0
	waterPerCupL     = 0.5
	energyPerCupKWh  = 0.03
	co2PerTreeYearKg = 19.0
)

// GreenPoints returns the points award for a completed return: the on-time
// figure when the cup came back by its due time, the reduced figure when it
// was overdue.
func GreenPoints(isOverdue bool, onTimePoints, overduePoints int) int {
	if isOverdue {
		return overduePoints
	}
	return onTimePoints
}

// TransportFare prices a trip against a fare schedule row: base fare plus
// per-km distance, with the partner commission carved out of the total.
// Returns (fare, commission).
func TransportFare(distanceKm float64, rate *domain.TransportRate) (int64, int64) {
	if distanceKm < 0 {
		distanceKm = 0
	}
	fare := rate.BaseFare + int64(math.Round(distanceKm*float64(rate.PerKm)))
	commission := int64(math.Round(float64(fare) * rate.CommissionPercent / 100.0))
	return fare, commission
}

// CO2SavedKg estimates avoided emissions for a trip versus a private car.
func CO2SavedKg(distanceKm float64, vehicleType domain.VehicleType) float64 {
	switch vehicleType {
	case domain.VehicleBike:
		return distanceKm * domain.CO2FactorBikeKgPerKm
	default:
		return distanceKm * domain.CO2FactorBusKgPerKm
	}
}

// VoucherDiscount computes the discount for an already-validated voucher.
// Percent vouchers are capped at MaxDiscount when set; every discount is
// clamped to the order amount so the final payable never goes negative.
func VoucherDiscount(orderAmount int64, voucher *domain.Voucher) int64 {
	var discount int64
	switch voucher.Type {
	case domain.VoucherPercent:
		discount = int64(math.Round(float64(orderAmount) * float64(voucher.Value) / 100.0))
		if voucher.MaxDiscount != nil && discount > *voucher.MaxDiscount {
			discount = *voucher.MaxDiscount
		}
	case domain.VoucherFixed:
		discount = voucher.Value
	}
	if discount < 0 {
		discount = 0
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	return discount
}

// SettlementNet computes the commission and net payable for a batch.
// Commission applies only to revenue_share and hybrid contracts.
func SettlementNet(totalRevenue int64, commissionPercent float64, fixedFee int64, contractType string) (commission int64, net int64) {
	if contractType == domain.ContractRevenueShare || contractType == domain.ContractHybrid {
		commission = int64(math.Round(float64(totalRevenue) * commissionPercent / 100.0))
	}
	net = totalRevenue - commission - fixedFee
	return commission, net
}

// ESGEquivalents converts lifetime activity into display equivalents.
func ESGEquivalents(cupsSaved int, distanceKm float64) domain.ImpactSummary {
	cupCO2Kg := float64(cupsSaved) * co2PerCupG / 1000.0
	tripCO2Kg := distanceKm * domain.CO2FactorBusKgPerKm
	totalCO2 := cupCO2Kg + tripCO2Kg
	return domain.ImpactSummary{
		CupsSaved:      cupsSaved,
		DistanceKm:     distanceKm,
		PlasticSavedG:  float64(cupsSaved) * plasticPerCupG,
		CO2SavedKg:     totalCO2,
		WaterSavedL:    float64(cupsSaved) * waterPerCupL,
		EnergySavedKWh: float64(cupsSaved) * energyPerCupKWh,
		TreeYears:      totalCO2 / co2PerTreeYearKg,
	}
}
