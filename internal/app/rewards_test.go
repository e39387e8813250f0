package app

import (
	"math"
	"testing"

	"github.com/sipsmart/cup-service/internal/domain"
)

func TestGreenPoints(t *testing.T) {
	if got := GreenPoints(false, 50, 20); got != 50 {
		t.Fatalf("expected 50 on-time points, got %d", got)
	}
	if got := GreenPoints(true, 50, 20); got != 20 {
		t.Fatalf("expected 20 overdue points, got %d", got)
	}
}

func TestTransportFare(t *testing.T) {
	rate := &domain.TransportRate{
		VehicleType:       domain.VehicleBus,
		BaseFare:          5000,
		PerKm:             1500,
		CommissionPercent: 8,
	}

	fare, commission := TransportFare(4.5, rate)
	if fare != 11750 {
		t.Fatalf("expected fare 11750, got %d", fare)
	}
	if commission != 940 {
		t.Fatalf("expected commission 940, got %d", commission)
	}

	// Negative distance is clamped to zero, leaving the base fare.
	fare, _ = TransportFare(-3, rate)
	if fare != 5000 {
		t.Fatalf("expected base fare for clamped distance, got %d", fare)
	}
}

func TestVoucherDiscount(t *testing.T) {
	cap50k := int64(50000)
	tests := []struct {
		name        string
		orderAmount int64
		voucher     domain.Voucher
		want        int64
	}{
		{
			name:        "percent voucher",
			orderAmount: 200000,
			voucher:     domain.Voucher{Type: domain.VoucherPercent, Value: 10},
			want:        20000,
		},
		{
			name:        "percent voucher capped at max discount",
			orderAmount: 1000000,
			voucher:     domain.Voucher{Type: domain.VoucherPercent, Value: 10, MaxDiscount: &cap50k},
			want:        50000,
		},
		{
			name:        "fixed voucher",
			orderAmount: 200000,
			voucher:     domain.Voucher{Type: domain.VoucherFixed, Value: 30000},
			want:        30000,
		},
		{
			name:        "fixed voucher clamped to order amount",
			orderAmount: 15000,
			voucher:     domain.Voucher{Type: domain.VoucherFixed, Value: 30000},
			want:        15000,
		},
		{
			name:        "negative value clamps to zero",
			orderAmount: 15000,
			voucher:     domain.Voucher{Type: domain.VoucherFixed, Value: -500},
			want:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VoucherDiscount(tt.orderAmount, &tt.voucher)
			if got != tt.want {
				t.Fatalf("expected discount %d, got %d", tt.want, got)
			}
		})
	}
}

func TestSettlementNet(t *testing.T) {
	tests := []struct {
		name           string
		revenue        int64
		percent        float64
		fixedFee       int64
		contractType   string
		wantCommission int64
		wantNet        int64
	}{
		{
			name:           "revenue share contract",
			revenue:        4500000,
			percent:        10,
			contractType:   domain.ContractRevenueShare,
			wantCommission: 450000,
			wantNet:        4050000,
		},
		{
			name:           "fixed fee contract takes no commission",
			revenue:        4500000,
			percent:        10,
			fixedFee:       300000,
			contractType:   domain.ContractFixedFee,
			wantCommission: 0,
			wantNet:        4200000,
		},
		{
			name:           "hybrid contract takes both",
			revenue:        4500000,
			percent:        10,
			fixedFee:       300000,
			contractType:   domain.ContractHybrid,
			wantCommission: 450000,
			wantNet:        3750000,
		},
		{
			name:           "zero revenue",
			revenue:        0,
			percent:        10,
			contractType:   domain.ContractRevenueShare,
			wantCommission: 0,
			wantNet:        0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commission, net := SettlementNet(tt.revenue, tt.percent, tt.fixedFee, tt.contractType)
			if commission != tt.wantCommission {
				t.Fatalf("expected commission %d, got %d", tt.wantCommission, commission)
			}
			if net != tt.wantNet {
				t.Fatalf("expected net %d, got %d", tt.wantNet, net)
			}
		})
	}
}

func TestCO2SavedKg(t *testing.T) {
	if got := CO2SavedKg(10, domain.VehicleBus); math.Abs(got-1.2) > 1e-9 {
		t.Fatalf("expected 1.2 kg for 10km by bus, got %f", got)
	}
	if got := CO2SavedKg(10, domain.VehicleBike); math.Abs(got-1.5) > 1e-9 {
		t.Fatalf("expected 1.5 kg for 10km by bike, got %f", got)
	}
}

func TestESGEquivalents(t *testing.T) {
	summary := ESGEquivalents(100, 50)

	if summary.CupsSaved != 100 {
		t.Fatalf("expected 100 cups saved, got %d", summary.CupsSaved)
	}
	if math.Abs(summary.PlasticSavedG-1750) > 1e-9 {
		t.Fatalf("expected 1750g plastic saved, got %f", summary.PlasticSavedG)
	}
	// 100 cups * 30g + 50km * 0.12kg = 3kg + 6kg
	if math.Abs(summary.CO2SavedKg-9) > 1e-9 {
		t.Fatalf("expected 9kg CO2 saved, got %f", summary.CO2SavedKg)
	}
	if math.Abs(summary.WaterSavedL-50) > 1e-9 {
		t.Fatalf("expected 50L water saved, got %f", summary.WaterSavedL)
	}
	if math.Abs(summary.TreeYears-9.0/19.0) > 1e-9 {
		t.Fatalf("expected %f tree years, got %f", 9.0/19.0, summary.TreeYears)
	}
}

func TestRankForPoints(t *testing.T) {
	tests := []struct {
		points int
		want   string
	}{
		{0, domain.RankSeedling},
		{199, domain.RankSeedling},
		{200, domain.RankSprout},
		{499, domain.RankSprout},
		{500, domain.RankTree},
		{1499, domain.RankTree},
		{1500, domain.RankForest},
	}

	for _, tt := range tests {
		if got := domain.RankForPoints(tt.points); got != tt.want {
			t.Fatalf("expected rank %s for %d points, got %s", tt.want, tt.points, got)
		}
	}
}
