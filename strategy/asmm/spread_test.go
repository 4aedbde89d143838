package asmm

import (
	"math"
	"testing"
)

func TestVolHalfSpread(t *testing.T) {
	tests := []struct {
		name  string
		sigma float64
		want  float64
	}{
		{"zero vol floors", 0, minVolHalfSpread},
		{"NaN vol floors", math.NaN(), minVolHalfSpread},
		{"huge vol caps", 1e9, maxVolHalfSpread},
		{"regular", 0.3, 0.5 * 0.3 * 1.1 / 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VolHalfSpread(tt.sigma); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("VolHalfSpread(%v) = %v, want %v", tt.sigma, got, tt.want)
			}
		})
	}
}

func TestFallbackQuotesSkew(t *testing.T) {
	flat := FallbackQuotes(100, 0, 400, 5, 0.1, 0.8, 0.01)
	if flat.Bid >= flat.Ask {
		t.Fatalf("crossed: %+v", flat)
	}
	if flat.Reservation != 100 {
		t.Errorf("flat reservation = %v, want 100", flat.Reservation)
	}

	long := FallbackQuotes(100, 400, 400, 5, 0.1, 0.8, 0.01)
	if long.Reservation >= flat.Reservation {
		t.Errorf("long inventory should skew reservation down: %v vs %v", long.Reservation, flat.Reservation)
	}
	want := 100 - 0.8*flat.HalfSpread
	if math.Abs(long.Reservation-want) > 1e-9 {
		t.Errorf("long reservation = %v, want %v", long.Reservation, want)
	}

	// 超过限额按限额计
	over := FallbackQuotes(100, 4000, 400, 5, 0.1, 0.8, 0.01)
	if math.Abs(over.Reservation-long.Reservation) > 1e-12 {
		t.Errorf("skew should saturate at the limit: %v vs %v", over.Reservation, long.Reservation)
	}
}

func TestFallbackQuotesDegenerate(t *testing.T) {
	q := FallbackQuotes(math.NaN(), 10, 0, math.Inf(1), math.NaN(), math.NaN(), 0)
	if math.IsNaN(q.Bid) || math.IsNaN(q.Ask) || q.Bid >= q.Ask {
		t.Fatalf("degenerate inputs produced %+v", q)
	}
}
