package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Point
		want    float64
		epsilon float64
	}{
		{"same point", Point{55.7558, 37.6173}, Point{55.7558, 37.6173}, 0, 1e-9},
		{"one degree of latitude", Point{0, 0}, Point{1, 0}, 111195, 1},
		{"moscow to saint petersburg", Point{55.7558, 37.6173}, Point{59.9343, 30.3351}, 633000, 2000},
		{"antipodes", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusMeters, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.a, tt.b)
			if math.Abs(got-tt.want) > tt.epsilon {
				t.Fatalf("Haversine() = %.1f, want %.1f ± %.1f", got, tt.want, tt.epsilon)
			}
			if back := Haversine(tt.b, tt.a); math.Abs(back-got) > 1e-6 {
				t.Fatalf("distance not symmetric: %f vs %f", got, back)
			}
		})
	}
}

func TestHaversine_Antipodal(t *testing.T) {
	for _, pair := range [][2]Point{
		{{0, 0}, {0, 180}},
		{{90, 0}, {-90, 0}},
		{{45, 10}, {-45, -170}},
	} {
		d := Haversine(pair[0], pair[1])
		if math.IsNaN(d) || math.Abs(d-math.Pi*EarthRadiusMeters) > 1 {
			t.Fatalf("Haversine(%v, %v) = %f, want half circumference", pair[0], pair[1], d)
		}
	}
}

func TestWithin_Deterministic(t *testing.T) {
	campus := Point{Lat: 55.0, Lon: 37.0}
	near := Point{Lat: 55.0005, Lon: 37.0} // ~55m north

	in1, d1 := Within(near, campus, 100)
	in2, d2 := Within(near, campus, 100)
	if !in1 || in1 != in2 || d1 != d2 {
		t.Fatalf("same inputs gave different answers: %v/%v %f/%f", in1, in2, d1, d2)
	}
	if in, _ := Within(near, campus, 50); in {
		t.Fatal("55m away must be outside a 50m radius")
	}
}

func TestPoint_Validate(t *testing.T) {
	for _, p := range []Point{{91, 0}, {-90.01, 0}, {0, 180.5}, {0, -181}, {math.NaN(), 0}} {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%v) = nil, want error", p)
		}
	}
	if err := (Point{-90, 180}).Validate(); err != nil {
		t.Fatalf("boundary values must be valid: %v", err)
	}
}
