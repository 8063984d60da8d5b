package model

import (
	"testing"
	"time"
)

func TestOverlapsHalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return base.Add(time.Duration(n) * time.Hour) }

	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Time
		want           bool
	}{
		{"disjoint", h(0), h(1), h(2), h(3), false},
		{"contained", h(0), h(4), h(1), h(2), true},
		{"partial", h(0), h(2), h(1), h(3), true},
		{"identical", h(0), h(2), h(0), h(2), true},
		{"touching end to start", h(0), h(2), h(2), h(4), false},
		{"touching start to end", h(2), h(4), h(0), h(2), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Overlaps(tc.s1, tc.e1, tc.s2, tc.e2); got != tc.want {
				t.Errorf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := Overlaps(tc.s2, tc.e2, tc.s1, tc.e1); got != tc.want {
				t.Errorf("Overlaps (swapped) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEmissionFactor(t *testing.T) {
	tests := []struct {
		fuel FuelType
		want float64
	}{
		{FuelDiesel, 1200},
		{FuelGasoline, 1000},
		{FuelHybrid, 400},
		{FuelElectric, 50},
		{FuelType("STEAM"), 0},
	}
	for _, tc := range tests {
		if got := (Vehicle{Fuel: tc.fuel}).EmissionFactor(); got != tc.want {
			t.Errorf("EmissionFactor(%s) = %v, want %v", tc.fuel, got, tc.want)
		}
	}
}

func TestVehicleEligible(t *testing.T) {
	tests := []struct {
		name string
		v    Vehicle
		want bool
	}{
		{"available idle", Vehicle{Status: VehicleAvailable, CapacityVolumeL: 5000}, true},
		{"available busy", Vehicle{Status: VehicleAvailable, CapacityVolumeL: 5000, Busy: true}, false},
		{"in service", Vehicle{Status: VehicleInService, CapacityVolumeL: 5000}, false},
		{"maintenance", Vehicle{Status: VehicleMaintenance, CapacityVolumeL: 5000}, false},
		{"no capacity", Vehicle{Status: VehicleAvailable}, false},
	}
	for _, tc := range tests {
		if got := tc.v.Eligible(); got != tc.want {
			t.Errorf("%s: Eligible = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestParseAutomationMode(t *testing.T) {
	for _, valid := range []string{"OFF", "EMERGENCIES_ONLY", "FULL"} {
		mode, err := ParseAutomationMode(valid)
		if err != nil {
			t.Fatalf("ParseAutomationMode(%q): %v", valid, err)
		}
		if string(mode) != valid {
			t.Errorf("ParseAutomationMode(%q) = %q", valid, mode)
		}
	}
	if _, err := ParseAutomationMode("full"); err == nil {
		t.Error("lowercase mode must be rejected")
	}
	if _, err := ParseAutomationMode(""); err == nil {
		t.Error("empty mode must be rejected")
	}
}

func TestTourneeStatusTerminal(t *testing.T) {
	if TourneePlanned.Terminal() || TourneeInProgress.Terminal() {
		t.Error("active statuses must not be terminal")
	}
	if !TourneeCompleted.Terminal() || !TourneeCancelled.Terminal() {
		t.Error("completed and cancelled must be terminal")
	}
}

func TestCoveredPointIDs(t *testing.T) {
	tour := Tournee{Steps: []RouteStep{
		{Order: 0, CollectionPointID: "cp1"},
		{Order: 1, CollectionPointID: ""},
		{Order: 2, CollectionPointID: "cp2"},
	}}
	got := tour.CoveredPointIDs()
	if len(got) != 2 || got[0] != "cp1" || got[1] != "cp2" {
		t.Errorf("CoveredPointIDs = %v", got)
	}
}
