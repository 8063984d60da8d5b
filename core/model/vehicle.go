package model

import "fmt"

// VehicleStatus is the operational state of a collection vehicle.
type VehicleStatus string

const (
	VehicleAvailable   VehicleStatus = "AVAILABLE"
	VehicleInService   VehicleStatus = "IN_SERVICE"
	VehicleMaintenance VehicleStatus = "MAINTENANCE"
)

// FuelType drives the CO2 estimate of a planned tournee.
type FuelType string

const (
	FuelDiesel   FuelType = "DIESEL"
	FuelGasoline FuelType = "GASOLINE"
	FuelHybrid   FuelType = "HYBRID"
	FuelElectric FuelType = "ELECTRIC"
)

// Vehicle represents a collection truck of the fleet.
type Vehicle struct {
	ID              string
	Plate           string
	Status          VehicleStatus
	CapacityVolumeL float64
	Fuel            FuelType
	// Busy is set the instant the vehicle is committed to a planned
	// tournee and cleared when that tournee completes or is deleted.
	Busy bool
}

// Eligible reports whether the vehicle can be committed to a new tournee.
// (AVAILABLE, busy=false) is the sole eligibility predicate for planning.
func (v Vehicle) Eligible() bool {
	return v.Status == VehicleAvailable && !v.Busy && v.CapacityVolumeL > 0
}

// Validate checks that the vehicle configuration is sound.
func (v Vehicle) Validate() error {
	if v.CapacityVolumeL <= 0 {
		return fmt.Errorf("vehicle capacity must be positive")
	}
	return nil
}

// EmissionFactor returns the estimated emission in gCO2 per km for the
// vehicle's fuel type.
func (v Vehicle) EmissionFactor() float64 {
	switch v.Fuel {
	case FuelDiesel:
		return 1200
	case FuelGasoline:
		return 1000
	case FuelHybrid:
		return 400
	case FuelElectric:
		return 50
	default:
		return 0
	}
}
