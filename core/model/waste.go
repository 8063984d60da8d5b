package model

import "time"

// TrashCategory identifies the kind of waste a bin collects.
type TrashCategory string

const (
	CategoryPlastic TrashCategory = "PLASTIC"
	CategoryOrganic TrashCategory = "ORGANIC"
	CategoryGlass   TrashCategory = "GLASS"
	CategoryPaper   TrashCategory = "PAPER"
)

// AllCategories lists every category handled by the full planning cycle.
func AllCategories() []TrashCategory {
	return []TrashCategory{CategoryPlastic, CategoryOrganic, CategoryGlass, CategoryPaper}
}

// GeoPoint is a WGS84 location encoded as [lon, lat], matching the wire
// format expected by the route optimizer.
type GeoPoint [2]float64

// Lon returns the longitude component.
func (p GeoPoint) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p GeoPoint) Lat() float64 { return p[1] }

// Bin is a single waste container installed at a collection point.
type Bin struct {
	ID                string
	CollectionPointID string
	Category          TrashCategory
	CapacityL         float64
	Active            bool
	// LastCollectedAt is nil until the bin has been emptied at least once.
	LastCollectedAt *time.Time
}

// BinReading is one telemetry sample pushed by a bin sensor.
type BinReading struct {
	BinID      string    `json:"bin_id"`
	FillPct    float64   `json:"fill_pct"`
	BatteryPct float64   `json:"battery_pct"`
	TempC      float64   `json:"temp_c"`
	Timestamp  time.Time `json:"ts"`
}

// CollectionPoint is a physical site hosting one or more bins.
type CollectionPoint struct {
	ID       string
	Name     string
	Location GeoPoint
	Active   bool
	Bins     []Bin
}

// Depot is the start and end anchor of every tournee.
type Depot struct {
	ID       string
	Name     string
	Location GeoPoint
	Main     bool
}
