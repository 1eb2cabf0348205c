package model

import "time"

// Fluid types carried by a meter, matching the `type_fluide` enum of the
// `compteurs` table. A meter measures exactly one fluid for its whole life.
const (
	FluidWater       = "WATER"
	FluidElectricity = "ELECTRICITY"
)

// ValidFluidType reports whether s is a recognised fluid type.
func ValidFluidType(s string) bool {
	return s == FluidWater || s == FluidElectricity
}

// Meter represents a water or electricity meter as stored in the `compteurs`
// table. The primary key is a human-readable string assigned at
// registration (e.g. COMP-2026-001) and is immutable afterwards. Meters are
// never physically deleted: deactivation flips Active to false so historical
// readings keep a valid reference.
//
// Fields:
//  MeterID     – string primary key (column id_compteur), format PREFIX-YEAR-SEQ.
//  UserID      – owning subscriber account (role USER).
//  FluidType   – WATER or ELECTRICITY (column type_fluide).
//  Address     – full street address (column adresse).
//  District    – neighbourhood (column quartier), optional.
//  City        – city (column ville).
//  Latitude    – GPS latitude, optional.
//  Longitude   – GPS longitude, optional.
//  InstalledAt – installation date (column date_installation), optional.
//  Active      – false once deactivated.
//  CreatedAt   – timestamp of creation.
//  UpdatedAt   – timestamp of last update.
type Meter struct {
	MeterID     string     `json:"id_compteur"`
	UserID      uint64     `json:"user_id"`
	FluidType   string     `json:"type_fluide"`
	Address     string     `json:"adresse"`
	District    *string    `json:"quartier,omitempty"`
	City        string     `json:"ville"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	InstalledAt *time.Time `json:"date_installation,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Owner is populated on list/detail reads as a display join; it is
	// never written back.
	Owner *UserSummary `json:"user,omitempty"`
}

// MeterSummary is the reduced meter view embedded in reading responses.
type MeterSummary struct {
	MeterID   string  `json:"id_compteur"`
	FluidType string  `json:"type_fluide"`
	Address   string  `json:"adresse"`
	District  *string `json:"quartier,omitempty"`
}

// MeterStats aggregates plain counts over the meter registry.
type MeterStats struct {
	Total       int64 `json:"total"`
	Water       int64 `json:"eau"`
	Electricity int64 `json:"electricite"`
	Active      int64 `json:"actifs"`
	Inactive    int64 `json:"inactifs"`
}
