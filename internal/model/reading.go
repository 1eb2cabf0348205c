package model

import "time"

// Reading represents one row of the `releves` table: a timestamped
// observation of a meter's index recorded by a field agent. PreviousIndex
// and Consumption are always derived by the repository from the
// chronologically latest prior reading of the same meter; values supplied by
// callers for those fields are ignored.
//
// Fields:
//  ID            – auto-increment primary key.
//  MeterID       – meter the observation belongs to (column compteur_id).
//  AgentID       – account that recorded it (column agent_id).
//  CurrentIndex  – index shown on the dial (column index_actuel).
//  PreviousIndex – derived baseline (column index_precedent).
//  Consumption   – max(0, CurrentIndex − PreviousIndex) (column consommation).
//  ReadAt        – observation timestamp (column date_heure); defaults to
//                  submission time, may be backdated.
//  Anomaly       – agent-flagged irregularity (column anomalie).
//  Comment       – free text (column commentaire), optional.
//  Photo         – reference to an uploaded photo, optional.
//  Latitude      – GPS latitude where the reading was taken, optional.
//  Longitude     – GPS longitude, optional.
//  CreatedAt     – timestamp of creation.
//  UpdatedAt     – timestamp of last update.
type Reading struct {
	ID            uint64    `json:"id"`
	MeterID       string    `json:"compteur_id"`
	AgentID       uint64    `json:"agent_id"`
	CurrentIndex  float64   `json:"index_actuel"`
	PreviousIndex float64   `json:"index_precedent"`
	Consumption   float64   `json:"consommation"`
	ReadAt        time.Time `json:"date_heure"`
	Anomaly       bool      `json:"anomalie"`
	Comment       *string   `json:"commentaire,omitempty"`
	Photo         *string   `json:"photo,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Display joins populated on reads, never written back.
	Meter *MeterSummary `json:"compteur,omitempty"`
	Agent *UserSummary  `json:"agent,omitempty"`
}

// ReadingStats aggregates the ledger: totals, anomaly count and consumption
// figures rounded to two decimals.
type ReadingStats struct {
	Total            int64   `json:"total"`
	Anomalies        int64   `json:"anomalies"`
	TotalConsumption float64 `json:"consommation_totale"`
	AvgConsumption   float64 `json:"consommation_moyenne"`
}
