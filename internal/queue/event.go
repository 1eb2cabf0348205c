// Package queue defines message payloads exchanged over the message broker
// and the background consumer feeding the ops log.
package queue

// ReadingRecordedEvent is published after a reading is persisted. It
// carries enough for downstream consumers (ops dashboard, analytics) to
// work without querying the primary database.
type ReadingRecordedEvent struct {
	ReadingID     uint64  `json:"reading_id"`
	MeterID       string  `json:"compteur_id"`
	FluidType     string  `json:"type_fluide,omitempty"`
	AgentID       uint64  `json:"agent_id"`
	AgentName     string  `json:"agent,omitempty"`
	CurrentIndex  float64 `json:"index_actuel"`
	PreviousIndex float64 `json:"index_precedent"`
	Consumption   float64 `json:"consommation"`
	Anomaly       bool    `json:"anomalie"`
	ReadAt        string  `json:"date_heure"`
	RecordedAt    string  `json:"recorded_at"`
}

// MeterRegisteredEvent is published after a meter is registered.
type MeterRegisteredEvent struct {
	MeterID      string `json:"id_compteur"`
	FluidType    string `json:"type_fluide"`
	UserID       uint64 `json:"user_id"`
	District     string `json:"quartier,omitempty"`
	City         string `json:"ville"`
	RegisteredAt string `json:"registered_at"`
}
