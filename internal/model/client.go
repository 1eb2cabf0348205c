package model

import "time"

// Client represents a subscriber dossier as stored in the `clients` table.
// It carries the civil identity and contact details used on invoices and
// reports, separate from the User login account. CIN is the national
// identity card number and is unique when present.
type Client struct {
	ID        uint64    `json:"id"`
	LastName  string    `json:"nom"`
	FirstName string    `json:"prenom"`
	CIN       *string   `json:"cin,omitempty"`
	Phone     string    `json:"telephone"`
	Email     *string   `json:"email,omitempty"`
	Address   string    `json:"adresse_principale"`
	District  *string   `json:"quartier,omitempty"`
	City      string    `json:"ville"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
