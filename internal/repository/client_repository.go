package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/yassineqb/si-releves/internal/model"
)

// ClientRepo persists subscriber dossiers in the `clients` table.
type ClientRepo struct{ DB *sql.DB }

func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{DB: db} }

var (
	ErrClientNotFound = errors.New("client not found")
	ErrCINExists      = errors.New("cin already exists")
)

const clientCols = "id,nom,prenom,cin,telephone,email,adresse_principale,quartier,ville,active,created_at,updated_at"

func scanClient(row interface{ Scan(...any) error }) (model.Client, error) {
	var (
		c        model.Client
		cin      sql.NullString
		email    sql.NullString
		district sql.NullString
	)
	err := row.Scan(&c.ID, &c.LastName, &c.FirstName, &cin, &c.Phone, &email,
		&c.Address, &district, &c.City, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	if cin.Valid {
		c.CIN = &cin.String
	}
	if email.Valid {
		c.Email = &email.String
	}
	if district.Valid {
		c.District = &district.String
	}
	return c, nil
}

// Create inserts a dossier. The CIN is unique when present; a duplicate
// maps to ErrCINExists so handlers can answer 409.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client) error {
	var cin, email, district any
	if c.CIN != nil && strings.TrimSpace(*c.CIN) != "" {
		cin = strings.ToUpper(strings.TrimSpace(*c.CIN))
	}
	if c.Email != nil && strings.TrimSpace(*c.Email) != "" {
		email = strings.ToLower(strings.TrimSpace(*c.Email))
	}
	if c.District != nil && strings.TrimSpace(*c.District) != "" {
		district = strings.TrimSpace(*c.District)
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO clients (nom, prenom, cin, telephone, email, adresse_principale, quartier, ville, active)
		 VALUES (?,?,?,?,?,?,?,?,1)`,
		normalizeLastName(c.LastName), normalizeFirstName(c.FirstName), cin, c.Phone, email, c.Address, district, c.City)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrCINExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = got
	return nil
}

// GetByID fetches a dossier by id.
func (r *ClientRepo) GetByID(ctx context.Context, id uint64) (model.Client, error) {
	c, err := scanClient(r.DB.QueryRowContext(ctx,
		"SELECT "+clientCols+" FROM clients WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return c, ErrClientNotFound
	}
	return c, err
}

// ClientFilter narrows List. Search matches name, CIN or phone as a
// substring, the way the front-desk lookup works.
type ClientFilter struct {
	Search string
	Active *bool
}

// List returns dossiers ordered by family then given name.
func (r *ClientRepo) List(ctx context.Context, f ClientFilter) ([]model.Client, error) {
	q := "SELECT " + clientCols + " FROM clients WHERE 1=1"
	args := []any{}
	if f.Search != "" {
		q += " AND (nom LIKE ? OR prenom LIKE ? OR cin LIKE ? OR telephone LIKE ?)"
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat, pat, pat)
	}
	if f.Active != nil {
		q += " AND active = ?"
		args = append(args, *f.Active)
	}
	q += " ORDER BY nom ASC, prenom ASC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []model.Client{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// Update writes mutable dossier fields; the caller merges the request onto
// the stored row first.
func (r *ClientRepo) Update(ctx context.Context, c *model.Client) error {
	var cin, email, district any
	if c.CIN != nil {
		cin = strings.ToUpper(strings.TrimSpace(*c.CIN))
	}
	if c.Email != nil {
		email = strings.ToLower(strings.TrimSpace(*c.Email))
	}
	if c.District != nil {
		district = *c.District
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE clients SET nom=?, prenom=?, cin=?, telephone=?, email=?, adresse_principale=?, quartier=?, ville=?, active=?
		 WHERE id=?`,
		c.LastName, c.FirstName, cin, c.Phone, email, c.Address, district, c.City, c.Active, c.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrCINExists
		}
		return err
	}
	_, _ = res.RowsAffected() // existence already verified by the caller's merge read
	return nil
}

// Deactivate soft-deletes a dossier.
func (r *ClientRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE clients SET active=0 WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM clients WHERE id=? LIMIT 1", id).Scan(&one)
		if err == sql.ErrNoRows {
			return ErrClientNotFound
		}
		return err
	}
	return nil
}
