package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/yassineqb/si-releves/internal/model"
)

// MeterRepo persists meters in the `compteurs` table and owns the
// registration sequence: each meter gets the next PREFIX-YEAR-SEQ id for the
// current year at insert time.
type MeterRepo struct {
	DB     *sql.DB
	Prefix string // id prefix, e.g. "COMP"
}

func NewMeterRepo(db *sql.DB, prefix string) *MeterRepo {
	return &MeterRepo{DB: db, Prefix: prefix}
}

var ErrMeterNotFound = errors.New("meter not found")

// registerRetries bounds the duplicate-key retry loop in Create. Two
// registrations racing past the locking read resolve on the unique primary
// key; more than a couple of retries means something else is wrong.
const registerRetries = 3

const meterCols = "id_compteur,user_id,type_fluide,adresse,quartier,ville,latitude,longitude,date_installation,active,created_at,updated_at"

func scanMeter(row interface{ Scan(...any) error }) (model.Meter, error) {
	var (
		m           model.Meter
		district    sql.NullString
		lat, lng    sql.NullFloat64
		installedAt sql.NullTime
	)
	err := row.Scan(&m.MeterID, &m.UserID, &m.FluidType, &m.Address, &district,
		&m.City, &lat, &lng, &installedAt, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	if district.Valid {
		m.District = &district.String
	}
	if lat.Valid {
		m.Latitude = &lat.Float64
	}
	if lng.Valid {
		m.Longitude = &lng.Float64
	}
	if installedAt.Valid {
		t := installedAt.Time
		m.InstalledAt = &t
	}
	return m, nil
}

// Create registers a meter. The id is derived from the highest id already
// issued this year; the max-scan and the insert run in one transaction with
// a locking read so two concurrent registrations cannot observe the same
// maximum. If a racing transaction still wins the id, the duplicate-key
// failure is retried with a freshly computed sequence.
func (r *MeterRepo) Create(ctx context.Context, m *model.Meter) error {
	for attempt := 0; attempt < registerRetries; attempt++ {
		err := r.tryCreate(ctx, m)
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return err
		}
	}
	return ErrConflict
}

func (r *MeterRepo) tryCreate(ctx context.Context, m *model.Meter) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	year := currentYear()
	var lastID string
	// Length before value: ids compare as strings, and past the padding
	// boundary "COMP-2026-999" sorts above "COMP-2026-1000".
	err = tx.QueryRowContext(ctx,
		"SELECT id_compteur FROM compteurs WHERE id_compteur LIKE ? ORDER BY LENGTH(id_compteur) DESC, id_compteur DESC LIMIT 1 FOR UPDATE",
		meterIDYearPrefix(r.Prefix, year)+"%").Scan(&lastID)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	seq, err := nextSequence(lastID)
	if err != nil {
		return err
	}
	m.MeterID = formatMeterID(r.Prefix, year, seq)

	var district any
	if m.District != nil && strings.TrimSpace(*m.District) != "" {
		district = strings.TrimSpace(*m.District)
	}
	var lat, lng any
	if m.Latitude != nil {
		lat = *m.Latitude
	}
	if m.Longitude != nil {
		lng = *m.Longitude
	}
	installedAt := time.Now().UTC()
	if m.InstalledAt != nil {
		installedAt = *m.InstalledAt
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO compteurs (id_compteur, user_id, type_fluide, adresse, quartier, ville, latitude, longitude, date_installation, active)
		 VALUES (?,?,?,?,?,?,?,?,?,1)`,
		m.MeterID, m.UserID, m.FluidType, m.Address, district, m.City, lat, lng, installedAt)
	if err != nil {
		return err
	}

	got, err := scanMeter(tx.QueryRowContext(ctx,
		"SELECT "+meterCols+" FROM compteurs WHERE id_compteur=?", m.MeterID))
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	*m = got
	return nil
}

// GetByID fetches a meter by its string id.
func (r *MeterRepo) GetByID(ctx context.Context, meterID string) (model.Meter, error) {
	m, err := scanMeter(r.DB.QueryRowContext(ctx,
		"SELECT "+meterCols+" FROM compteurs WHERE id_compteur=? LIMIT 1", meterID))
	if err == sql.ErrNoRows {
		return m, ErrMeterNotFound
	}
	return m, err
}

// MeterFilter narrows List. Zero values mean "no constraint". District
// matches as a substring, the way the back office search box behaves.
type MeterFilter struct {
	FluidType string
	District  string
	Active    *bool
	UserID    uint64
}

// List returns meters matching the filter, newest first, each enriched with
// a summary of the owning subscriber account.
func (r *MeterRepo) List(ctx context.Context, f MeterFilter) ([]model.Meter, error) {
	q := `SELECT c.id_compteur,c.user_id,c.type_fluide,c.adresse,c.quartier,c.ville,
	             c.latitude,c.longitude,c.date_installation,c.active,c.created_at,c.updated_at,
	             u.id,u.nom,u.prenom,u.email
	      FROM compteurs c
	      LEFT JOIN utilisateurs u ON u.id = c.user_id
	      WHERE 1=1`
	args := []any{}
	if f.FluidType != "" {
		q += " AND c.type_fluide = ?"
		args = append(args, f.FluidType)
	}
	if f.District != "" {
		q += " AND c.quartier LIKE ?"
		args = append(args, "%"+f.District+"%")
	}
	if f.Active != nil {
		q += " AND c.active = ?"
		args = append(args, *f.Active)
	}
	if f.UserID != 0 {
		q += " AND c.user_id = ?"
		args = append(args, f.UserID)
	}
	q += " ORDER BY c.created_at DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meters := []model.Meter{}
	for rows.Next() {
		var (
			m           model.Meter
			district    sql.NullString
			lat, lng    sql.NullFloat64
			installedAt sql.NullTime
			ownerID     sql.NullInt64
			ownerLast   sql.NullString
			ownerFirst  sql.NullString
			ownerEmail  sql.NullString
		)
		err := rows.Scan(&m.MeterID, &m.UserID, &m.FluidType, &m.Address, &district,
			&m.City, &lat, &lng, &installedAt, &m.Active, &m.CreatedAt, &m.UpdatedAt,
			&ownerID, &ownerLast, &ownerFirst, &ownerEmail)
		if err != nil {
			return nil, err
		}
		if district.Valid {
			m.District = &district.String
		}
		if lat.Valid {
			m.Latitude = &lat.Float64
		}
		if lng.Valid {
			m.Longitude = &lng.Float64
		}
		if installedAt.Valid {
			t := installedAt.Time
			m.InstalledAt = &t
		}
		if ownerID.Valid {
			m.Owner = &model.UserSummary{
				ID:        uint64(ownerID.Int64),
				LastName:  ownerLast.String,
				FirstName: ownerFirst.String,
				Email:     ownerEmail.String,
			}
		}
		meters = append(meters, m)
	}
	return meters, rows.Err()
}

// Update writes mutable meter fields. MeterID and UserID are immutable once
// assigned; the caller merges the request onto the stored row first.
func (r *MeterRepo) Update(ctx context.Context, m *model.Meter) error {
	var district any
	if m.District != nil {
		district = *m.District
	}
	var lat, lng any
	if m.Latitude != nil {
		lat = *m.Latitude
	}
	if m.Longitude != nil {
		lng = *m.Longitude
	}
	var installedAt any
	if m.InstalledAt != nil {
		installedAt = *m.InstalledAt
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE compteurs SET type_fluide=?, adresse=?, quartier=?, ville=?, latitude=?, longitude=?, date_installation=?, active=?
		 WHERE id_compteur=?`,
		m.FluidType, m.Address, district, m.City, lat, lng, installedAt, m.Active, m.MeterID)
	if err != nil {
		return err
	}
	// RowsAffected is 0 both for a missing row and for a no-op write, so
	// existence is checked separately when nothing was touched.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return r.exists(ctx, m.MeterID)
	}
	return nil
}

func (r *MeterRepo) exists(ctx context.Context, meterID string) error {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM compteurs WHERE id_compteur=? LIMIT 1", meterID).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrMeterNotFound
	}
	return err
}

// Deactivate soft-deletes a meter. The row and its readings are preserved.
func (r *MeterRepo) Deactivate(ctx context.Context, meterID string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE compteurs SET active=0 WHERE id_compteur=?", meterID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already inactive or missing; only the latter is an error.
		return r.exists(ctx, meterID)
	}
	return nil
}

// Stats returns registry-wide counts in a single scan.
func (r *MeterRepo) Stats(ctx context.Context) (model.MeterStats, error) {
	var s model.MeterStats
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(type_fluide = 'WATER'), 0),
		        COALESCE(SUM(type_fluide = 'ELECTRICITY'), 0),
		        COALESCE(SUM(active), 0)
		 FROM compteurs`).Scan(&s.Total, &s.Water, &s.Electricity, &s.Active)
	if err != nil {
		return s, err
	}
	s.Inactive = s.Total - s.Active
	return s, nil
}
