package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/yassineqb/si-releves/internal/model"
)

// ReadingRepo persists readings in the `releves` table. It is the only
// writer of the index_precedent and consommation columns: both are derived
// at insert time from the chronologically latest prior reading of the same
// meter, never trusted from the caller.
type ReadingRepo struct{ DB *sql.DB }

func NewReadingRepo(db *sql.DB) *ReadingRepo { return &ReadingRepo{DB: db} }

var ErrReadingNotFound = errors.New("reading not found")

// latestReadingQuery picks the baseline for a new reading. Ordering is by
// observation time with id as the tie-break, so two readings sharing a
// timestamp resolve deterministically to the one inserted last.
const latestReadingQuery = `SELECT index_actuel FROM releves WHERE compteur_id = ? ORDER BY date_heure DESC, id DESC LIMIT 1`

// Create records a reading. The whole sequence — lock the meter row, read
// the latest prior index, compute consumption, insert — runs in one
// transaction. The SELECT ... FOR UPDATE on the meter serializes concurrent
// submissions for the same meter: without it, two agents submitting
// back-to-back could both take the same baseline and double-count
// consumption. Returns ErrMeterNotFound when the meter does not exist;
// deactivated meters still accept readings.
func (r *ReadingRepo) Create(ctx context.Context, rd *model.Reading) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var meterID string
	err = tx.QueryRowContext(ctx,
		"SELECT id_compteur FROM compteurs WHERE id_compteur = ? FOR UPDATE",
		rd.MeterID).Scan(&meterID)
	if err == sql.ErrNoRows {
		return ErrMeterNotFound
	}
	if err != nil {
		return err
	}

	rd.PreviousIndex = 0
	err = tx.QueryRowContext(ctx, latestReadingQuery, rd.MeterID).Scan(&rd.PreviousIndex)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	rd.Consumption = ComputeConsumption(rd.CurrentIndex, rd.PreviousIndex)
	if rd.ReadAt.IsZero() {
		rd.ReadAt = time.Now().UTC()
	}

	var comment, photo any
	if rd.Comment != nil {
		comment = *rd.Comment
	}
	if rd.Photo != nil {
		photo = *rd.Photo
	}
	var lat, lng any
	if rd.Latitude != nil {
		lat = *rd.Latitude
	}
	if rd.Longitude != nil {
		lng = *rd.Longitude
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO releves (compteur_id, agent_id, index_actuel, index_precedent, consommation, date_heure, anomalie, commentaire, photo, latitude, longitude)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rd.MeterID, rd.AgentID, rd.CurrentIndex, rd.PreviousIndex, rd.Consumption,
		rd.ReadAt, rd.Anomaly, comment, photo, lat, lng)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rd.ID = uint64(id)

	// Read back timestamps set by the database.
	err = tx.QueryRowContext(ctx,
		"SELECT created_at, updated_at FROM releves WHERE id = ?", rd.ID).
		Scan(&rd.CreatedAt, &rd.UpdatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

const readingSelect = `SELECT r.id,r.compteur_id,r.agent_id,r.index_actuel,r.index_precedent,r.consommation,
       r.date_heure,r.anomalie,r.commentaire,r.photo,r.latitude,r.longitude,r.created_at,r.updated_at,
       c.type_fluide,c.adresse,c.quartier,
       u.id,u.nom,u.prenom,u.email,u.role
FROM releves r
LEFT JOIN compteurs c ON c.id_compteur = r.compteur_id
LEFT JOIN utilisateurs u ON u.id = r.agent_id`

func scanReadingDetail(row interface{ Scan(...any) error }) (model.Reading, error) {
	var (
		rd         model.Reading
		comment    sql.NullString
		photo      sql.NullString
		lat, lng   sql.NullFloat64
		fluid      sql.NullString
		address    sql.NullString
		district   sql.NullString
		agentID    sql.NullInt64
		agentLast  sql.NullString
		agentFirst sql.NullString
		agentEmail sql.NullString
		agentRole  sql.NullString
	)
	err := row.Scan(&rd.ID, &rd.MeterID, &rd.AgentID, &rd.CurrentIndex, &rd.PreviousIndex,
		&rd.Consumption, &rd.ReadAt, &rd.Anomaly, &comment, &photo, &lat, &lng,
		&rd.CreatedAt, &rd.UpdatedAt,
		&fluid, &address, &district,
		&agentID, &agentLast, &agentFirst, &agentEmail, &agentRole)
	if err != nil {
		return rd, err
	}
	if comment.Valid {
		rd.Comment = &comment.String
	}
	if photo.Valid {
		rd.Photo = &photo.String
	}
	if lat.Valid {
		rd.Latitude = &lat.Float64
	}
	if lng.Valid {
		rd.Longitude = &lng.Float64
	}
	if fluid.Valid {
		ms := model.MeterSummary{MeterID: rd.MeterID, FluidType: fluid.String, Address: address.String}
		if district.Valid {
			ms.District = &district.String
		}
		rd.Meter = &ms
	}
	if agentID.Valid {
		rd.Agent = &model.UserSummary{
			ID:        uint64(agentID.Int64),
			LastName:  agentLast.String,
			FirstName: agentFirst.String,
			Email:     agentEmail.String,
			Role:      agentRole.String,
		}
	}
	return rd, nil
}

// GetByID fetches a reading with its meter and agent summaries.
func (r *ReadingRepo) GetByID(ctx context.Context, id uint64) (model.Reading, error) {
	rd, err := scanReadingDetail(r.DB.QueryRowContext(ctx, readingSelect+" WHERE r.id = ?", id))
	if err == sql.ErrNoRows {
		return rd, ErrReadingNotFound
	}
	return rd, err
}

// ReadingFilter narrows List. Zero values mean "no constraint".
type ReadingFilter struct {
	MeterID string
	AgentID uint64
	Anomaly *bool
	From    *time.Time
	To      *time.Time
}

// List returns readings matching the filter, most recent observation first,
// each enriched with meter and agent summaries.
func (r *ReadingRepo) List(ctx context.Context, f ReadingFilter) ([]model.Reading, error) {
	q := readingSelect + " WHERE 1=1"
	args := []any{}
	if f.MeterID != "" {
		q += " AND r.compteur_id = ?"
		args = append(args, f.MeterID)
	}
	if f.AgentID != 0 {
		q += " AND r.agent_id = ?"
		args = append(args, f.AgentID)
	}
	if f.Anomaly != nil {
		q += " AND r.anomalie = ?"
		args = append(args, *f.Anomaly)
	}
	if f.From != nil {
		q += " AND r.date_heure >= ?"
		args = append(args, *f.From)
	}
	if f.To != nil {
		q += " AND r.date_heure <= ?"
		args = append(args, *f.To)
	}
	q += " ORDER BY r.date_heure DESC, r.id DESC"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := []model.Reading{}
	for rows.Next() {
		rd, err := scanReadingDetail(rows)
		if err != nil {
			return nil, err
		}
		readings = append(readings, rd)
	}
	return readings, rows.Err()
}

// ReadingPatch carries the fields an administrator may amend. Nil means
// "leave unchanged".
type ReadingPatch struct {
	CurrentIndex *float64
	Anomaly      *bool
	Comment      *string
	Photo        *string
}

// Amend applies an administrative correction. When the index changes,
// consumption is recomputed against the stored index_precedent — the
// baseline itself is never revisited, so a correction cannot shift earlier
// or later rows. The clamp at zero applies here exactly as on insert.
func (r *ReadingRepo) Amend(ctx context.Context, id uint64, p ReadingPatch) (model.Reading, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Reading{}, err
	}
	defer tx.Rollback()

	var (
		currentIndex  float64
		previousIndex float64
		consumption   float64
		anomaly       bool
		comment       sql.NullString
		photo         sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		"SELECT index_actuel, index_precedent, consommation, anomalie, commentaire, photo FROM releves WHERE id = ? FOR UPDATE",
		id).Scan(&currentIndex, &previousIndex, &consumption, &anomaly, &comment, &photo)
	if err == sql.ErrNoRows {
		return model.Reading{}, ErrReadingNotFound
	}
	if err != nil {
		return model.Reading{}, err
	}

	if p.CurrentIndex != nil && *p.CurrentIndex != currentIndex {
		currentIndex = *p.CurrentIndex
		consumption = ComputeConsumption(currentIndex, previousIndex)
	}
	if p.Anomaly != nil {
		anomaly = *p.Anomaly
	}
	if p.Comment != nil {
		comment = sql.NullString{String: *p.Comment, Valid: true}
	}
	if p.Photo != nil {
		photo = sql.NullString{String: *p.Photo, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE releves SET index_actuel=?, consommation=?, anomalie=?, commentaire=?, photo=? WHERE id=?",
		currentIndex, consumption, anomaly, comment, photo, id)
	if err != nil {
		return model.Reading{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Reading{}, err
	}
	return r.GetByID(ctx, id)
}

// Delete hard-deletes a reading. Later readings of the same meter keep the
// index_precedent they were recorded with; there is no cascading
// recomputation, so the next reading's baseline may no longer match any
// surviving row. That matches how corrections have always been handled
// operationally: the agent re-submits, the ledger is append-mostly.
func (r *ReadingRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM releves WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrReadingNotFound
	}
	return nil
}

// Stats aggregates the whole ledger. Figures are rounded half-up to two
// decimals; an empty ledger reports zero everywhere rather than dividing by
// zero.
func (r *ReadingRepo) Stats(ctx context.Context) (model.ReadingStats, error) {
	var (
		s     model.ReadingStats
		total sql.NullFloat64
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(anomalie), 0), SUM(consommation) FROM releves`).
		Scan(&s.Total, &s.Anomalies, &total)
	if err != nil {
		return s, err
	}
	s.TotalConsumption = Round2(total.Float64)
	if s.Total > 0 {
		s.AvgConsumption = Round2(total.Float64 / float64(s.Total))
	}
	return s, nil
}
