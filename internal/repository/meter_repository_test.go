package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassineqb/si-releves/internal/model"
)

const maxScanSQL = "SELECT id_compteur FROM compteurs WHERE id_compteur LIKE ? ORDER BY LENGTH(id_compteur) DESC, id_compteur DESC LIMIT 1 FOR UPDATE"

func pinYear(t *testing.T, year int) {
	t.Helper()
	orig := currentYear
	currentYear = func() int { return year }
	t.Cleanup(func() { currentYear = orig })
}

func meterRow(now time.Time, id string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id_compteur", "user_id", "type_fluide", "adresse", "quartier", "ville",
		"latitude", "longitude", "date_installation", "active", "created_at", "updated_at",
	}).AddRow(id, uint64(5), "WATER", "12 rue Oukaimeden", "Agdal", "Rabat",
		nil, nil, now, true, now, now)
}

func TestMeterRepoCreate(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	pinYear(t, 2026)

	t.Run("assigns the next sequence for the year", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
			WithArgs("COMP-2026-%").
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-041"))
		mock.ExpectExec("INSERT INTO compteurs").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM compteurs WHERE id_compteur=").
			WithArgs("COMP-2026-042").
			WillReturnRows(meterRow(now, "COMP-2026-042"))
		mock.ExpectCommit()

		m := model.Meter{UserID: 5, FluidType: "WATER", Address: "12 rue Oukaimeden", City: "Rabat"}
		require.NoError(t, repo.Create(context.Background(), &m))
		assert.Equal(t, "COMP-2026-042", m.MeterID)
		assert.True(t, m.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first meter of the year gets sequence 001", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO compteurs").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM compteurs WHERE id_compteur=").
			WithArgs("COMP-2026-001").
			WillReturnRows(meterRow(now, "COMP-2026-001"))
		mock.ExpectCommit()

		m := model.Meter{UserID: 5, FluidType: "WATER", Address: "12 rue Oukaimeden", City: "Rabat"}
		require.NoError(t, repo.Create(context.Background(), &m))
		assert.Equal(t, "COMP-2026-001", m.MeterID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("crosses the padding boundary and keeps going", func(t *testing.T) {
		// The max-scan orders by length before value so four-digit ids win
		// over three-digit ones. 999 -> 1000 -> 1001 must progress; a plain
		// string sort would keep returning 999 and wedge every registration
		// after the thousandth of the year.
		for _, step := range []struct{ last, next string }{
			{"COMP-2026-999", "COMP-2026-1000"},
			{"COMP-2026-1000", "COMP-2026-1001"},
		} {
			db, mock := newMockDB(t)
			repo := NewMeterRepo(db, "COMP")

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
				WithArgs("COMP-2026-%").
				WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow(step.last))
			mock.ExpectExec("INSERT INTO compteurs").
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery("FROM compteurs WHERE id_compteur=").
				WithArgs(step.next).
				WillReturnRows(meterRow(now, step.next))
			mock.ExpectCommit()

			m := model.Meter{UserID: 5, FluidType: "WATER", Address: "12 rue Oukaimeden", City: "Rabat"}
			require.NoError(t, repo.Create(context.Background(), &m))
			assert.Equal(t, step.next, m.MeterID)
			assert.NoError(t, mock.ExpectationsWereMet())
		}
	})

	t.Run("retries once on a duplicate id race", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")
		dup := errors.New("Error 1062 (23000): Duplicate entry 'COMP-2026-042' for key 'PRIMARY'")

		// First attempt loses the race on the primary key.
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-041"))
		mock.ExpectExec("INSERT INTO compteurs").WillReturnError(dup)
		mock.ExpectRollback()

		// Second attempt sees the winner's row and takes the next sequence.
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-042"))
		mock.ExpectExec("INSERT INTO compteurs").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("FROM compteurs WHERE id_compteur=").
			WithArgs("COMP-2026-043").
			WillReturnRows(meterRow(now, "COMP-2026-043"))
		mock.ExpectCommit()

		m := model.Meter{UserID: 5, FluidType: "WATER", Address: "12 rue Oukaimeden", City: "Rabat"}
		require.NoError(t, repo.Create(context.Background(), &m))
		assert.Equal(t, "COMP-2026-043", m.MeterID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("gives up with ErrConflict after exhausting retries", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")
		dup := errors.New("Error 1062 (23000): Duplicate entry 'COMP-2026-042' for key 'PRIMARY'")

		for i := 0; i < registerRetries; i++ {
			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
				WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-041"))
			mock.ExpectExec("INSERT INTO compteurs").WillReturnError(dup)
			mock.ExpectRollback()
		}

		m := model.Meter{UserID: 5, FluidType: "WATER", Address: "12 rue Oukaimeden", City: "Rabat"}
		assert.ErrorIs(t, repo.Create(context.Background(), &m), ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("non-duplicate errors are not retried", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")
		boom := errors.New("connection reset")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(maxScanSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-041"))
		mock.ExpectExec("INSERT INTO compteurs").WillReturnError(boom)
		mock.ExpectRollback()

		m := model.Meter{UserID: 5, FluidType: "WATER", Address: "12 rue Oukaimeden", City: "Rabat"}
		assert.ErrorIs(t, repo.Create(context.Background(), &m), boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMeterRepoDeactivate(t *testing.T) {
	t.Run("already inactive is not an error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")

		mock.ExpectExec("UPDATE compteurs SET active=0").
			WithArgs("COMP-2026-001").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT 1 FROM compteurs").
			WithArgs("COMP-2026-001").
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		assert.NoError(t, repo.Deactivate(context.Background(), "COMP-2026-001"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing meter", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMeterRepo(db, "COMP")

		mock.ExpectExec("UPDATE compteurs SET active=0").
			WithArgs("COMP-1999-999").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT 1 FROM compteurs").
			WithArgs("COMP-1999-999").
			WillReturnError(sql.ErrNoRows)

		assert.ErrorIs(t, repo.Deactivate(context.Background(), "COMP-1999-999"), ErrMeterNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMeterRepoStats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMeterRepo(db, "COMP")

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"total", "water", "elec", "active"}).
			AddRow(10, 6, 4, 8))

	s, err := repo.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), s.Total)
	assert.Equal(t, int64(6), s.Water)
	assert.Equal(t, int64(4), s.Electricity)
	assert.Equal(t, int64(8), s.Active)
	assert.Equal(t, int64(2), s.Inactive)
	assert.NoError(t, mock.ExpectationsWereMet())
}
