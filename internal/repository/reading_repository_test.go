package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassineqb/si-releves/internal/model"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

const (
	lockMeterSQL   = "SELECT id_compteur FROM compteurs WHERE id_compteur = ? FOR UPDATE"
	insertRetSQL   = "INSERT INTO releves"
	timestampsSQL  = "SELECT created_at, updated_at FROM releves WHERE id = ?"
	lockReadingSQL = "SELECT index_actuel, index_precedent, consommation, anomalie, commentaire, photo FROM releves WHERE id = ? FOR UPDATE"
)

func TestReadingRepoCreate(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	t.Run("derives previous index from the latest prior reading", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockMeterSQL)).
			WithArgs("COMP-2026-001").
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-001"))
		// Pinning latestReadingQuery verbatim also pins the tie-break: among
		// readings sharing a date_heure, ORDER BY date_heure DESC, id DESC
		// makes the highest id the baseline. The ordering itself is the
		// database's; the clause is what this test guards.
		mock.ExpectQuery(regexp.QuoteMeta(latestReadingQuery)).
			WithArgs("COMP-2026-001").
			WillReturnRows(sqlmock.NewRows([]string{"index_actuel"}).AddRow(1200.0))
		mock.ExpectExec(insertRetSQL).
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectQuery(regexp.QuoteMeta(timestampsSQL)).
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		rd := model.Reading{MeterID: "COMP-2026-001", AgentID: 3, CurrentIndex: 1500, ReadAt: now}
		require.NoError(t, repo.Create(context.Background(), &rd))

		assert.Equal(t, uint64(7), rd.ID)
		assert.Equal(t, 1200.0, rd.PreviousIndex)
		assert.Equal(t, 300.0, rd.Consumption)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fresh meter starts from a zero baseline", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockMeterSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-002"))
		mock.ExpectQuery(regexp.QuoteMeta(latestReadingQuery)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(insertRetSQL).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery(regexp.QuoteMeta(timestampsSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		rd := model.Reading{MeterID: "COMP-2026-002", AgentID: 3, CurrentIndex: 1200, ReadAt: now}
		require.NoError(t, repo.Create(context.Background(), &rd))

		assert.Equal(t, 0.0, rd.PreviousIndex)
		assert.Equal(t, 1200.0, rd.Consumption)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("index rollback is clamped to zero consumption", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockMeterSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"id_compteur"}).AddRow("COMP-2026-001"))
		mock.ExpectQuery(regexp.QuoteMeta(latestReadingQuery)).
			WillReturnRows(sqlmock.NewRows([]string{"index_actuel"}).AddRow(1500.0))
		mock.ExpectExec(insertRetSQL).
			WillReturnResult(sqlmock.NewResult(2, 1))
		mock.ExpectQuery(regexp.QuoteMeta(timestampsSQL)).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
		mock.ExpectCommit()

		rd := model.Reading{MeterID: "COMP-2026-001", AgentID: 3, CurrentIndex: 1400, ReadAt: now}
		require.NoError(t, repo.Create(context.Background(), &rd))

		assert.Equal(t, 1500.0, rd.PreviousIndex)
		assert.Equal(t, 0.0, rd.Consumption)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown meter rolls back with ErrMeterNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockMeterSQL)).
			WithArgs("COMP-1999-999").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		rd := model.Reading{MeterID: "COMP-1999-999", AgentID: 3, CurrentIndex: 10}
		err := repo.Create(context.Background(), &rd)
		assert.ErrorIs(t, err, ErrMeterNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReadingRepoAmend(t *testing.T) {
	t.Run("recomputes consumption against the stored baseline", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)
		now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockReadingSQL)).
			WithArgs(uint64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"index_actuel", "index_precedent", "consommation", "anomalie", "commentaire", "photo"}).
				AddRow(1500.0, 1200.0, 300.0, false, nil, nil))
		mock.ExpectExec("UPDATE releves SET").
			WithArgs(1550.0, 350.0, false, sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		detail := sqlmock.NewRows([]string{
			"id", "compteur_id", "agent_id", "index_actuel", "index_precedent", "consommation",
			"date_heure", "anomalie", "commentaire", "photo", "latitude", "longitude", "created_at", "updated_at",
			"type_fluide", "adresse", "quartier",
			"u_id", "nom", "prenom", "email", "role",
		}).AddRow(
			uint64(7), "COMP-2026-001", uint64(3), 1550.0, 1200.0, 350.0,
			now, false, nil, nil, nil, nil, now, now,
			"WATER", "12 rue Oukaimeden", "Agdal",
			uint64(3), "ALAMI", "Karim", "k.alami@sireleves.ma", model.RoleAgent,
		)
		mock.ExpectQuery("FROM releves r").WithArgs(uint64(7)).WillReturnRows(detail)

		newIndex := 1550.0
		rd, err := repo.Amend(context.Background(), 7, ReadingPatch{CurrentIndex: &newIndex})
		require.NoError(t, err)
		assert.Equal(t, 1550.0, rd.CurrentIndex)
		assert.Equal(t, 350.0, rd.Consumption)
		require.NotNil(t, rd.Meter)
		assert.Equal(t, "WATER", rd.Meter.FluidType)
		require.NotNil(t, rd.Agent)
		assert.Equal(t, "ALAMI", rd.Agent.LastName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing reading", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(lockReadingSQL)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.Amend(context.Background(), 99, ReadingPatch{})
		assert.ErrorIs(t, err, ErrReadingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReadingRepoDelete(t *testing.T) {
	t.Run("deletes exactly one row, nothing else is touched", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		// A single DELETE and no recomputation of later rows: a reading
		// removed from the middle of a meter's history leaves the next
		// reading's baseline as recorded.
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM releves WHERE id=?")).
			WithArgs(uint64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(context.Background(), 7))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing reading", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM releves WHERE id=?")).
			WithArgs(uint64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(context.Background(), 99), ErrReadingNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReadingRepoStats(t *testing.T) {
	t.Run("rounds totals and averages half-up", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"total", "anomalies", "sum"}).AddRow(3, 1, 1500.0))

		s, err := repo.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(3), s.Total)
		assert.Equal(t, int64(1), s.Anomalies)
		assert.Equal(t, 1500.0, s.TotalConsumption)
		assert.Equal(t, 500.0, s.AvgConsumption)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty ledger reports zeroes", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewReadingRepo(db)

		mock.ExpectQuery("SELECT COUNT").
			WillReturnRows(sqlmock.NewRows([]string{"total", "anomalies", "sum"}).AddRow(0, 0, nil))

		s, err := repo.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(0), s.Total)
		assert.Equal(t, 0.0, s.TotalConsumption)
		assert.Equal(t, 0.0, s.AvgConsumption)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
