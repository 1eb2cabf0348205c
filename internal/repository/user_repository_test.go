package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yassineqb/si-releves/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func TestNormalizeNames(t *testing.T) {
	assert.Equal(t, "EL FASSI", normalizeLastName("  el Fassi "))
	assert.Equal(t, "Karim", normalizeFirstName("kARIM"))
	// Rune-aware capitalization for accented names.
	assert.Equal(t, "Élodie", normalizeFirstName("élodie"))
	assert.Equal(t, "", normalizeFirstName("   "))
}

func TestIsDuplicateKey(t *testing.T) {
	assert.True(t, isDuplicateKey(errors.New("Error 1062 (23000): Duplicate entry")))
	assert.False(t, isDuplicateKey(errors.New("Error 1048 (23000): Column cannot be null")))
	assert.False(t, isDuplicateKey(nil))
}

func TestUserRepoCreate(t *testing.T) {
	t.Run("normalizes names and email", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepo(db)

		mock.ExpectExec("INSERT INTO utilisateurs").
			WithArgs("ALAMI", "Karim", "k.alami@sireleves.ma", sqlmock.AnyArg(), model.RoleAgent).
			WillReturnResult(sqlmock.NewResult(3, 1))

		id, err := repo.Create(context.Background(), " alami ", "kARIM", " K.Alami@sireleves.MA ", "temp-pass", model.RoleAgent, bcrypt.MinCost)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepo(db)

		mock.ExpectExec("INSERT INTO utilisateurs").
			WillReturnError(errors.New("Error 1062 (23000): Duplicate entry 'k.alami@sireleves.ma'"))

		_, err := repo.Create(context.Background(), "Alami", "Karim", "k.alami@sireleves.ma", "temp-pass", model.RoleAgent, bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrEmailExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepoGetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+userCols+" FROM utilisateurs WHERE email=? LIMIT 1")).
		WithArgs("k.alami@sireleves.ma").
		WillReturnRows(sqlmock.NewRows([]string{"id"})) // no rows

	_, err := repo.GetByEmail(context.Background(), " K.Alami@sireleves.MA ")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoUpdatePassword(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepo(db)

	mock.ExpectExec("UPDATE utilisateurs SET mot_de_passe=").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePassword(context.Background(), 99, "new-pass", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
