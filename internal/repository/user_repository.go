package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/yassineqb/si-releves/internal/model"
	"github.com/yassineqb/si-releves/internal/utils"
)

// UserRepo persists accounts in the `utilisateurs` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var (
	ErrEmailExists  = errors.New("email already exists")
	ErrUserNotFound = errors.New("user not found")
)

const userCols = "id,nom,prenom,email,mot_de_passe,role,active,created_at,updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.LastName, &u.FirstName, &u.Email, &u.PasswordHash,
		&u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts an account and returns its ID. The plain password is
// hashed here; names are normalized the way the back office displays them
// (family name upper-cased, given name capitalized).
func (r *UserRepo) Create(ctx context.Context, lastName, firstName, email, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO utilisateurs (nom, prenom, email, mot_de_passe, role, active) VALUES (?,?,?,?,?,1)",
		normalizeLastName(lastName), normalizeFirstName(firstName), email, hash, role)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM utilisateurs WHERE email=? LIMIT 1", email))
	if err == sql.ErrNoRows {
		return u, ErrUserNotFound
	}
	return u, err
}

// GetByID fetches an account by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM utilisateurs WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return u, ErrUserNotFound
	}
	return u, err
}

// List returns all accounts, most recently created first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userCols+" FROM utilisateurs ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Update writes mutable account fields. The caller merges the request onto
// the stored row first, so every column is written unconditionally.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE utilisateurs SET nom=?, prenom=?, email=?, role=?, active=? WHERE id=?",
		u.LastName, u.FirstName, strings.ToLower(strings.TrimSpace(u.Email)), u.Role, u.Active, u.ID)
	if err != nil && isDuplicateKey(err) {
		return ErrEmailExists
	}
	return err
}

// UpdatePassword stores a new bcrypt hash for the account.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE utilisateurs SET mot_de_passe=? WHERE id=?", hash, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes an account. Readings recorded by the agent keep their
// agent_id; the join in the reading queries tolerates the dangling
// reference.
func (r *UserRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM utilisateurs WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func normalizeLastName(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func normalizeFirstName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

// isDuplicateKey detects MySQL error 1062 (duplicate entry for a unique key).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
