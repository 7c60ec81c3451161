package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/opla-backend/internal/model"
)

const userColumns = "id,email,phone,password_hash,full_name,is_platform_admin,is_active,created_at,updated_at"

// UserRepo persists identities in the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u, assigning an id and timestamps when unset. A taken
// email or phone yields model.ErrConflict.
func (r *UserRepo) Create(ctx context.Context, u *model.Identity) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &e
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?)",
		u.ID, nullString(u.Email), nullString(u.Phone), nullString(u.PasswordHash),
		u.FullName, u.IsPlatformAdmin, u.IsActive, u.CreatedAt, u.UpdatedAt)
	return translate(err, "create user")
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.Identity, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row, "get user")
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row, "get user by email")
}

// GetByPhone fetches a user by phone digits.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.Identity, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone=? LIMIT 1", phone)
	return scanUser(row, "get user by phone")
}

// GetByEmailOrPhone matches either column; used for invitations.
func (r *UserRepo) GetByEmailOrPhone(ctx context.Context, emailOrPhone string) (*model.Identity, error) {
	v := strings.TrimSpace(emailOrPhone)
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? OR phone=? LIMIT 1",
		strings.ToLower(v), v)
	return scanUser(row, "get user by email or phone")
}

func scanUser(s rowScanner, what string) (*model.Identity, error) {
	var (
		u                   model.Identity
		email, phone, phash sql.NullString
	)
	err := s.Scan(&u.ID, &email, &phone, &phash, &u.FullName,
		&u.IsPlatformAdmin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translate(err, what)
	}
	u.Email, u.Phone, u.PasswordHash = strPtr(email), strPtr(phone), strPtr(phash)
	return &u, nil
}
