package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/palateclub/palate/db"
	"github.com/palateclub/palate/roles"
)

// IdentityService resolves users by ID, handle, or email for the invite and
// assignment flows, and issues the tokens embedded in invite links
type IdentityService struct {
	PG *sql.DB
}

var _ UserDirectory = (*IdentityService)(nil)

// NewIdentityService creates a new identity service
func NewIdentityService(pg *sql.DB) *IdentityService {
	return &IdentityService{PG: pg}
}

const userColumns = `id, name, handle, email, COALESCE(fcm_token, ''), is_active, created_at, updated_at`

// Get retrieves a live user by ID
func (s *IdentityService) Get(ctx context.Context, id string) (*db.User, error) {
	row := s.PG.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanUser(row)
}

// GetByHandle retrieves a live user by handle
func (s *IdentityService) GetByHandle(ctx context.Context, handle string) (*db.User, error) {
	row := s.PG.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE handle = $1 AND deleted_at IS NULL
	`, handle)
	return scanUser(row)
}

// GetByEmail retrieves a live user by email
func (s *IdentityService) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	row := s.PG.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
	`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*db.User, error) {
	var user db.User
	err := row.Scan(&user.ID, &user.Name, &user.Handle, &user.Email, &user.FCMToken,
		&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, roles.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// NewInviteToken generates a random invite token and its bcrypt hash.
// The plain token goes into the invite link; only the hash is stored.
func NewInviteToken() (token, hash string, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate invite token: %w", err)
	}
	token = hex.EncodeToString(raw)

	digest, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("failed to hash invite token: %w", err)
	}
	return token, string(digest), nil
}

// VerifyInviteToken checks a presented token against the stored hash
func VerifyInviteToken(hash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil
}
