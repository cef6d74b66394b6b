// internal/users/users.go
//
// Player accounts and per-player counters.
// Responsibilities:
//   - Signup validation, bcrypt hashing, username lookups.
//   - Stats: rounds started (successful generates), points found, rounds cleared.
//
// Accounts are optional: anonymous players can play, signing in only makes the
// game follow the player across devices and keeps stats.

package users

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrUsernameTaken is returned by Create for a duplicate (case-insensitive) name.
var ErrUsernameTaken = errors.New("username taken")

// User matches the users table shape.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	RoundsStarted int       `json:"roundsStarted"`
	PointsFound   int       `json:"pointsFound"`
	RoundsCleared int       `json:"roundsCleared"`
}

// Store reads and writes users.
type Store struct{ db *sql.DB }

// NewStore wraps a migrated database handle.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Create validates input, checks uniqueness, hashes the password and inserts a user.
func (s *Store) Create(ctx context.Context, username, pw string) (*User, error) {
	username = normalizeUsername(username)
	if err := validateSignup(username, pw); err != nil {
		return nil, err
	}
	var exists int
	_ = s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if exists == 1 {
		return nil, ErrUsernameTaken
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           GenID(),
		Username:     username,
		PasswordHash: string(h),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, created_at) VALUES (?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// FindByUsername loads a user by case-insensitive name.
func (s *Store) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at, rounds_started, points_found, rounds_cleared
	                                  FROM users WHERE lower(username)=lower(?)`, normalizeUsername(username))
	return scanUser(row)
}

// FindByID loads a user by ID.
func (s *Store) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, username, password_hash, created_at, rounds_started, points_found, rounds_cleared
	                                  FROM users WHERE id=?`, id)
	return scanUser(row)
}

// Authenticate returns the user when the password matches.
func (s *Store) Authenticate(ctx context.Context, username, pw string) (*User, error) {
	u, err := s.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, pw) {
		return nil, errors.New("invalid password")
	}
	return u, nil
}

// RoundStarted bumps rounds_started after a successful generate.
func (s *Store) RoundStarted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET rounds_started = rounds_started + 1 WHERE id=?`, id)
	return err
}

// PointFound bumps points_found, and rounds_cleared when the hit found the last point.
func (s *Store) PointFound(ctx context.Context, id string, cleared bool) error {
	inc := 0
	if cleared {
		inc = 1
	}
	_, err := s.db.ExecContext(ctx, `UPDATE users SET points_found = points_found + 1, rounds_cleared = rounds_cleared + ? WHERE id=?`,
		inc, id)
	return err
}

// scanUser converts a *sql.Row into a User.
func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.RoundsStarted, &u.PointsFound, &u.RoundsCleared); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// CheckPassword is a bcrypt verifier.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// normalizeUsername trims whitespace.
func normalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// validateSignup enforces basic username/password rules.
func validateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return errors.New("username must be 3–24 chars")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return errors.New("username: letters, numbers, underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return errors.New("password must be 8–100 chars")
	}
	return nil
}

// GenID creates a 22-char URL-safe, crypto-random identifier (no padding).
func GenID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
