// internal/account/account.go
//
// Player accounts backed by the users table.
// Responsibilities:
//   - User CRUD for signup/login (id, username, bcrypt hash).
//   - The experience balance: read, debit (never below zero), credit.
//   - Adapting one user's balance to the ledger.Account port used by sessions.
//
// Debits are a single conditional UPDATE, so two concurrent purchases can
// never take the balance below zero.

package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/robalobadob/codesiege/internal/ledger"
)

var (
	ErrNotFound            = errors.New("account not found")
	ErrUsernameTaken       = errors.New("username taken")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must not be negative")
)

// User matches the users table shape.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	Exp          int64     `json:"exp"`
}

// Store reads and writes accounts.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Create inserts a user with a fresh id and the given starting balance.
func (s *Store) Create(ctx context.Context, username, passwordHash string, startingExp int64) (*User, error) {
	if startingExp < 0 {
		return nil, ErrInvalidAmount
	}
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
		Exp:          startingExp,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at, exp) VALUES (?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339), u.Exp)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// ByUsername looks a user up case-insensitively.
func (s *Store) ByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, exp FROM users WHERE username=? COLLATE NOCASE`,
		strings.TrimSpace(username))
	return scanUser(row)
}

// ByID looks a user up by id.
func (s *Store) ByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, exp FROM users WHERE id=?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &u.Exp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

// Balance returns the user's experience.
func (s *Store) Balance(ctx context.Context, userID string) (int64, error) {
	var exp int64
	err := s.db.QueryRowContext(ctx, `SELECT exp FROM users WHERE id=?`, userID).Scan(&exp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return exp, err
}

// Debit removes amount, failing with ErrInsufficientBalance rather than
// going negative.
func (s *Store) Debit(ctx context.Context, userID string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET exp = exp - ? WHERE id=? AND exp >= ?`, amount, userID, amount)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	if _, err := s.Balance(ctx, userID); err != nil {
		return err
	}
	return ErrInsufficientBalance
}

// Credit adds amount and returns the new balance.
func (s *Store) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var exp int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET exp = exp + ? WHERE id=? RETURNING exp`, amount, userID).Scan(&exp)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("credit: %w", err)
	}
	return exp, nil
}

// For binds the store to one user as a ledger.Account.
func (s *Store) For(userID string) ledger.Account {
	return &userAccount{store: s, id: userID}
}

type userAccount struct {
	store *Store
	id    string
}

func (a *userAccount) Balance(ctx context.Context) (int64, error) {
	return a.store.Balance(ctx, a.id)
}

func (a *userAccount) Debit(ctx context.Context, amount int64) error {
	return a.store.Debit(ctx, a.id, amount)
}
