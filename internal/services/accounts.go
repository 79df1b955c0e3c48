package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/jamroom/backend/internal/crypto"
	"github.com/jamroom/backend/internal/db"
)

const minPasswordLength = 6

// RegisterParams is the input to AccountService.Register.
type RegisterParams struct {
	Username   string
	Password   string
	Instrument string
}

// AccountService registers and authenticates stored user accounts.
type AccountService struct {
	queries *db.Queries
}

// NewAccountService creates an AccountService backed by queries.
func NewAccountService(queries *db.Queries) *AccountService {
	return &AccountService{queries: queries}
}

// Register validates and stores a new account. isAdmin marks the account as
// allowed to create sessions; callers decide whether the request may set it.
func (s *AccountService) Register(ctx context.Context, p RegisterParams, isAdmin bool) (db.User, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return db.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if err := validatePassword(p.Password); err != nil {
		return db.User{}, err
	}

	hash, err := crypto.HashPassword(p.Password)
	if err != nil {
		return db.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.queries.CreateUser(ctx, db.CreateUserParams{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Instrument:   strings.TrimSpace(p.Instrument),
		IsAdmin:      isAdmin,
	})
	if errors.Is(err, db.ErrDuplicateUsername) {
		return db.User{}, fmt.Errorf("%w: username already exists", ErrConflict)
	}
	if err != nil {
		return db.User{}, err
	}

	slog.Info("account registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return user, nil
}

// Login checks a username and password and returns the matching account.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (db.User, error) {
	user, err := s.queries.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return db.User{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := crypto.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return db.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return db.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser returns the stored account for userID.
func (s *AccountService) GetUser(ctx context.Context, userID string) (db.User, error) {
	user, err := s.queries.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return db.User{}, fmt.Errorf("%w: user not found", ErrNotFound)
	}
	return user, err
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return fmt.Errorf("%w: password must contain an uppercase letter, a lowercase letter and a digit", ErrInvalidInput)
	}
	return nil
}
