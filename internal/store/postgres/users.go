package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sa1dev/regeester/pkg/passkey"
)

const userColumns = `id, email, name, phone, challenge_kind, challenge_value, challenge_issued_at, created_at, updated_at`

func (s *PasskeyStore) FindUserByEmail(ctx context.Context, email string) (*passkey.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PasskeyStore) FindUserByID(ctx context.Context, id uuid.UUID) (*passkey.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PasskeyStore) CreateUser(ctx context.Context, email, name, phone string) (*passkey.User, error) {
	now := time.Now().UTC()
	user := &passkey.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (email) DO NOTHING`,
		user.ID, user.Email, user.Name, user.Phone, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	} else if n == 0 {
		return nil, passkey.ErrUserExists
	}
	return user, nil
}

func (s *PasskeyStore) SetChallenge(ctx context.Context, userID uuid.UUID, c *passkey.Challenge) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET challenge_kind = $2, challenge_value = $3, challenge_issued_at = $4, updated_at = now()
		 WHERE id = $1`,
		userID, string(c.Kind), c.Value, c.IssuedAt)
	if err != nil {
		return fmt.Errorf("set challenge: %w", err)
	}
	return requireRow(res, passkey.ErrUserNotFound)
}

func (s *PasskeyStore) ClearChallenge(ctx context.Context, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET challenge_kind = NULL, challenge_value = NULL, challenge_issued_at = NULL, updated_at = now()
		 WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("clear challenge: %w", err)
	}
	return requireRow(res, passkey.ErrUserNotFound)
}

func (s *PasskeyStore) UpdateUserProfile(ctx context.Context, userID uuid.UUID, name, phone string) error {
	// Empty values leave the stored field unchanged.
	res, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET name = COALESCE(NULLIF($2, ''), name),
		     phone = COALESCE(NULLIF($3, ''), phone),
		     updated_at = now()
		 WHERE id = $1`,
		userID, name, phone)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireRow(res, passkey.ErrUserNotFound)
}

func scanUser(row *sql.Row) (*passkey.User, error) {
	var (
		user           passkey.User
		challengeKind  sql.NullString
		challengeValue sql.NullString
		challengeAt    sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Phone,
		&challengeKind, &challengeValue, &challengeAt,
		&user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, passkey.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if challengeKind.Valid && challengeValue.Valid {
		user.Challenge = &passkey.Challenge{
			Kind:     passkey.ChallengeKind(challengeKind.String),
			Value:    challengeValue.String,
			IssuedAt: challengeAt.Time,
		}
	}
	return &user, nil
}

// requireRow maps a zero-row update to notFound.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
