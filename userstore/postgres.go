// Package userstore provides the persistent account storage behind the
// engine's UserProvider interface. The primary implementation is
// Postgres via database/sql with the pgx driver; Memory exists for
// development and tests.
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nexhealth/nexauth"
)

const pgUniqueViolation = "23505"

// Postgres implements [nexauth.UserProvider] on a users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (nexauth.UserRecord, error) {
	query :=
		`SELECT id, first_name, last_name, email, password_hash, created_at FROM users
		 WHERE email = $1
		 `

	var user nexauth.UserRecord
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.UserID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nexauth.UserRecord{}, nexauth.ErrProviderNotFound
		}
		return nexauth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (s *Postgres) CreateUser(ctx context.Context, input nexauth.CreateUserInput) (nexauth.UserRecord, error) {
	query :=
		`INSERT INTO users (id, first_name, last_name, email, password_hash)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	user := nexauth.UserRecord{
		UserID:       uuid.NewString(),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
	}

	err := s.db.QueryRowContext(ctx, query,
		user.UserID, user.FirstName, user.LastName, user.Email, user.PasswordHash,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nexauth.UserRecord{}, nexauth.ErrProviderDuplicateEmail
		}
		return nexauth.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (s *Postgres) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	query :=
		`UPDATE users SET password_hash = $1
		 WHERE id = $2
		 `

	result, err := s.db.ExecContext(ctx, query, newHash, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return nexauth.ErrProviderNotFound
	}

	return nil
}
