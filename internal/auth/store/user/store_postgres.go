package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"waypost/internal/auth/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, role, password_hash, created_at)
		 VALUES ($1, lower($2), $3, $4, $5, $6)`,
		user.ID.String(), user.Email, user.DisplayName, string(user.Role), user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("email already registered: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, password_hash, created_at
		 FROM users WHERE id = $1`, userID.String()))
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, password_hash, created_at
		 FROM users WHERE email = lower($1)`, email))
}

func (s *PostgresStore) scanOne(row *sql.Row) (*models.User, error) {
	var (
		user    models.User
		rawID   string
		rawRole string
	)
	err := row.Scan(&rawID, &user.Email, &user.DisplayName, &rawRole, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	userID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", rawID, err)
	}
	role, err := id.ParseRole(rawRole)
	if err != nil {
		return nil, fmt.Errorf("corrupt user role %q: %w", rawRole, err)
	}
	user.ID = userID
	user.Role = role
	return &user, nil
}
