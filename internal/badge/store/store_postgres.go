package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"waypost/internal/badge/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// PostgresStore persists badges and venue-admin links in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const badgeColumns = `id, venue_id, issued_by, token, active, revoked, issued_at, expires_at, last_checked_at`

func (s *PostgresStore) CreateBadge(ctx context.Context, badge *models.Badge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO badges (`+badgeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		badge.ID.String(), badge.VenueID.String(), badge.IssuedBy.String(), badge.Token,
		badge.Active, badge.Revoked, badge.IssuedAt, badge.ExpiresAt, badge.LastCheckedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == "badges_token_key" {
				return fmt.Errorf("token already bound: %w", sentinel.ErrDuplicate)
			}
			return fmt.Errorf("badge already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert badge: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindBadgeByID(ctx context.Context, badgeID id.BadgeID) (*models.Badge, error) {
	return scanBadge(s.db.QueryRowContext(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE id = $1`, badgeID.String()))
}

func (s *PostgresStore) FindBadgeByToken(ctx context.Context, token string) (*models.Badge, error) {
	return scanBadge(s.db.QueryRowContext(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE token = $1`, token))
}

func (s *PostgresStore) ListBadgesByVenue(ctx context.Context, venueID id.VenueID) ([]models.Badge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE venue_id = $1 ORDER BY issued_at`,
		venueID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list badges: %w", err)
	}
	defer rows.Close()

	var out []models.Badge
	for rows.Next() {
		badge, err := scanBadgeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *badge)
	}
	return out, rows.Err()
}

// MarkRevoked flips the badge to revoked. The WHERE guard makes concurrent
// revokes settle on exactly one winner; the loser sees a clean no-op.
func (s *PostgresStore) MarkRevoked(ctx context.Context, badgeID id.BadgeID) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE badges SET revoked = TRUE, active = FALSE WHERE id = $1 AND NOT revoked`,
		badgeID.String(),
	)
	if err != nil {
		return false, fmt.Errorf("revoke badge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke badge: %w", err)
	}
	if affected > 0 {
		return true, nil
	}
	if _, err := s.FindBadgeByID(ctx, badgeID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) TouchLastChecked(ctx context.Context, badgeID id.BadgeID, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE badges SET last_checked_at = $2 WHERE id = $1`,
		badgeID.String(), at,
	)
	if err != nil {
		return fmt.Errorf("touch badge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch badge: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("badge not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) UpsertAdmin(ctx context.Context, admin *models.VenueAdmin) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO venue_admins (venue_id, user_id, verified, verified_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (venue_id, user_id)
		 DO UPDATE SET verified = EXCLUDED.verified, verified_at = EXCLUDED.verified_at`,
		admin.VenueID.String(), admin.UserID.String(), admin.Verified, admin.VerifiedAt, admin.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert venue admin: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindAdmin(ctx context.Context, venueID id.VenueID, userID id.UserID) (*models.VenueAdmin, error) {
	var (
		admin      models.VenueAdmin
		verifiedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT verified, verified_at, created_at
		 FROM venue_admins WHERE venue_id = $1 AND user_id = $2`,
		venueID.String(), userID.String(),
	).Scan(&admin.Verified, &verifiedAt, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin relation not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan venue admin: %w", err)
	}
	admin.VenueID = venueID
	admin.UserID = userID
	if verifiedAt.Valid {
		t := verifiedAt.Time
		admin.VerifiedAt = &t
	}
	return &admin, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBadge(row *sql.Row) (*models.Badge, error) {
	badge, err := scanBadgeFrom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("badge not found: %w", sentinel.ErrNotFound)
		}
		return nil, err
	}
	return badge, nil
}

func scanBadgeRow(rows *sql.Rows) (*models.Badge, error) {
	return scanBadgeFrom(rows)
}

func scanBadgeFrom(row rowScanner) (*models.Badge, error) {
	var (
		badge       models.Badge
		rawID       string
		rawVenueID  string
		rawIssuedBy string
		expiresAt   sql.NullTime
		lastChecked sql.NullTime
	)
	err := row.Scan(&rawID, &rawVenueID, &rawIssuedBy, &badge.Token,
		&badge.Active, &badge.Revoked, &badge.IssuedAt, &expiresAt, &lastChecked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan badge: %w", err)
	}

	badgeID, err := id.ParseBadgeID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt badge id %q: %w", rawID, err)
	}
	venueID, err := id.ParseVenueID(rawVenueID)
	if err != nil {
		return nil, fmt.Errorf("corrupt badge venue id %q: %w", rawVenueID, err)
	}
	issuedBy, err := id.ParseUserID(rawIssuedBy)
	if err != nil {
		return nil, fmt.Errorf("corrupt badge issuer id %q: %w", rawIssuedBy, err)
	}
	badge.ID = badgeID
	badge.VenueID = venueID
	badge.IssuedBy = issuedBy
	if expiresAt.Valid {
		t := expiresAt.Time
		badge.ExpiresAt = &t
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		badge.LastCheckedAt = &t
	}
	return &badge, nil
}
