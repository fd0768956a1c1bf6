package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"waypost/internal/venue/models"
	id "waypost/pkg/domain"
	"waypost/pkg/platform/sentinel"
)

// PostgresStore persists venues and signals in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWithInitialSignal inserts the venue and its first signal in a single
// transaction so a venue never exists without a signal.
func (s *PostgresStore) CreateWithInitialSignal(ctx context.Context, venue *models.Venue, signal *models.Signal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin venue create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO venues (id, name, description, listed, created_at, listed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		venue.ID.String(), venue.Name, venue.Description, venue.Listed, venue.CreatedAt, venue.ListedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("venue already exists: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("insert venue: %w", err)
	}

	if err := insertSignal(ctx, tx, signal); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit venue create: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, venueID id.VenueID) (*models.Venue, error) {
	return scanVenue(s.db.QueryRowContext(ctx,
		`SELECT id, name, description, listed, created_at, listed_at
		 FROM venues WHERE id = $1`, venueID.String()))
}

func (s *PostgresStore) List(ctx context.Context, listedOnly bool) ([]models.Venue, error) {
	query := `SELECT id, name, description, listed, created_at, listed_at FROM venues`
	if listedOnly {
		query += ` WHERE listed`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	defer rows.Close()

	var out []models.Venue
	for rows.Next() {
		var (
			venue    models.Venue
			rawID    string
			listedAt sql.NullTime
		)
		if err := rows.Scan(&rawID, &venue.Name, &venue.Description, &venue.Listed, &venue.CreatedAt, &listedAt); err != nil {
			return nil, fmt.Errorf("scan venue row: %w", err)
		}
		venueID, err := id.ParseVenueID(rawID)
		if err != nil {
			return nil, fmt.Errorf("corrupt venue id %q: %w", rawID, err)
		}
		venue.ID = venueID
		if listedAt.Valid {
			t := listedAt.Time
			venue.ListedAt = &t
		}
		out = append(out, venue)
	}
	return out, rows.Err()
}

// MarkListed flips the venue to listed if it is not already. The WHERE guard
// makes concurrent flips settle on exactly one winner.
func (s *PostgresStore) MarkListed(ctx context.Context, venueID id.VenueID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE venues SET listed = TRUE, listed_at = $2 WHERE id = $1 AND NOT listed`,
		venueID.String(), at,
	)
	if err != nil {
		return false, fmt.Errorf("mark venue listed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark venue listed: %w", err)
	}
	if affected > 0 {
		return true, nil
	}

	// Distinguish "already listed" from "no such venue".
	if _, err := s.FindByID(ctx, venueID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) AppendSignal(ctx context.Context, signal *models.Signal) error {
	return insertSignal(ctx, s.db, signal)
}

func (s *PostgresStore) ListSignals(ctx context.Context, venueID id.VenueID) ([]models.Signal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, venue_id, kind, source_role, submitter_id, note, created_at
		 FROM signals WHERE venue_id = $1 ORDER BY created_at, id`,
		venueID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *signal)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HasSubmitterSignal(ctx context.Context, venueID id.VenueID, submitterID id.UserID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM signals WHERE venue_id = $1 AND submitter_id = $2)`,
		venueID.String(), submitterID.String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check submitter signal: %w", err)
	}
	return exists, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSignal(ctx context.Context, db execer, signal *models.Signal) error {
	var submitterID any
	if signal.SubmitterID != nil {
		submitterID = signal.SubmitterID.String()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO signals (id, venue_id, kind, source_role, submitter_id, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		signal.ID.String(), signal.VenueID.String(), string(signal.Kind), string(signal.SourceRole),
		submitterID, signal.Note, signal.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("venue not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

func scanVenue(row *sql.Row) (*models.Venue, error) {
	var (
		venue    models.Venue
		rawID    string
		listedAt sql.NullTime
	)
	err := row.Scan(&rawID, &venue.Name, &venue.Description, &venue.Listed, &venue.CreatedAt, &listedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("venue not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan venue: %w", err)
	}

	venueID, err := id.ParseVenueID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt venue id %q: %w", rawID, err)
	}
	venue.ID = venueID
	if listedAt.Valid {
		t := listedAt.Time
		venue.ListedAt = &t
	}
	return &venue, nil
}

func scanSignal(rows *sql.Rows) (*models.Signal, error) {
	var (
		signal       models.Signal
		rawID        string
		rawVenueID   string
		rawKind      string
		rawRole      string
		rawSubmitter sql.NullString
	)
	err := rows.Scan(&rawID, &rawVenueID, &rawKind, &rawRole, &rawSubmitter, &signal.Note, &signal.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan signal: %w", err)
	}

	signalID, err := id.ParseSignalID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt signal id %q: %w", rawID, err)
	}
	venueID, err := id.ParseVenueID(rawVenueID)
	if err != nil {
		return nil, fmt.Errorf("corrupt signal venue id %q: %w", rawVenueID, err)
	}
	kind, err := id.ParseSignalKind(rawKind)
	if err != nil {
		return nil, fmt.Errorf("corrupt signal kind %q: %w", rawKind, err)
	}
	role, err := id.ParseRole(rawRole)
	if err != nil {
		return nil, fmt.Errorf("corrupt signal role %q: %w", rawRole, err)
	}
	signal.ID = signalID
	signal.VenueID = venueID
	signal.Kind = kind
	signal.SourceRole = role
	if rawSubmitter.Valid {
		submitterID, err := id.ParseUserID(rawSubmitter.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt signal submitter id %q: %w", rawSubmitter.String, err)
		}
		signal.SubmitterID = &submitterID
	}
	return &signal, nil
}
