package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"waypost/internal/auth/models"
	userstore "waypost/internal/auth/store/user"
	badgemodels "waypost/internal/badge/models"
	badgestore "waypost/internal/badge/store"
	"waypost/internal/db"
	"waypost/internal/platform/config"
	"waypost/internal/platform/logger"
	id "waypost/pkg/domain"
	"waypost/pkg/secrets"
)

// main provisions operator accounts. Self-registration only creates USER
// accounts, so admins and verified venue-admin links are seeded here.
func main() {
	var (
		email       = flag.String("email", "", "admin account email (required)")
		password    = flag.String("password", "", "admin account password (required)")
		displayName = flag.String("name", "", "display name (defaults to email)")
		venueID     = flag.String("venue", "", "optional venue id to link as verified admin")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	if *email == "" || *password == "" {
		log.Error("-email and -password are required")
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		log.Error("DATABASE_URL is required for seeding")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	hash, err := secrets.Hash(*password)
	if err != nil {
		log.Error("hash password", slog.String("error", err.Error()))
		os.Exit(1)
	}

	name := *displayName
	if name == "" {
		name = *email
	}
	admin := &models.User{
		ID:           id.NewUserID(),
		Email:        *email,
		DisplayName:  name,
		Role:         id.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := userstore.NewPostgres(database).Create(ctx, admin); err != nil {
		log.Error("create admin", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("admin created", slog.String("user_id", admin.ID.String()), slog.String("email", admin.Email))

	if *venueID == "" {
		return
	}
	parsedVenueID, err := id.ParseVenueID(*venueID)
	if err != nil {
		log.Error("invalid venue id", slog.String("error", err.Error()))
		os.Exit(1)
	}
	now := time.Now().UTC()
	link := &badgemodels.VenueAdmin{
		VenueID:    parsedVenueID,
		UserID:     admin.ID,
		Verified:   true,
		VerifiedAt: &now,
		CreatedAt:  now,
	}
	if err := badgestore.NewPostgres(database).UpsertAdmin(ctx, link); err != nil {
		log.Error("link venue admin", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("verified venue admin linked", slog.String("venue_id", parsedVenueID.String()))
}
