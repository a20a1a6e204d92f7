package main

import (
	"context"
	"fmt"

	"github.com/imadgeboyega/fitmatch-backend/internal/common/database"
	"github.com/imadgeboyega/fitmatch-backend/internal/common/logging"
	"github.com/imadgeboyega/fitmatch-backend/internal/config"
	"github.com/imadgeboyega/fitmatch-backend/internal/matching"
)

// stores bundles the repositories selected by PREFERENCE_STORE along with
// their health checks and cleanup hooks.
type stores struct {
	profiles    matching.ProfileRepository
	preferences matching.PreferenceRepository
	matches     matching.MatchRepository

	checks  map[string]func(ctx context.Context) error
	closers []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logging.Warn().Err(err).Msg("Error closing store")
		}
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{checks: map[string]func(ctx context.Context) error{}}

	if cfg.PreferenceStore == "memory" {
		logging.Warn().Msg("Using in-memory stores, data will not survive a restart")
		mem := matching.NewMemoryStore()
		s.profiles, s.preferences, s.matches = mem, mem, mem
		return s, nil
	}

	logging.Info().Msg("Connecting to PostgreSQL")
	db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, db.Close)
	s.checks["postgres"] = db.PingContext

	if err := matching.Migrate(ctx, db); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logging.Info().Msg("Database migrations completed")

	s.profiles = matching.NewPostgresProfileRepository(db)
	s.matches = matching.NewPostgresMatchRepository(db)
	s.preferences = matching.NewPostgresPreferenceRepository(db)

	if cfg.PreferenceStore == "redis" {
		logging.Info().Msg("Connecting to Redis")
		client, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		s.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		s.preferences = matching.NewRedisPreferenceRepository(client)
	}

	logging.Info().Str("preference_store", cfg.PreferenceStore).Msg("Stores ready")
	return s, nil
}
