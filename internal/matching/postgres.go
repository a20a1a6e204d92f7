package matching

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// migrations create the matching tables. Each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS workout_profiles (
        user_id BIGINT PRIMARY KEY,
        display_name VARCHAR(100),
        workout_types TEXT[] NOT NULL DEFAULT '{}',
        experience_level VARCHAR(20),
        preferred_time VARCHAR(30),
        location_lat DOUBLE PRECISION,
        location_lng DOUBLE PRECISION,
        bio TEXT,
        images TEXT[] NOT NULL DEFAULT '{}',
        metrics JSONB,
        last_active TIMESTAMPTZ,
        created_at TIMESTAMPTZ DEFAULT NOW(),
        updated_at TIMESTAMPTZ DEFAULT NOW()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_workout_profiles_location
        ON workout_profiles(location_lat, location_lng)`,

	`CREATE TABLE IF NOT EXISTS preference_vectors (
        user_id BIGINT PRIMARY KEY,
        workout_type_preferences JSONB NOT NULL DEFAULT '{}',
        experience_level_preferences JSONB NOT NULL DEFAULT '{}',
        liked_profiles BIGINT[] NOT NULL DEFAULT '{}',
        disliked_profiles BIGINT[] NOT NULL DEFAULT '{}',
        engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
        version BIGINT NOT NULL DEFAULT 1,
        updated_at TIMESTAMPTZ DEFAULT NOW()
    )`,

	`CREATE TABLE IF NOT EXISTS workout_matches (
        id BIGSERIAL PRIMARY KEY,
        user_a BIGINT NOT NULL,
        user_b BIGINT NOT NULL,
        created_at TIMESTAMPTZ DEFAULT NOW(),
        active BOOLEAN NOT NULL DEFAULT TRUE,
        UNIQUE(user_a, user_b),
        CHECK (user_a < user_b)
    )`,
	`CREATE INDEX IF NOT EXISTS idx_workout_matches_user_b ON workout_matches(user_b)`,
}

// Migrate creates the matching schema if it does not exist yet.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

// metricsColumn maps ProfileMetrics to a JSONB column.
type metricsColumn ProfileMetrics

func (m *metricsColumn) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metrics type %T", value)
	}
}

func (m metricsColumn) Value() (driver.Value, error) {
	return json.Marshal(ProfileMetrics(m))
}

// weightsColumn maps a preference weight map to a JSONB column.
type weightsColumn map[string]float64

func (w *weightsColumn) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*w = weightsColumn{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported weights type %T", value)
	}
	out := map[string]float64{}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*w = out
	return nil
}

func (w weightsColumn) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]float64(w))
}

type profileRow struct {
	UserID          int64           `db:"user_id"`
	DisplayName     sql.NullString  `db:"display_name"`
	WorkoutTypes    pq.StringArray  `db:"workout_types"`
	ExperienceLevel sql.NullString  `db:"experience_level"`
	PreferredTime   sql.NullString  `db:"preferred_time"`
	LocationLat     sql.NullFloat64 `db:"location_lat"`
	LocationLng     sql.NullFloat64 `db:"location_lng"`
	Bio             sql.NullString  `db:"bio"`
	Images          pq.StringArray  `db:"images"`
	Metrics         *metricsColumn  `db:"metrics"`
	LastActive      sql.NullTime    `db:"last_active"`
	CreatedAt       sql.NullTime    `db:"created_at"`
	UpdatedAt       sql.NullTime    `db:"updated_at"`
}

const profileColumns = `user_id, display_name, workout_types, experience_level, preferred_time,
        location_lat, location_lng, bio, images, metrics, last_active, created_at, updated_at`

func (r *profileRow) toProfile() *Profile {
	p := &Profile{
		UserID:          r.UserID,
		DisplayName:     r.DisplayName.String,
		WorkoutTypes:    []string(r.WorkoutTypes),
		ExperienceLevel: ExperienceLevel(r.ExperienceLevel.String),
		PreferredTime:   r.PreferredTime.String,
		Bio:             r.Bio.String,
		Images:          []string(r.Images),
		LastActive:      nullTimePtr(r.LastActive),
		CreatedAt:       nullTimePtr(r.CreatedAt),
		UpdatedAt:       nullTimePtr(r.UpdatedAt),
	}
	if r.LocationLat.Valid && r.LocationLng.Valid {
		p.Location = &Location{Lat: r.LocationLat.Float64, Lng: r.LocationLng.Float64}
	}
	if r.Metrics != nil {
		m := ProfileMetrics(*r.Metrics)
		p.Metrics = &m
	}
	return p
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// PostgresProfileRepository reads workout profiles and writes their metrics
// and activity timestamps.
type PostgresProfileRepository struct {
	db *sqlx.DB
}

func NewPostgresProfileRepository(db *sqlx.DB) *PostgresProfileRepository {
	return &PostgresProfileRepository{db: db}
}

// UpsertProfile creates or replaces a profile. Profile setup lives outside
// this service; this is used for seeding and tests.
func (r *PostgresProfileRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	var lat, lng sql.NullFloat64
	if p.Location.Valid() {
		lat = sql.NullFloat64{Float64: p.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: p.Location.Lng, Valid: true}
	}
	var metrics interface{}
	if p.Metrics != nil {
		metrics = metricsColumn(*p.Metrics)
	}

	query := `
        INSERT INTO workout_profiles (
            user_id, display_name, workout_types, experience_level, preferred_time,
            location_lat, location_lng, bio, images, metrics, last_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (user_id) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            workout_types = EXCLUDED.workout_types,
            experience_level = EXCLUDED.experience_level,
            preferred_time = EXCLUDED.preferred_time,
            location_lat = EXCLUDED.location_lat,
            location_lng = EXCLUDED.location_lng,
            bio = EXCLUDED.bio,
            images = EXCLUDED.images,
            metrics = EXCLUDED.metrics,
            last_active = EXCLUDED.last_active,
            updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.DisplayName, pq.Array(nonNilStrings(p.WorkoutTypes)),
		string(p.ExperienceLevel), p.PreferredTime, lat, lng, p.Bio,
		pq.Array(nonNilStrings(p.Images)), metrics, p.LastActive,
	)
	if err != nil {
		return fmt.Errorf("upsert profile %d: %w", p.UserID, err)
	}
	return nil
}

func (r *PostgresProfileRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var row profileRow
	query := `SELECT ` + profileColumns + ` FROM workout_profiles WHERE user_id = $1`

	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %d: %w", userID, err)
	}
	return row.toProfile(), nil
}

func (r *PostgresProfileRepository) ListCandidates(ctx context.Context, userID int64, filter CandidateFilter) ([]*Profile, error) {
	useBox := filter.Center.Valid() && filter.RadiusMiles > 0
	var minLat, maxLat, minLng, maxLng float64
	if useBox {
		minLat, maxLat, minLng, maxLng = BoundingBox(filter.Center, filter.RadiusMiles)
	}

	var limit sql.NullInt64
	if filter.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(filter.Limit), Valid: true}
	}

	query := `
        SELECT ` + profileColumns + `
        FROM workout_profiles
        WHERE user_id <> $1
            AND NOT (user_id = ANY($2))
            AND (NOT $3 OR (
                location_lat BETWEEN $4 AND $5
                AND location_lng BETWEEN $6 AND $7
            ))
        ORDER BY user_id
        LIMIT $8`

	var rows []profileRow
	err := r.db.SelectContext(ctx, &rows, query,
		userID, pq.Array(nonNilIDs(filter.ExcludeIDs)), useBox,
		minLat, maxLat, minLng, maxLng, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates for %d: %w", userID, err)
	}

	out := make([]*Profile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toProfile())
	}
	return out, nil
}

// UpdateMetrics locks the profile row for the read-modify-write.
func (r *PostgresProfileRepository) UpdateMetrics(ctx context.Context, userID int64, fn func(m *ProfileMetrics)) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin metrics update: %w", err)
	}
	defer tx.Rollback()

	var current *metricsColumn
	err = tx.QueryRowxContext(ctx,
		`SELECT metrics FROM workout_profiles WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("lock metrics for %d: %w", userID, err)
	}

	m := DefaultMetrics()
	if current != nil {
		m = ProfileMetrics(*current)
	}
	fn(&m)

	if _, err := tx.ExecContext(ctx,
		`UPDATE workout_profiles SET metrics = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, metricsColumn(m),
	); err != nil {
		return fmt.Errorf("write metrics for %d: %w", userID, err)
	}

	return tx.Commit()
}

func (r *PostgresProfileRepository) TouchLastActive(ctx context.Context, userID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE workout_profiles SET last_active = $2 WHERE user_id = $1`, userID, at)
	if err != nil {
		return fmt.Errorf("touch last active for %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

type preferenceRow struct {
	UserID                     int64         `db:"user_id"`
	WorkoutTypePreferences     weightsColumn `db:"workout_type_preferences"`
	ExperienceLevelPreferences weightsColumn `db:"experience_level_preferences"`
	LikedProfiles              pq.Int64Array `db:"liked_profiles"`
	DislikedProfiles           pq.Int64Array `db:"disliked_profiles"`
	EngagementScore            float64       `db:"engagement_score"`
	Version                    int64         `db:"version"`
	UpdatedAt                  sql.NullTime  `db:"updated_at"`
}

// PostgresPreferenceRepository stores preference vectors with a version
// column for optimistic updates.
type PostgresPreferenceRepository struct {
	db *sqlx.DB
}

func NewPostgresPreferenceRepository(db *sqlx.DB) *PostgresPreferenceRepository {
	return &PostgresPreferenceRepository{db: db}
}

func (r *PostgresPreferenceRepository) GetPreferences(ctx context.Context, userID int64) (*PreferenceVector, error) {
	var row preferenceRow
	query := `
        SELECT user_id, workout_type_preferences, experience_level_preferences,
            liked_profiles, disliked_profiles, engagement_score, version, updated_at
        FROM preference_vectors
        WHERE user_id = $1`

	err := r.db.GetContext(ctx, &row, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences %d: %w", userID, err)
	}

	return &PreferenceVector{
		UserID:                     row.UserID,
		WorkoutTypePreferences:     map[string]float64(row.WorkoutTypePreferences),
		ExperienceLevelPreferences: map[string]float64(row.ExperienceLevelPreferences),
		LikedProfiles:              NewIDSet(row.LikedProfiles...),
		DislikedProfiles:           NewIDSet(row.DislikedProfiles...),
		EngagementScore:            row.EngagementScore,
		Version:                    row.Version,
		UpdatedAt:                  row.UpdatedAt.Time,
	}, nil
}

func (r *PostgresPreferenceRepository) SavePreferences(ctx context.Context, p *PreferenceVector) error {
	args := []interface{}{
		p.UserID,
		weightsColumn(p.WorkoutTypePreferences),
		weightsColumn(p.ExperienceLevelPreferences),
		pq.Array(p.LikedProfiles.Slice()),
		pq.Array(p.DislikedProfiles.Slice()),
		p.EngagementScore,
		p.UpdatedAt,
		p.Version,
	}

	var query string
	if p.Version == 0 {
		query = `
            INSERT INTO preference_vectors (
                user_id, workout_type_preferences, experience_level_preferences,
                liked_profiles, disliked_profiles, engagement_score, updated_at, version
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::bigint + 1)
            ON CONFLICT (user_id) DO NOTHING`
	} else {
		query = `
            UPDATE preference_vectors SET
                workout_type_preferences = $2,
                experience_level_preferences = $3,
                liked_profiles = $4,
                disliked_profiles = $5,
                engagement_score = $6,
                updated_at = $7,
                version = version + 1
            WHERE user_id = $1 AND version = $8`
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save preferences %d: %w", p.UserID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save preferences %d: %w", p.UserID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	p.Version++
	return nil
}

// PostgresMatchRepository relies on UNIQUE(user_a, user_b) to keep one
// match per pair.
type PostgresMatchRepository struct {
	db *sqlx.DB
}

func NewPostgresMatchRepository(db *sqlx.DB) *PostgresMatchRepository {
	return &PostgresMatchRepository{db: db}
}

func (r *PostgresMatchRepository) CreateIfAbsent(ctx context.Context, userA, userB int64, at time.Time) (*MatchRecord, bool, error) {
	a, b := PairKey(userA, userB)

	var match MatchRecord
	err := r.db.GetContext(ctx, &match, `
        INSERT INTO workout_matches (user_a, user_b, created_at, active)
        VALUES ($1, $2, $3, TRUE)
        ON CONFLICT (user_a, user_b) DO NOTHING
        RETURNING id, user_a, user_b, created_at, active`,
		a, b, at,
	)
	if err == nil {
		return &match, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create match %d-%d: %w", a, b, err)
	}

	err = r.db.GetContext(ctx, &match, `
        SELECT id, user_a, user_b, created_at, active
        FROM workout_matches
        WHERE user_a = $1 AND user_b = $2`,
		a, b,
	)
	if err != nil {
		return nil, false, fmt.Errorf("load existing match %d-%d: %w", a, b, err)
	}
	return &match, false, nil
}

func (r *PostgresMatchRepository) ListMatches(ctx context.Context, userID int64, activeOnly bool) ([]*MatchRecord, error) {
	query := `
        SELECT id, user_a, user_b, created_at, active
        FROM workout_matches
        WHERE (user_a = $1 OR user_b = $1)
            AND (NOT $2 OR active)
        ORDER BY created_at DESC, id DESC`

	matches := []*MatchRecord{}
	if err := r.db.SelectContext(ctx, &matches, query, userID, activeOnly); err != nil {
		return nil, fmt.Errorf("list matches for %d: %w", userID, err)
	}
	return matches, nil
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
