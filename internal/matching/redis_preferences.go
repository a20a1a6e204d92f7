package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const preferenceKeyPrefix = "matching:prefs:"

// RedisPreferenceRepository keeps preference vectors as JSON documents. Writes
// use WATCH/MULTI so a concurrent writer turns into ErrVersionConflict.
type RedisPreferenceRepository struct {
	client *redis.Client
}

func NewRedisPreferenceRepository(client *redis.Client) *RedisPreferenceRepository {
	return &RedisPreferenceRepository{client: client}
}

func preferenceKey(userID int64) string {
	return fmt.Sprintf("%s%d", preferenceKeyPrefix, userID)
}

func (r *RedisPreferenceRepository) GetPreferences(ctx context.Context, userID int64) (*PreferenceVector, error) {
	data, err := r.client.Get(ctx, preferenceKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPreferencesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences %d: %w", userID, err)
	}
	return decodePreferences(data)
}

func (r *RedisPreferenceRepository) SavePreferences(ctx context.Context, p *PreferenceVector) error {
	key := preferenceKey(p.UserID)

	next := p.Clone()
	next.Version = p.Version + 1
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode preferences %d: %w", p.UserID, err)
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		var stored int64
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			current, err := decodePreferences(data)
			if err != nil {
				return err
			}
			stored = current.Version
		}

		if stored != p.Version {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		p.Version = next.Version
		return nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return ErrVersionConflict
	default:
		return fmt.Errorf("save preferences %d: %w", p.UserID, err)
	}
}

func decodePreferences(data []byte) (*PreferenceVector, error) {
	var p PreferenceVector
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode preferences: %w", err)
	}
	if p.LikedProfiles == nil {
		p.LikedProfiles = IDSet{}
	}
	if p.DislikedProfiles == nil {
		p.DislikedProfiles = IDSet{}
	}
	if p.WorkoutTypePreferences == nil {
		p.WorkoutTypePreferences = map[string]float64{}
	}
	if p.ExperienceLevelPreferences == nil {
		p.ExperienceLevelPreferences = map[string]float64{}
	}
	return &p, nil
}
