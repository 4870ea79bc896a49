package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"frontdesk/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// casScript writes a record hash only if its version field still matches.
// KEYS[1] record hash, KEYS[2] clinic/kind index set.
// ARGV[1] expected version, ARGV[2] value, ARGV[3] updated_at, ARGV[4] id.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if not cur then cur = '0' end
if cur ~= ARGV[1] then return -1 end
local next = tonumber(cur) + 1
redis.call('HSET', KEYS[1], 'value', ARGV[2], 'version', tostring(next), 'updated_at', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[4])
return next
`)

// RedisStore keeps each record in a hash and indexes ids per clinic and kind.
// The clinic id is wrapped in a hash tag so a clinic's keys share a slot.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger
	now    func() time.Time
}

// NewRedisStore wraps an existing client. prefix namespaces every key.
func NewRedisStore(client *redis.Client, prefix string, logger zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "frontdesk"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redis_store").Logger(),
		now:    time.Now,
	}
}

func (s *RedisStore) recordKey(k Key) string {
	return fmt.Sprintf("%s:{%s}:%s:%s", s.prefix, k.ClinicID, k.Kind, k.ID)
}

func (s *RedisStore) indexKey(clinicID string, kind Kind) string {
	return fmt.Sprintf("%s:{%s}:%s", s.prefix, clinicID, kind)
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("redis ping", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (Record, error) {
	fields, err := s.client.HGetAll(ctx, s.recordKey(key)).Result()
	if err != nil {
		return Record{}, unavailable("redis get "+key.String(), err)
	}
	if len(fields) == 0 {
		return Record{}, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	return decodeHash(key, fields)
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, key Key, expectedVersion int64, value []byte) (Record, error) {
	if err := key.Validate(); err != nil {
		return Record{}, err
	}
	now := s.now().UTC()
	res, err := casScript.Run(ctx, s.client,
		[]string{s.recordKey(key), s.indexKey(key.ClinicID, key.Kind)},
		strconv.FormatInt(expectedVersion, 10),
		value,
		now.Format(time.RFC3339Nano),
		key.ID,
	).Int64()
	if err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("compare-and-swap failed")
		return Record{}, unavailable("redis cas "+key.String(), err)
	}
	if res < 0 {
		return Record{}, fmt.Errorf("%s at version %d: %w", key, expectedVersion, domain.ErrConcurrentUpdateConflict)
	}
	return Record{
		Key:       key,
		Value:     append([]byte(nil), value...),
		Version:   res,
		UpdatedAt: now,
	}, nil
}

func (s *RedisStore) List(ctx context.Context, clinicID string, kind Kind) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(clinicID, kind)).Result()
	if err != nil {
		return nil, unavailable("redis list", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.recordKey(Key{ClinicID: clinicID, Kind: kind, ID: id}))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, unavailable("redis list", err)
	}

	out := make([]Record, 0, len(ids))
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeHash(Key{ClinicID: clinicID, Kind: kind, ID: id}, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func decodeHash(key Key, fields map[string]string) (Record, error) {
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("%s: bad version %q: %w", key, fields["version"], err)
	}
	rec := Record{Key: key, Value: []byte(fields["value"]), Version: version}
	if ts := fields["updated_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.UpdatedAt = t
		}
	}
	return rec, nil
}
