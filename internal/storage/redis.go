package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "domwatch/pkg/logx"
)

const (
	redisAuditKey  = "domwatch:audit"
	redisMarkKey   = "domwatch:mark:"
	redisAuditCap  = 10000
	redisDialCheck = 3 * time.Second
)

// redisStore keeps audit entries in a capped list and marks as expiring keys,
// so Redis handles mark expiry natively.
type redisStore struct {
	rdb *redis.Client
	log logx.Logger
}

func openRedis(cfg Config, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("storage.addr is required for redis driver")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisDialCheck)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &redisStore{rdb: rdb, log: log}, nil
}

func (s *redisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *redisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.rdb == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, redisAuditKey, b)
	pipe.LTrim(ctx, redisAuditKey, -redisAuditCap, -1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) PutMark(ctx context.Context, key string, until time.Time) error {
	if s == nil || s.rdb == nil {
		return ErrDisabled
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, redisMarkKey+key, until.UnixMilli(), ttl).Err()
}

func (s *redisStore) GetMark(ctx context.Context, key string) (time.Time, bool, error) {
	if s == nil || s.rdb == nil {
		return time.Time{}, false, ErrDisabled
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return time.Time{}, false, nil
	}
	v, err := s.rdb.Get(ctx, redisMarkKey+key).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}
