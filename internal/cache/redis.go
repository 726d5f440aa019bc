package cache

import (
	"alcyxob/coaching-platform/internal/logger"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// genTTL bounds how long an idle week's generation counter is kept.
const genTTL = 24 * time.Hour

// RedisWeekCache shares resolved weeks between API instances.
type RedisWeekCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisWeekCache(log *logger.Logger, addr, prefix string, ttl time.Duration) (*RedisWeekCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if prefix == "" {
		prefix = "coach"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisWeekCache{
		log:    log.With("service", "RedisWeekCache"),
		rdb:    rdb,
		ttl:    ttl,
		prefix: prefix,
	}, nil
}

func (c *RedisWeekCache) Get(ctx context.Context, clientID, programID, weekKey string) ([]byte, int64, bool, error) {
	vals, err := c.rdb.MGet(ctx,
		entryKey(c.prefix, clientID, programID, weekKey),
		genKey(c.prefix, clientID, programID, weekKey),
	).Result()
	if err != nil {
		return nil, 0, false, err
	}
	gen, err := parseGen(vals[1])
	if err != nil {
		return nil, 0, false, err
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	return []byte(raw), gen, true, nil
}

// Set writes value inside a WATCH on the week's generation key, so a
// concurrent Invalidate aborts it.
func (c *RedisWeekCache) Set(ctx context.Context, clientID, programID, weekKey string, gen int64, value []byte) error {
	gk := genKey(c.prefix, clientID, programID, weekKey)
	err := c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, gk).Int64()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, entryKey(c.prefix, clientID, programID, weekKey), value, c.ttl)
			return nil
		})
		return err
	}, gk)
	if errors.Is(err, goredis.TxFailedErr) {
		c.log.Debug("week cache write skipped after invalidation", "clientId", clientID, "programId", programID, "week", weekKey)
		return nil
	}
	return err
}

func (c *RedisWeekCache) Invalidate(ctx context.Context, clientID, programID string, weekKeys ...string) error {
	if len(weekKeys) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, wk := range weekKeys {
			gk := genKey(c.prefix, clientID, programID, wk)
			pipe.Del(ctx, entryKey(c.prefix, clientID, programID, wk))
			pipe.Incr(ctx, gk)
			pipe.Expire(ctx, gk, genTTL)
		}
		return nil
	})
	if err != nil {
		c.log.Warn("week cache invalidation failed", "clientId", clientID, "programId", programID, "weeks", weekKeys, "error", err)
		return err
	}
	return nil
}

func parseGen(v interface{}) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	gen, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("week cache generation %q: %w", s, err)
	}
	return gen, nil
}

func (c *RedisWeekCache) Close() error {
	return c.rdb.Close()
}
