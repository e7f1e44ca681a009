package throttle

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
)

// redisTimeout bounds every Redis round trip. A request never waits longer
// than this on the counter store.
const redisTimeout = 500 * time.Millisecond

// Redis keeps counters in Redis so every server instance shares them.
//
// Each (client, window) pair is its own key. INCRBY and EXPIRE run in one
// MULTI/EXEC; a key lives for three windows so the previous window is still
// readable while the current one fills.
//
// FALLBACK:
// When Redis fails, counting moves to an in-process store until Redis
// answers again. The switch in each direction is logged once.
type Redis struct {
	client redis.Cmdable
	prefix string
	window time.Duration
	local  httprate.LimitCounter
	logger *slog.Logger

	fallback atomic.Bool
}

var _ httprate.LimitCounter = (*Redis)(nil)

// NewRedis returns a counter store backed by client.
func NewRedis(client redis.Cmdable, window time.Duration, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		prefix: "choirhub:throttle:",
		window: window,
		local:  httprate.NewLocalLimitCounter(window),
		logger: logger,
	}
}

// Config is called by httprate with the limiter's settings.
func (r *Redis) Config(requestLimit int, windowLength time.Duration) {
	r.window = windowLength
	r.local.Config(requestLimit, windowLength)
}

func (r *Redis) key(client string, window time.Time) string {
	return r.prefix + client + strconv.FormatInt(window.Unix(), 10)
}

func (r *Redis) Increment(key string, currentWindow time.Time) error {
	return r.IncrementBy(key, currentWindow, 1)
}

func (r *Redis) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	k := r.key(key, currentWindow)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.IncrBy(ctx, k, int64(amount))
		pipe.Expire(ctx, k, 3*r.window)
		return nil
	})
	if err != nil {
		r.failed(err)
		return r.local.IncrementBy(key, currentWindow, amount)
	}
	r.recovered()
	return nil
}

func (r *Redis) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	values, err := r.client.MGet(ctx, r.key(key, currentWindow), r.key(key, previousWindow)).Result()
	if err != nil {
		r.failed(err)
		return r.local.Get(key, currentWindow, previousWindow)
	}
	r.recovered()
	return count(values, 0), count(values, 1), nil
}

// count reads one MGET slot. Missing keys come back as nil.
func count(values []any, i int) int {
	if i >= len(values) {
		return 0
	}
	s, ok := values[i].(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func (r *Redis) failed(err error) {
	if r.fallback.CompareAndSwap(false, true) {
		r.logger.Warn("redis throttle unavailable; counting in process",
			slog.String("error", err.Error()),
		)
	}
}

func (r *Redis) recovered() {
	if r.fallback.CompareAndSwap(true, false) {
		r.logger.Info("redis throttle reachable again")
	}
}
