package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// ThrottleRecorder counts requests refused by the limiter.
type ThrottleRecorder interface {
	Throttled()
}

// Throttle limits each client IP to limit requests per window, counting in
// counter.
//
// httprate sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset on every response; a refused request also gets
// Retry-After and the JSON 429 body below. If the counter store fails the
// request is let through and the failure logged. rec may be nil.
//
// The client IP comes from r.RemoteAddr, which chi's RealIP middleware has
// already rewritten when the server sits behind a proxy.
func Throttle(limit int, window time.Duration, counter httprate.LimitCounter, rec ThrottleRecorder, logger *slog.Logger) func(http.Handler) http.Handler {
	onLimited := func(w http.ResponseWriter, r *http.Request) {
		if rec != nil {
			rec.Throttled()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Too Many Attempts."})
	}

	return func(next http.Handler) http.Handler {
		return httprate.Limit(limit, window,
			httprate.WithKeyByIP(),
			httprate.WithLimitCounter(counter),
			httprate.WithLimitHandler(onLimited),
			httprate.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
				logger.Warn("throttle unavailable", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
			}),
		)(next)
	}
}
