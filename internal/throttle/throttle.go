// Package throttle holds the counter stores behind the API rate limit.
//
// The limiting itself is go-chi/httprate's sliding window counter, wired in
// internal/middleware. Each client may make Limit requests per window; the
// previous window's count is weighted by how much of it still overlaps, so
// a burst straddling a window boundary still counts against the limit.
//
// This package only decides where the counts live: in process, or in Redis
// so that every server instance shares them.
package throttle

import (
	"time"

	"github.com/go-chi/httprate"
)

// NewLocal returns an in-process counter store.
func NewLocal(window time.Duration) httprate.LimitCounter {
	return httprate.NewLocalLimitCounter(window)
}
