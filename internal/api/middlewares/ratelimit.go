package middlewares

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// localAddrs are never rate limited. The desktop shell talks to the service
// from the same machine, so throttling it would only hurt the UI.
var localAddrs = map[string]bool{
	"127.0.0.1": true,
	"::1":       true,
	"localhost": true,
}

// RateLimit throttles by client IP using an in-memory store. The rate uses
// the "<limit>-<period>" format, for example "30-M" for thirty per minute.
func RateLimit(rate string, logger *log.Logger) func(http.Handler) http.Handler {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		logger.Warn("invalid rate limit, using 30-M", "rate", rate, "err", err)
		parsed, _ = limiter.NewRateFromFormatted("30-M")
	}
	lim := limiter.New(memory.NewStore(), parsed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			if localAddrs[ip] {
				next.ServeHTTP(w, r)
				return
			}

			lctx, err := lim.Get(r.Context(), ip)
			if err != nil {
				logger.Error("rate limiter failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

			if lctx.Reached {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
