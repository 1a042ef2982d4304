package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"HealthIntake/metrics"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// endpoint routes by method and answers everything else with a JSON 405.
// With cors set, OPTIONS preflights succeed and responses carry the CORS headers.
type endpoint struct {
	methods map[string]http.HandlerFunc
	cors    bool
}

func (e endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if e.cors {
		allowed := make([]string, 0, len(e.methods)+1)
		for m := range e.methods {
			allowed = append(allowed, m)
		}
		slices.Sort(allowed)
		allowed = append(allowed, http.MethodOptions)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(allowed, ", "))
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	h, ok := e.methods[r.Method]
	if !ok && r.Method == http.MethodHead {
		h, ok = e.methods[http.MethodGet]
	}
	if !ok {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	h(w, r)
}

func one(method string, h http.HandlerFunc) map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{method: h}
}

// withAccessLog attaches the request logger, a request id and an access log
// line with route metrics to every request
func withAccessLog(logger zerolog.Logger, next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, status, d)
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(next)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	return hlog.NewHandler(logger)(h)
}
