package http

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Calendar   *CalendarHandler
	Bookings   *BookingHandler
	Health     Pinger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Calendar != nil {
		mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Calendar.Month(w, r)
		})
		mux.HandleFunc("/calendar/signal", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Calendar.Signal(w, r)
		})
		mux.HandleFunc("/calendar/changes", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Calendar.Changes(w, r)
		})
	}

	if cfg.Bookings != nil {
		mux.HandleFunc("/identity/verify", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Bookings.Verify(w, r)
		})
		mux.HandleFunc("/bookings/toggle", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Bookings.Toggle(w, r)
		})
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		healthz(w, r, cfg.Health)
	})

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func healthz(w http.ResponseWriter, r *http.Request, pinger Pinger) {
	ctx := r.Context()
	resp := newResponder(LoggerFromContext(ctx))
	if pinger == nil {
		resp.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pinger.Ping(pingCtx); err != nil {
		resp.loggerFor(ctx).ErrorContext(ctx, "store ping failed", "error", err)
		resp.writeJSON(ctx, w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	resp.writeJSON(ctx, w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
