package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// RouterConfig wires the handlers and cross cutting middleware for the API.
// Sessions guards every route except sign-in and the break insertion trigger,
// which performs its own scheduler-or-admin authorization.
type RouterConfig struct {
	Auth       *AuthHandler
	Entries    *EntryHandler
	Users      *UserHandler
	AutoBreaks *AutoBreakHandler
	Sessions   SessionValidator
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.HandlerFunc {
		if cfg.Sessions == nil {
			return h
		}
		wrapped := RequireSession(cfg.Sessions, cfg.Logger)(h)
		return wrapped.ServeHTTP
	}

	if cfg.Auth != nil {
		mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/api/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
	}

	if cfg.AutoBreaks != nil {
		mux.HandleFunc("/api/time/auto-breaks", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.AutoBreaks.TriggerInsertion(w, r)
		})
	}

	if cfg.Entries != nil {
		mux.HandleFunc("/api/time/entries", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Entries.List(w, r)
			case http.MethodPost:
				cfg.Entries.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/api/time/entries/", protect(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.URL.Path, "/api/time/entries/")
			if raw == "" {
				http.NotFound(w, r)
				return
			}
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithEntryID(r.Context(), id))
			switch r.Method {
			case http.MethodPut:
				cfg.Entries.Update(w, r)
			case http.MethodDelete:
				cfg.Entries.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		}))
		mux.HandleFunc("/api/time/start", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Entries.Start(w, r)
		}))
		mux.HandleFunc("/api/time/stop", protect(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Entries.Stop(w, r)
		}))
	}

	if cfg.Users != nil {
		mux.HandleFunc("/api/users", protect(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		}))
		mux.HandleFunc("/api/users/", protect(func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
			switch {
			case strings.HasSuffix(rest, "/break-setting"):
				id := strings.TrimSuffix(rest, "/break-setting")
				if id == "" || strings.Contains(id, "/") {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				r = r.WithContext(ContextWithUserID(r.Context(), id))
				cfg.Users.UpdateBreakSetting(w, r)
			case strings.HasSuffix(rest, "/status"):
				id := strings.TrimSuffix(rest, "/status")
				if id == "" || strings.Contains(id, "/") {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				r = r.WithContext(ContextWithUserID(r.Context(), id))
				cfg.Users.UpdateStatus(w, r)
			default:
				if rest == "" || strings.Contains(rest, "/") {
					http.NotFound(w, r)
					return
				}
				if r.Method != http.MethodDelete {
					methodNotAllowed(w, http.MethodDelete)
					return
				}
				r = r.WithContext(ContextWithUserID(r.Context(), rest))
				cfg.Users.Delete(w, r)
			}
		}))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
