// Package app wires the appeal wizard pages, their navigation and processors
// into an HTTP router.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/email"
	"lfpappeals/web/internal/evidence"
	"lfpappeals/web/internal/metrics"
	"lfpappeals/web/internal/processor"
	"lfpappeals/web/internal/session"
	"lfpappeals/web/internal/wizard"
)

type PenaltiesAPI interface {
	LatePenalties(ctx context.Context, token, companyNumber string) (appeal.PenaltyList, error)
}

type CompanyProfileAPI interface {
	CompanyName(ctx context.Context, token, companyNumber string) (string, error)
}

// Pinger is a dependency the health check reports on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the pages call. They are built in main
// and passed in explicitly.
type Dependencies struct {
	Sessions  session.Store
	Renderer  wizard.Renderer
	Appeals   processor.AppealsAPI
	Penalties PenaltiesAPI
	Companies CompanyProfileAPI
	Email     email.Sender
	Evidence  evidence.Store
	// Health lists named dependencies checked by /healthcheck.
	Health map[string]Pinger
	Now    func() time.Time
}

type Server struct {
	cfg    config.Config
	deps   Dependencies
	paths  Paths
	engine *wizard.Engine
}

func NewServer(cfg config.Config, deps Dependencies) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	paths := NewPaths(Root)
	return &Server{
		cfg:   cfg,
		deps:  deps,
		paths: paths,
		engine: &wizard.Engine{
			Sessions:  deps.Sessions,
			Renderer:  deps.Renderer,
			Features:  cfg.Features,
			EntryPath: paths.Start,
			Globals:   map[string]any{"Paths": paths},
		},
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(withRequestLogging)
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthcheck", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(s.deps.Sessions, session.CookieConfig{
			Name:   s.cfg.CookieName,
			Domain: s.cfg.CookieDomain,
			Secret: s.cfg.CookieSecret,
			Secure: s.cfg.CookieSecure,
			TTL:    s.cfg.SessionTTL,
		}, s.newSession))
		s.mountPages(r)
	})
	return r
}

// newSession stamps fresh sessions with the development identity when one is
// configured; otherwise sign-in happens in front of this service.
func (s *Server) newSession(sess *session.Session) {
	if s.cfg.DevUserEmail == "" {
		return
	}
	sess.SignIn = &session.SignInInfo{
		UserID:      "dev-" + s.cfg.DevUserEmail,
		Email:       s.cfg.DevUserEmail,
		AccessToken: s.cfg.APIKey,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Health))
	ok := true
	for name, dep := range s.deps.Health {
		if err := dep.Ping(ctx); err != nil {
			log.WithError(err).WithField("dependency", name).Warn("healthcheck: dependency unavailable")
			checks[name] = "unavailable"
			ok = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"ok": ok, "checks": checks})
}

func withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		writer.Header().Set("X-Request-ID", requestID)
		writer.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(writer, r)

		log.WithFields(log.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      writer.status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

type requestIDKey struct{}

// RequestID returns the id withRequestLogging attached to ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
