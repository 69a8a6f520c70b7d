// Package backend serves the appeals, penalties and company profile APIs the
// web app calls, backed by Postgres. It stands in for the real services in
// local and test environments.
package backend

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/appeal"
	"lfpappeals/web/internal/appealstore"
	"lfpappeals/web/internal/metrics"
)

// Store is the persistence the handlers need.
type Store interface {
	CreateAppeal(ctx context.Context, a appeal.Appeal) (string, error)
	FindAppeal(ctx context.Context, companyNumber, penaltyReference string) (appeal.Appeal, error)
	GetAppeal(ctx context.Context, companyNumber, id string) (appeal.Appeal, error)
	LatePenalties(ctx context.Context, companyNumber string) (appeal.PenaltyList, error)
	CompanyName(ctx context.Context, companyNumber string) (string, error)
	Ping(ctx context.Context) error
}

type Handler struct {
	store  Store
	apiKey string
}

func NewHandler(store Store, apiKey string) *Handler {
	return &Handler{store: store, apiKey: apiKey}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)
	r.Use(metrics.InstrumentHandler)

	r.Get("/healthcheck", h.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Post("/companies/{companyNumber}/appeals", h.createAppeal)
		r.Get("/companies/{companyNumber}/appeals", h.findAppeal)
		r.Get("/companies/{companyNumber}/appeals/{appealID}", h.getAppeal)
		r.Get("/company/{companyNumber}/penalties/late-filing", h.latePenalties)
		r.Get("/company/{companyNumber}", h.companyProfile)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		log.WithError(err).Warn("backend: database unavailable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ok": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) createAppeal(w http.ResponseWriter, r *http.Request) {
	companyNumber := chi.URLParam(r, "companyNumber")

	var a appeal.Appeal
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if msg := checkAppeal(companyNumber, a); msg != "" {
		writeError(w, http.StatusUnprocessableEntity, msg)
		return
	}

	id, err := h.store.CreateAppeal(r.Context(), a)
	if errors.Is(err, appealstore.ErrDuplicate) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	log.WithFields(log.Fields{
		"appeal_id":         id,
		"company_number":    companyNumber,
		"penalty_reference": a.PenaltyIdentifier.PenaltyReference,
	}).Info("backend: appeal created")

	w.Header().Set("Location", "/companies/"+companyNumber+"/appeals/"+id)
	w.WriteHeader(http.StatusCreated)
}

// checkAppeal returns why a submitted appeal cannot be stored, or "".
func checkAppeal(companyNumber string, a appeal.Appeal) string {
	id := a.PenaltyIdentifier
	switch {
	case id.CompanyNumber != companyNumber:
		return "company number does not match path"
	case id.PenaltyReference == "":
		return "penalty reference is required"
	case a.CurrentReasonType == appeal.ReasonIllness && a.Reasons.Illness == nil,
		a.CurrentReasonType == appeal.ReasonOther && a.Reasons.Other == nil:
		return "reason details are required"
	case a.CurrentReasonType != appeal.ReasonIllness && a.CurrentReasonType != appeal.ReasonOther:
		return "unknown reason type"
	}
	return ""
}

func (h *Handler) findAppeal(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimSpace(r.URL.Query().Get("penaltyReference"))
	if reference == "" {
		writeError(w, http.StatusBadRequest, "penaltyReference is required")
		return
	}
	a, err := h.store.FindAppeal(r.Context(), chi.URLParam(r, "companyNumber"), reference)
	h.respond(w, r, a, err)
}

func (h *Handler) getAppeal(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetAppeal(r.Context(), chi.URLParam(r, "companyNumber"), chi.URLParam(r, "appealID"))
	h.respond(w, r, a, err)
}

func (h *Handler) latePenalties(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.LatePenalties(r.Context(), chi.URLParam(r, "companyNumber"))
	h.respond(w, r, list, err)
}

type companyProfile struct {
	CompanyName   string `json:"company_name"`
	CompanyNumber string `json:"company_number"`
}

func (h *Handler) companyProfile(w http.ResponseWriter, r *http.Request) {
	companyNumber := chi.URLParam(r, "companyNumber")
	name, err := h.store.CompanyName(r.Context(), companyNumber)
	h.respond(w, r, companyProfile{CompanyName: name, CompanyNumber: companyNumber}, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, payload any, err error) {
	switch {
	case errors.Is(err, appealstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case err != nil:
		h.internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, payload)
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithError(err).WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	}).Error("backend: request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"request_id":  middleware.GetReqID(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
