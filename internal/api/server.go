package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spinrank/internal/bots"
	"spinrank/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the operator-facing admin surface. Nothing here is reachable by
// end users; every failure maps to an operator-visible status and log line.
type Server struct {
	cfg  config.ServiceConfig
	log  *slog.Logger
	bots *bots.Service
	mux  *chi.Mux
}

func New(cfg config.ServiceConfig, logger *slog.Logger, botSvc *bots.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		bots: botSvc,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.adminAuth)

		r.Post("/bots/generate", s.handleGenerate)
		r.Post("/bots/retire", s.handleRetire)
		r.Delete("/bots", s.handleHardDelete)
		r.Get("/bots", s.handleList)

		r.Post("/sim/run", s.handleRunWindow)
		r.Get("/sim/override", s.handleGetOverride)
		r.Put("/sim/override", s.handleSetOverride)
		r.Delete("/sim/override", s.handleClearOverride)

		r.Get("/pool", s.handlePoolStatus)
		r.Post("/pool/seed", s.handlePoolSeed)

		r.Get("/analytics", s.handleAnalytics)

		r.Post("/lottery/{prize}/participation", s.handleEnsureParticipation)
		r.Post("/lottery/{prize}/winner", s.handlePickWinner)
	})
}

func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type weekRequest struct {
	WeekKey string `json:"week_key"`
}

func weekFromRequest(r *http.Request, in weekRequest) string {
	week := strings.TrimSpace(in.WeekKey)
	if week == "" {
		week = strings.TrimSpace(r.URL.Query().Get("week"))
	}
	if week == "" {
		week = bots.CurrentWeekKey(time.Now())
	}
	return week
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in weekRequest
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	week := weekFromRequest(r, in)
	roster, err := s.bots.Generate(r.Context(), week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"week_key": week, "bots": roster})
}

func (s *Server) handleRetire(w http.ResponseWriter, r *http.Request) {
	var in weekRequest
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	week := weekFromRequest(r, in)
	n, err := s.bots.Retire(r.Context(), week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"week_key": week, "retired": n})
}

func (s *Server) handleHardDelete(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "yes" {
		writeError(w, http.StatusBadRequest, "hard delete requires confirm=yes")
		return
	}
	n, err := s.bots.HardDelete(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	week := weekFromRequest(r, weekRequest{})
	roster, err := s.bots.List(r.Context(), week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"week_key": week, "bots": roster})
}

type runRequest struct {
	Force      bool  `json:"force"`
	ForcedDay  *int  `json:"forced_day,omitempty"`
	ForcedRush *bool `json:"forced_rush,omitempty"`
}

func (s *Server) handleRunWindow(w http.ResponseWriter, r *http.Request) {
	var in runRequest
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := bots.RunOptions{Force: in.Force, ForcedRush: in.ForcedRush}
	if in.ForcedDay != nil {
		if *in.ForcedDay < 0 || *in.ForcedDay > 6 {
			writeError(w, http.StatusBadRequest, "forced_day must be 0..6")
			return
		}
		d := time.Weekday(*in.ForcedDay)
		opts.ForcedDay = &d
	}
	report, err := s.bots.RunWindow(r.Context(), opts)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type overrideRequest struct {
	ForcedDay  *int  `json:"forced_day,omitempty"`
	ForcedRush *bool `json:"forced_rush,omitempty"`
}

func (s *Server) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	ov, err := s.bots.GetOverride(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	var in overrideRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ov := bots.Override{ForcedRush: in.ForcedRush}
	if in.ForcedDay != nil {
		if *in.ForcedDay < 0 || *in.ForcedDay > 6 {
			writeError(w, http.StatusBadRequest, "forced_day must be 0..6")
			return
		}
		d := time.Weekday(*in.ForcedDay)
		ov.ForcedDay = &d
	}
	if err := s.bots.SetOverride(r.Context(), ov); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	if err := s.bots.ClearOverride(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cleared": true})
}

func (s *Server) handlePoolStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.bots.Pool(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type poolSeedRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) handlePoolSeed(w http.ResponseWriter, r *http.Request) {
	var in poolSeedRequest
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(in.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}
	status, err := s.bots.SeedPool(r.Context(), in.IDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	week := weekFromRequest(r, weekRequest{})
	out, err := s.bots.Analytics(r.Context(), week)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEnsureParticipation(w http.ResponseWriter, r *http.Request) {
	week := weekFromRequest(r, weekRequest{})
	ticket, err := s.bots.EnsureParticipation(r.Context(), week, chi.URLParam(r, "prize"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handlePickWinner(w http.ResponseWriter, r *http.Request) {
	week := weekFromRequest(r, weekRequest{})
	ticket, err := s.bots.PickWinner(r.Context(), week, chi.URLParam(r, "prize"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, bots.ErrInvalidWeekKey), errors.Is(err, bots.ErrInvalidPrize):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bots.ErrBotNotFound), errors.Is(err, bots.ErrNoPrizeBot):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, bots.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
