package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/reconf/pkg/events"
	"github.com/cuemby/reconf/pkg/log"
	"github.com/cuemby/reconf/pkg/metrics"
	"github.com/cuemby/reconf/pkg/plan"
	"github.com/cuemby/reconf/pkg/planner"
	"github.com/cuemby/reconf/pkg/reconf"
	"github.com/cuemby/reconf/pkg/scenario"
	"github.com/cuemby/reconf/pkg/storage"
	"github.com/cuemby/reconf/pkg/types"
)

// DefaultMaxBody bounds the size of a scenario document
const DefaultMaxBody = 1 << 20

// Config holds the plan server settings
type Config struct {
	Addr string

	// MaxTimeout caps the search timeout a scenario may ask for
	MaxTimeout time.Duration

	MaxBody int64
	Version string

	// Store keeps the feasible plans; nil disables the /v1/plans routes
	Store storage.Store

	// RateLimit is the number of plan requests per second allowed to a
	// client; zero disables the limit
	RateLimit float64
	Burst     int
}

// Server serves plans over HTTP
type Server struct {
	cfg     Config
	mux     *http.ServeMux
	checker *metrics.Checker
	feed    *events.Feed
	limiter *rateLimiter
	logger  zerolog.Logger
	server  *http.Server
}

// NewServer creates a plan server
func NewServer(cfg Config) *Server {
	if cfg.MaxBody <= 0 {
		cfg.MaxBody = DefaultMaxBody
	}
	if cfg.MaxTimeout <= 0 {
		cfg.MaxTimeout = planner.DefaultConfig().Timeout
	}
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		checker: metrics.NewChecker(cfg.Version, "planner"),
		feed:    events.NewFeed(50),
		logger:  log.WithComponent("api"),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.Burst, s.logger)
	}
	s.checker.Set("planner", true, "")

	s.mux.HandleFunc("/v1/plan", s.planHandler)
	if cfg.Store != nil {
		s.mux.HandleFunc("GET /v1/plans", s.listPlansHandler)
		s.mux.HandleFunc("GET /v1/plans/{id}", s.getPlanHandler)
		s.mux.HandleFunc("DELETE /v1/plans/{id}", s.deletePlanHandler)
	}
	s.mux.HandleFunc("/health", s.checker.HealthHandler())
	s.mux.HandleFunc("/ready", s.checker.ReadyHandler())
	s.mux.HandleFunc("/live", s.checker.LivenessHandler())
	s.mux.Handle("/metrics", metrics.Handler())
	return s
}

// Start listens on the configured address until Stop is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.cfg.MaxTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("Plan server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes the listener, the idle connections and the event
// subscriptions
func (s *Server) Stop() error {
	s.checker.Set("planner", false, "shutting down")
	s.feed.Publish(events.New(events.ServerStopping, "plan server stopping"))
	defer s.feed.Close()
	if s.server == nil {
		return nil
	}
	return s.server.Close()
}

// Events returns the feed publishing one event per plan request
func (s *Server) Events() *events.Feed {
	return s.feed
}

// Handler returns the HTTP handler for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.mux
}

// PlanResponse is the JSON body of a plan
type PlanResponse struct {
	ID           string         `json:"id,omitempty"`
	Scenario     string         `json:"scenario,omitempty"`
	ProblemID    string         `json:"problemId"`
	Feasible     bool           `json:"feasible"`
	Duration     int            `json:"duration"`
	Actions      []ActionView   `json:"actions,omitempty"`
	Instantiated []types.VMID   `json:"instantiated,omitempty"`
	Resized      []string       `json:"resized,omitempty"`
	Misplaced    []types.VMID   `json:"misplaced,omitempty"`
	Search       SearchResponse `json:"search"`
}

// ActionView is one timed action of a plan
type ActionView struct {
	Start  int    `json:"start"`
	End    int    `json:"end"`
	Action string `json:"action"`
}

type SearchResponse struct {
	Nodes     int   `json:"nodes"`
	Failures  int   `json:"failures"`
	ElapsedMS int64 `json:"elapsedMs"`
}

// ErrorResponse is the JSON body of a failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// planHandler implements POST /v1/plan. The body is a scenario document.
func (s *Server) planHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.limiter != nil && !s.limiter.allow(r) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBody))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
		return
	}
	sc, err := scenario.Parse(data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	cfg := sc.Planner
	if cfg.Timeout <= 0 || cfg.Timeout > s.cfg.MaxTimeout {
		cfg.Timeout = s.cfg.MaxTimeout
	}
	res, err := planner.New(cfg, sc.Durations).Plan(r.Context(), sc.Model, sc.Request, sc.Constraints...)
	if err != nil {
		s.logger.Warn().Err(err).Str("scenario", sc.Name).Msg("Planning failed")
		ev := events.New(events.PlanFailed, err.Error())
		ev.Scenario = sc.Name
		s.feed.Publish(ev)
		writeJSON(w, statusOf(err), ErrorResponse{Error: err.Error()})
		return
	}
	s.publish(sc.Name, res)
	resp := newPlanResponse(sc.Name, res)
	if res.Feasible && s.cfg.Store != nil {
		if err := s.cfg.Store.SavePlan(planRecord(resp)); err != nil {
			s.logger.Error().Err(err).Str("plan", resp.ID).Msg("Unable to store plan")
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	recs, err := s.cfg.Store.ListPlans()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	if recs == nil {
		recs = []*storage.PlanRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) getPlanHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := s.cfg.Store.GetPlan(r.PathValue("id"))
	if err != nil {
		writeJSON(w, storageStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deletePlanHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.DeletePlan(r.PathValue("id")); err != nil {
		writeJSON(w, storageStatus(err), ErrorResponse{Error: err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func storageStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func planRecord(resp PlanResponse) *storage.PlanRecord {
	rec := &storage.PlanRecord{
		ID:        resp.ID,
		Scenario:  resp.Scenario,
		ProblemID: resp.ProblemID,
		Duration:  resp.Duration,
		CreatedAt: time.Now().UTC(),
	}
	for _, a := range resp.Actions {
		rec.Actions = append(rec.Actions, storage.RecordedAction{Start: a.Start, End: a.End, Action: a.Action})
	}
	for _, vm := range resp.Instantiated {
		rec.Instantiated = append(rec.Instantiated, string(vm))
	}
	rec.Resized = resp.Resized
	for _, vm := range resp.Misplaced {
		rec.Misplaced = append(rec.Misplaced, string(vm))
	}
	return rec
}

func (s *Server) publish(name string, res *planner.Result) {
	if !res.Feasible {
		ev := events.New(events.PlanInfeasible, "no plan satisfies the request")
		ev.Scenario, ev.Problem = name, res.ProblemID
		s.feed.Publish(ev)
		return
	}
	ev := events.New(events.PlanComputed, fmt.Sprintf("%d actions, duration %d", res.Plan.Size(), res.Plan.Duration()))
	ev.Scenario, ev.Problem, ev.Plan = name, res.ProblemID, res.Plan.ID
	s.feed.Publish(ev)
}

// statusOf maps a planning error to an HTTP status
func statusOf(err error) int {
	switch {
	case errors.Is(err, reconf.ErrAmbiguousTransition),
		errors.Is(err, reconf.ErrUndefinedTransition),
		errors.Is(err, reconf.ErrInvalidTransition),
		errors.Is(err, reconf.ErrUnknownVM),
		errors.Is(err, reconf.ErrUnknownNode),
		errors.Is(err, reconf.ErrUnknownView),
		errors.Is(err, reconf.ErrDuration),
		errors.Is(err, reconf.ErrInvalidBounds):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func newPlanResponse(name string, res *planner.Result) PlanResponse {
	out := PlanResponse{
		Scenario:  name,
		ProblemID: res.ProblemID,
		Feasible:  res.Feasible,
		Misplaced: res.Misplaced,
		Search: SearchResponse{
			Nodes:     res.Stats.Nodes,
			Failures:  res.Stats.Failures,
			ElapsedMS: res.Elapsed.Milliseconds(),
		},
	}
	if res.Plan != nil {
		out.ID = res.Plan.ID
		out.Duration = res.Plan.Duration()
		out.Instantiated = res.Plan.Instantiated
		for _, r := range res.Plan.Resized {
			out.Resized = append(out.Resized, r.String())
		}
		out.Actions = actionViews(res.Plan)
	}
	return out
}

func actionViews(p *plan.Plan) []ActionView {
	actions := p.Actions()
	out := make([]ActionView, 0, len(actions))
	for _, a := range actions {
		out = append(out, ActionView{Start: a.Start(), End: a.End(), Action: a.String()})
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
