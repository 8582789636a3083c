// Package server exposes the import wizard's step endpoint over HTTP. The
// content step is run here; every other step is dispatched to a registered
// handler.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reign-theme/demo-install/internal/demo"
	"github.com/reign-theme/demo-install/internal/importer"
	"github.com/reign-theme/demo-install/internal/journal"
	"github.com/reign-theme/demo-install/internal/metrics"
	"github.com/reign-theme/demo-install/internal/model"
	"github.com/reign-theme/demo-install/internal/output"
)

// DefaultRateLimit is the number of step requests an administrator may send
// per minute when Config.RateLimit is zero.
const DefaultRateLimit = 10

var (
	// ErrNotAdmin is returned by an AdminResolver when the request does not
	// come from an administrator.
	ErrNotAdmin = errors.New("please log in as administrator to continue")
	// ErrStepNotHandled is returned for a valid step with no handler.
	ErrStepNotHandled = errors.New("step is not handled here")
)

// Importer runs the content step.
type Importer interface {
	Import(ctx context.Context, ic *importer.ImportContext) (*model.ImportResult, error)
}

// StepRequest is a sanitised step request.
type StepRequest struct {
	Step    model.Step
	DemoID  string
	Options model.StepOptions
	Admin   model.AdminIdentity
}

// StepResponse is the payload of a successful step.
type StepResponse struct {
	Message  string     `json:"message"`
	NextStep model.Step `json:"next_step,omitempty"`
	Results  any        `json:"results,omitempty"`
}

// StepHandler performs one non-content wizard step.
type StepHandler interface {
	HandleStep(ctx context.Context, req StepRequest) (*StepResponse, error)
}

// StepHandlerFunc adapts a function to StepHandler.
type StepHandlerFunc func(ctx context.Context, req StepRequest) (*StepResponse, error)

func (f StepHandlerFunc) HandleStep(ctx context.Context, req StepRequest) (*StepResponse, error) {
	return f(ctx, req)
}

// AdminResolver identifies the administrator behind a request.
type AdminResolver func(r *http.Request) (model.AdminIdentity, error)

// Config wires a Server.
type Config struct {
	Importer Importer
	// OpenDemo resolves a demo package by id. Defaults to demo.Open under
	// DemosDir.
	OpenDemo func(id string) (*demo.Package, error)
	DemosDir string
	HomeURL  string
	Admin    AdminResolver
	Steps    map[model.Step]StepHandler
	// Journal records every content run when set.
	Journal   *sql.DB
	Metrics   *metrics.Recorder
	Log       *zap.Logger
	RateLimit int
}

// Server serves the wizard endpoints.
type Server struct {
	cfg Config
	log *zap.Logger

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	// content runs are serialised; two imports never interleave on one
	// database.
	contentMu sync.Mutex
}

// New creates a Server.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Admin == nil {
		cfg.Admin = func(*http.Request) (model.AdminIdentity, error) { return model.AdminIdentity{}, ErrNotAdmin }
	}
	if cfg.OpenDemo == nil {
		dir := cfg.DemosDir
		cfg.OpenDemo = func(id string) (*demo.Package, error) { return demo.Open(dir, id) }
	}
	return &Server{
		cfg:      cfg,
		log:      cfg.Log.Named("server"),
		limiters: make(map[int64]*rate.Limiter),
	}
}

// Router builds the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.cfg.Metrics.Handler())
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Post("/steps/{step}", s.handleStep)
	return r
}

type stepBody struct {
	DemoID  string         `json:"demo_id"`
	Options map[string]any `json:"options"`
}

type messageData struct {
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	step := model.Step(chi.URLParam(r, "step"))
	if err := model.ValidateStep(step); err != nil {
		writeError(w, output.ErrValidation, "invalid import step", nil)
		return
	}

	admin, err := s.cfg.Admin(r)
	if err != nil || !admin.Valid() {
		s.log.Warn("step request without administrator", zap.String("step", string(step)), zap.Error(err))
		writeError(w, output.ErrForbidden, "insufficient permissions", nil)
		return
	}
	if !s.limiter(admin.ID).Allow() {
		writeError(w, output.ErrRateLimited, "too many requests, please wait before trying again", nil)
		return
	}

	var body stepBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, output.ErrValidation, "invalid request body", nil)
		return
	}
	body.DemoID = strings.TrimSpace(body.DemoID)
	if body.DemoID == "" {
		writeError(w, output.ErrValidation, "missing required parameters", nil)
		return
	}

	req := StepRequest{
		Step:    step,
		DemoID:  body.DemoID,
		Options: SanitizeOptions(body.Options),
		Admin:   admin,
	}
	log := s.log.With(zap.String("step", string(step)), zap.String("demo", req.DemoID), zap.Int64("admin", admin.ID))

	if step == model.StepContent {
		s.runContent(w, r, req, log)
		return
	}

	h, ok := s.cfg.Steps[step]
	if !ok {
		writeError(w, output.ErrUnsupported, fmt.Sprintf("%s: %v", step, ErrStepNotHandled), nil)
		return
	}
	resp, err := h.HandleStep(r.Context(), req)
	if err != nil {
		log.Error("step failed", zap.Error(err))
		writeError(w, output.ErrGeneral, err.Error(), nil)
		return
	}
	if resp.NextStep == "" {
		resp.NextStep = step.Next()
	}
	writeEnvelope(w, http.StatusOK, output.Succeeded(resp, ""))
}

func (s *Server) runContent(w http.ResponseWriter, r *http.Request, req StepRequest, log *zap.Logger) {
	pkg, err := s.cfg.OpenDemo(req.DemoID)
	if err != nil {
		log.Warn("opening demo package", zap.Error(err))
		writeError(w, output.ErrNotFound, err.Error(), nil)
		return
	}

	s.contentMu.Lock()
	defer s.contentMu.Unlock()

	// The wizard may give up waiting; the import still runs to the end.
	ctx := context.WithoutCancel(r.Context())
	started := time.Now().UTC()
	res, err := s.cfg.Importer.Import(ctx, &importer.ImportContext{
		DemoID:  req.DemoID,
		Admin:   req.Admin,
		Files:   pkg.Files,
		Ordered: pkg.Order != nil,
		HomeURL: s.cfg.HomeURL,
		Options: req.Options,
	})
	s.record(req, res, err, started, log)

	switch {
	case res == nil:
		log.Error("content import failed", zap.Error(err))
		writeError(w, output.ErrGeneral, err.Error(), nil)
	case err != nil:
		log.Warn("content import partially applied", zap.Int("errors", len(res.Errors)))
		writeError(w, output.ErrPartial, err.Error(), res)
	default:
		writeEnvelope(w, http.StatusOK, output.Succeeded(StepResponse{
			Message:  "database content imported successfully",
			NextStep: model.StepContent.Next(),
			Results:  res,
		}, ""))
	}
}

func (s *Server) record(req StepRequest, res *model.ImportResult, err error, started time.Time, log *zap.Logger) {
	if s.cfg.Journal == nil {
		return
	}
	run := model.NewRun(req.DemoID, req.Admin.String(), res, err, started, time.Now().UTC())
	if _, jerr := journal.RecordRun(s.cfg.Journal, run); jerr != nil {
		log.Error("recording run", zap.Error(jerr))
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeJSON(w, http.StatusOK, []*model.Run{})
		return
	}
	opts := journal.ListOptions{DemoID: r.URL.Query().Get("demo")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, output.ErrValidation, "invalid limit", nil)
			return
		}
		opts.Limit = n
	}
	runs, err := journal.ListRuns(s.cfg.Journal, opts)
	if err != nil {
		s.log.Error("listing runs", zap.Error(err))
		writeError(w, output.ErrGeneral, "listing runs failed", nil)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Journal == nil {
		writeError(w, output.ErrNotFound, "run not found", nil)
		return
	}
	run, err := journal.GetRun(s.cfg.Journal, chi.URLParam(r, "id"))
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, output.ErrNotFound, "run not found", nil)
		return
	}
	if err != nil {
		writeError(w, output.ErrValidation, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// limiter returns the token bucket of one administrator.
func (s *Server) limiter(adminID int64) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[adminID]
	if !ok {
		n := s.cfg.RateLimit
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		s.limiters[adminID] = l
	}
	return l
}

// SanitizeOptions keeps the known wizard switches and coerces their values
// to booleans. Unknown keys are dropped; absent keys keep their defaults.
func SanitizeOptions(raw map[string]any) model.StepOptions {
	opts := model.DefaultStepOptions()
	fields := map[string]*bool{
		"import_content":        &opts.ImportContent,
		"import_media":          &opts.ImportMedia,
		"import_users":          &opts.ImportUsers,
		"import_settings":       &opts.ImportSettings,
		"clean_install":         &opts.CleanInstall,
		"backup_before_import":  &opts.BackupBeforeImport,
		"backup_essential_only": &opts.BackupEssentialOnly,
	}
	for k, v := range raw {
		if dst, ok := fields[k]; ok {
			*dst = truthy(v)
		}
	}
	return opts
}

// truthy follows form-encoding conventions: "", "0" and "false" are false.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "off", "no":
			return false
		}
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, env output.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = env.Encode(w)
}

// writeError answers in the wizard's shape: the message sits in data so the
// wizard can show it, the code in error.
func writeError(w http.ResponseWriter, code output.ErrorCode, msg string, results any) {
	env := output.Failed(errors.New(msg), code, messageData{Message: msg, Results: results})
	writeEnvelope(w, output.HTTPStatus(code), env)
}
