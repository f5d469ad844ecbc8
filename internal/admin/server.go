// Package admin serves a small HTTP API for health checks, inspecting the
// registry and triggering command syncs.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/keshon/disbot/internal/cmdsync"
	"github.com/keshon/disbot/pkg/cmd"
)

// Syncer runs sync passes; *cmdsync.Coordinator implements it.
type Syncer interface {
	Sync(ctx context.Context, scope cmd.Scope) (*cmdsync.Report, error)
	SyncAll(ctx context.Context, extra ...cmd.Scope) ([]*cmdsync.Report, error)
}

// Server is the admin HTTP server.
type Server struct {
	registry *cmd.Registry
	syncer   Syncer
	pending  func() []string
	log      zerolog.Logger
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithPending exposes background invocations, typically Dispatcher.Pending.
func WithPending(fn func() []string) Option {
	return func(s *Server) { s.pending = fn }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a Server listening on addr.
func New(addr string, reg *cmd.Registry, syncer Syncer, opts ...Option) *Server {
	s := &Server{registry: reg, syncer: syncer, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/commands", s.commands).Methods(http.MethodGet)
	r.HandleFunc("/jobs", s.jobs).Methods(http.MethodGet)
	r.HandleFunc("/sync", s.sync).Methods(http.MethodPost)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.log.Error().Err(err).Msg("admin server shutdown failed")
		}
	}()

	s.log.Info().Str("addr", s.http.Addr).Msg("admin server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type commandView struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Scope       string       `json:"scope"`
	Options     []optionView `json:"options,omitempty"`
	Signature   string       `json:"signature"`
}

type optionView struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

type reportView struct {
	Scope   string   `json:"scope"`
	Added   []string `json:"added"`
	Updated []string `json:"updated"`
	Removed []string `json:"removed"`
	Failed  []string `json:"failed,omitempty"`
	TookMS  int64    `json:"took_ms"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"commands": s.registry.Len(),
	})
}

func (s *Server) commands(w http.ResponseWriter, r *http.Request) {
	scope := cmd.Guild(r.URL.Query().Get("guild"))
	out := []commandView{}
	for d := range s.registry.List(scope) {
		v := commandView{
			Name:        d.Name,
			Description: d.Description,
			Scope:       d.Scope.String(),
			Signature:   d.Signature(),
		}
		for _, o := range d.Options {
			v.Options = append(v.Options, optionView{Name: o.Name, Type: o.Type.String(), Required: o.Required})
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) jobs(w http.ResponseWriter, _ *http.Request) {
	pending := []string{}
	if s.pending != nil {
		pending = append(pending, s.pending()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

// sync runs a pass for ?guild=ID, or for every known scope when guild is
// absent. Partial failures answer 207 with the report.
func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	var (
		reports []*cmdsync.Report
		err     error
	)
	if guild := r.URL.Query().Get("guild"); guild != "" {
		var rep *cmdsync.Report
		rep, err = s.syncer.Sync(r.Context(), cmd.Guild(guild))
		if rep != nil {
			reports = append(reports, rep)
		}
	} else {
		reports, err = s.syncer.SyncAll(r.Context())
	}

	views := make([]reportView, 0, len(reports))
	for _, rep := range reports {
		views = append(views, toReportView(rep))
	}

	status := http.StatusOK
	body := map[string]any{"reports": views}
	if err != nil {
		s.log.Warn().Err(err).Msg("sync requested over HTTP failed")
		body["error"] = err.Error()
		status = http.StatusBadGateway
		var partial *cmdsync.PartialError
		if errors.As(err, &partial) {
			status = http.StatusMultiStatus
		}
	}
	writeJSON(w, status, body)
}

func toReportView(r *cmdsync.Report) reportView {
	v := reportView{
		Scope:   r.Scope.String(),
		Added:   nonNil(r.Added),
		Updated: nonNil(r.Updated),
		Removed: nonNil(r.Removed),
		TookMS:  r.Took.Milliseconds(),
	}
	for _, f := range r.Failed {
		v.Failed = append(v.Failed, f.Change.Name())
	}
	return v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
