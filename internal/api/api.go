// Package api provides HTTP handlers and the main API server logic for
// TriageLine.
//
// It exposes the chat, action, triage, session, and facility endpoints
// plus the inbound SMS webhook. The API wires together the triage
// engine, the store, the geo locator, and the messaging service.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GraminSeva/TriageLine/internal/aiengine"
	"github.com/GraminSeva/TriageLine/internal/genai"
	"github.com/GraminSeva/TriageLine/internal/geo"
	"github.com/GraminSeva/TriageLine/internal/messaging"
	"github.com/GraminSeva/TriageLine/internal/rules"
	"github.com/GraminSeva/TriageLine/internal/scheduler"
	"github.com/GraminSeva/TriageLine/internal/store"
	"github.com/GraminSeva/TriageLine/internal/triage"
)

// Default server configuration.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr            string
	ShutdownTimeout time.Duration
	Rules           rules.Config
	ReminderCron    string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

// WithRules overrides the rule engine thresholds.
func WithRules(cfg rules.Config) Option {
	return func(o *Opts) { o.Rules = cfg }
}

// WithReminderCron overrides the appointment reminder schedule.
func WithReminderCron(expr string) Option {
	return func(o *Opts) { o.ReminderCron = expr }
}

// Server hosts the HTTP endpoints.
type Server struct {
	engine *triage.Engine
	msg    messaging.Service
	addr   string
	mux    *http.ServeMux
}

// NewServer creates an API server around an engine. msg may be nil when
// the SMS channel is disabled.
func NewServer(engine *triage.Engine, msg messaging.Service, opts ...Option) *Server {
	o := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&o)
	}
	s := &Server{
		engine: engine,
		msg:    msg,
		addr:   o.Addr,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/chat", s.chatHandler)
	s.mux.HandleFunc("/api/chat/action", s.actionHandler)
	s.mux.HandleFunc("/api/triage", s.triageHandler)
	s.mux.HandleFunc("/api/session/start", s.sessionStartHandler)
	s.mux.HandleFunc("/api/session/", s.sessionHandler)
	s.mux.HandleFunc("/api/facilities/nearby", s.facilitiesHandler)
	s.mux.HandleFunc("/webhook/sms", s.smsWebhookHandler)
	s.mux.HandleFunc("/health", s.healthHandler)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run builds the full dependency graph from the given options and
// serves until SIGINT or SIGTERM.
func Run(storeOpts []store.Option, aiOpts []aiengine.Option, genaiOpts []genai.Option, msgOpts []messaging.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Rules == (rules.Config{}) {
		cfg.Rules = rules.DefaultConfig()
	}

	st, err := store.NewStore(storeOpts...)
	if err != nil {
		slog.Error("api.Run: failed to initialize store", "error", err)
		return err
	}
	defer st.Close()

	engine := triage.New(
		triage.WithStore(st),
		triage.WithRemote(aiengine.NewClient(aiOpts...)),
		triage.WithGenAI(genai.NewClient(genaiOpts...)),
		triage.WithLocator(geo.NewService()),
		triage.WithRules(cfg.Rules),
	)
	var msg messaging.Service
	if svc := messaging.NewTwilioService(msgOpts...); svc != nil {
		msg = svc
		defer svc.Stop()
	}

	// Reminders only make sense with an outbound SMS channel.
	if msg != nil {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		cronExpr := cfg.ReminderCron
		if cronExpr == "" {
			cronExpr = DefaultReminderCron
		}
		if err := sched.AddJob(cronExpr, func() { sendAppointmentReminders(st, msg) }); err != nil {
			slog.Error("api.Run: failed to schedule reminder job", "error", err, "cron", cronExpr)
			return err
		}
		slog.Info("api.Run: appointment reminder job scheduled", "cron", cronExpr)
	}

	server := NewServer(engine, msg, apiOpts...)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: server.mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api.Run: listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		slog.Error("api.Run: server failed", "error", err)
		return err
	case sig := <-stop:
		slog.Info("api.Run: shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("api.Run: shutdown failed", "error", err)
		return err
	}
	slog.Info("api.Run: shutdown complete")
	return nil
}
