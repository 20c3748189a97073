// Package mlhttp serves the ML service API: streamed chat, chat management and topic predictions.
package mlhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/urfu-lab/studyhub/core"
	"github.com/urfu-lab/studyhub/core/auth"
	"github.com/urfu-lab/studyhub/core/chat"
	"github.com/urfu-lab/studyhub/core/features"
	"github.com/urfu-lab/studyhub/core/predict"
)

const version = "1.0.0"

type (
	// AuthProxy forwards credentials to the core API.
	AuthProxy interface {
		Login(ctx context.Context, username, password string) (json.RawMessage, error)
		Refresh(ctx context.Context, refresh string) (json.RawMessage, error)
	}

	FeatureCollector interface {
		Collect(ctx context.Context, token string) (features.Features, error)
	}

	Options struct {
		Address        string
		DisableReqLogs bool
		Debug          bool
		CORSOrigins    []string
		UserRate       float64
		UserBurst      int

		Logger    core.Logger
		AccessLog zerolog.Logger

		Tokens    *auth.Manager
		ChatSvc   *chat.Service
		AuthProxy AuthProxy
		Collector FeatureCollector
		Rand      predict.Rand
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() chan os.Signal
	}

	server struct {
		opts     *Options
		router   *mux.Router
		handler  http.Handler
		srv      *http.Server
		limiters *userLimiters
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Rand == nil {
		opts.Rand = predict.NewRand()
	}
	s := &server{
		opts:     opts,
		router:   mux.NewRouter(),
		limiters: newUserLimiters(opts.UserRate, opts.UserBurst),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	s.srv = &http.Server{
		Addr:              opts.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *server) setup() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, detail("not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, detail("method not allowed"))
	})

	r.HandleFunc("/", s.home).Methods(http.MethodGet)
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	authAPI := r.PathPrefix("/api/auth").Subrouter()
	authAPI.HandleFunc("/login", s.login).Methods(http.MethodPost)
	authAPI.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)

	ai := r.PathPrefix("/api/ai").Subrouter()
	ai.Use(s.authenticate)
	ai.Handle("/message", s.limitUser(http.HandlerFunc(s.sendMessage))).Methods(http.MethodPost)
	ai.HandleFunc("/chats", s.listChats).Methods(http.MethodGet)
	ai.HandleFunc("/chats", s.createChat).Methods(http.MethodPost)
	ai.HandleFunc("/chats/{chat_id}", s.deleteChat).Methods(http.MethodDelete)
	ai.HandleFunc("/history", s.history).Methods(http.MethodGet)
	ai.Handle("/messages/{message_id}", s.limitUser(http.HandlerFunc(s.editMessage))).Methods(http.MethodPut)

	ml := r.PathPrefix("/api/ml").Subrouter()
	ml.Use(s.authenticate)
	ml.HandleFunc("/features", s.features).Methods(http.MethodGet)
	ml.HandleFunc("/topic-needs", s.topicNeeds).Methods(http.MethodGet)

	var h http.Handler = r
	h = cors(s.opts.CORSOrigins)(h)
	if !s.opts.DisableReqLogs {
		h = requestLogger(s.opts.AccessLog)(h)
	}
	// do not recover in DEV mode
	if !s.opts.Debug {
		h = recoverer(s.opts.Logger)(h)
	}
	s.handler = h
}

func (s *server) Start() {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.srv.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.handler.ServeHTTP(w, r)
}

func (s *server) home(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "ml_service"})
}

func (s *server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "ml_service", "version": version})
}
