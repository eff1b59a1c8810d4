package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lherron/hmp/internal/auth"
	"github.com/lherron/hmp/internal/config"
	"github.com/lherron/hmp/internal/db"
	"github.com/lherron/hmp/internal/legacy"
	"github.com/lherron/hmp/internal/logging"
	"github.com/lherron/hmp/internal/migration"
	"github.com/lherron/hmp/internal/store"
)

// Error codes of the HTTP API.
const (
	codeInvalidPayload   = "invalid_payload"
	codeMissingToken     = "missing_access_token"
	codeInvalidToken     = "invalid_access_token"
	codeForbidden        = "forbidden"
	codeForbiddenHotel   = "forbidden_hotel_scope"
	codePayloadTooLarge  = "payload_too_large"
	codeInternalError    = "internal_server_error"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
)

const (
	defaultDaemonAddr = "127.0.0.1:3001"
	shutdownTimeout   = 10 * time.Second
	bytesPerMB        = 1 << 20
)

// DaemonOptions configures the hmpd daemon.
type DaemonOptions struct {
	Addr   string
	DBPath string
}

// ServeDaemon starts the hmpd daemon and blocks until ctx is cancelled or
// the listener fails.
func ServeDaemon(ctx context.Context, opts DaemonOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.Addr != "" {
		cfg.Addr = opts.Addr
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultDaemonAddr
	}
	if cfg.JWTAccessSecret == "" {
		return errors.New("HMP_JWT_ACCESS_SECRET is not set")
	}

	log := logging.New("hmpd", cfg.LogLevel)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	if err := database.RequiresMigrationError(); err != nil {
		return err
	}

	server := newDaemonServer(store.New(database), cfg, log)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.handler(),
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", cfg.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type daemonServer struct {
	store  *store.Store
	cfg    *config.Config
	signer *auth.Signer
	log    logrus.FieldLogger
	now    func() time.Time
}

func newDaemonServer(s *store.Store, cfg *config.Config, log logrus.FieldLogger) *daemonServer {
	return &daemonServer{
		store:  s,
		cfg:    cfg,
		signer: auth.NewSigner(cfg.JWTAccessSecret, cfg.JWTAccessTTL),
		log:    log,
		now:    time.Now,
	}
}

func (s *daemonServer) handler() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, codeNotFound, "")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "")
	})

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	secured := api.NewRoute().Subrouter()
	secured.Use(s.signer.Middleware(s.authError))
	for _, prefix := range []string{"/migration", "/migration/localstorage"} {
		secured.HandleFunc(prefix+"/export", s.handleExport).Methods(http.MethodGet)
		secured.HandleFunc(prefix+"/import", s.handleImport).Methods(http.MethodPost)
	}

	return s.cors().Handler(router)
}

// cors allows the configured origins. "*" allows any origin; with nothing
// configured, http origins on localhost are allowed for development.
func (s *daemonServer) cors() *cors.Cors {
	allowed := make(map[string]bool, len(s.cfg.CORSOrigins))
	for _, o := range s.cfg.CORSOrigins {
		allowed[o] = true
	}
	return cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if allowed["*"] || allowed[origin] {
				return true
			}
			if len(allowed) > 0 {
				return false
			}
			u, err := url.Parse(origin)
			if err != nil || u.Scheme != "http" {
				return false
			}
			return u.Hostname() == "localhost" || u.Hostname() == "127.0.0.1"
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
}

func (s *daemonServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *daemonServer) writeError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]string{"error": code}
	if message != "" {
		body["message"] = message
	}
	s.writeJSON(w, status, body)
}

func (s *daemonServer) authError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrMissingToken) {
		s.writeError(w, http.StatusUnauthorized, codeMissingToken, "")
		return
	}
	s.writeError(w, http.StatusUnauthorized, codeInvalidToken, "")
}

// fail maps a migration error to its HTTP response.
func (s *daemonServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, migration.ErrNoHotelScope):
		s.writeError(w, http.StatusForbidden, codeForbiddenHotel, err.Error())
	case errors.Is(err, migration.ErrUserNotFound):
		s.writeError(w, http.StatusForbidden, codeForbidden, err.Error())
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		s.writeError(w, http.StatusInternalServerError, codeInternalError, "")
	}
}

func (s *daemonServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"db":   "ok",
		"time": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *daemonServer) handleExport(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	doc, err := migration.Export(r.Context(), s.store, claims.OrganizationID, claims.UserID, migrationOptions(s.cfg, s.now, s.log))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data": doc})
}

func (s *daemonServer) handleImport(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	if !claims.CanImport() {
		s.writeError(w, http.StatusForbidden, codeForbidden, "role may not import")
		return
	}

	limit := int64(s.cfg.MaxImportMB) * bytesPerMB
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge, "")
			return
		}
		s.writeError(w, http.StatusBadRequest, codeInvalidPayload, err.Error())
		return
	}
	doc, err := legacy.Decode(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidPayload, err.Error())
		return
	}

	summary, err := migration.Import(r.Context(), s.store, claims.OrganizationID, claims.UserID, doc, migrationOptions(s.cfg, s.now, s.log))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "summary": summary})
}
