// Package www serves a small JSON API for inspecting entities, triggering
// services by hand and streaming entity changes over a websocket.
package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/spotpilot-go/config"
	"github.com/icodeforyou/spotpilot-go/database"
	"github.com/icodeforyou/spotpilot-go/entity"
)

// Backend is the storage the API reads from, implemented by database.Database.
type Backend interface {
	entity.Store
	EntityIDs(ctx context.Context) ([]string, error)
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
	LedgerHours(ctx context.Context, from, to time.Time) ([]database.LedgerRow, error)
}

type Server struct {
	logger   *slog.Logger
	config   config.AppConfigApi
	backend  Backend
	services map[string]func()
	sysInfo  SysInfo
	hub      *Hub
	now      func() time.Time
	mux      *http.ServeMux
}

func NewServer(logger *slog.Logger, cfg config.AppConfigApi, backend Backend, services map[string]func(), sysInfo SysInfo) *Server {
	s := &Server{
		logger:   logger,
		config:   cfg,
		backend:  backend,
		services: services,
		sysInfo:  sysInfo,
		hub:      NewHub(logger),
		now:      time.Now,
		mux:      http.NewServeMux(),
	}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	s.mux.Handle("GET /api/entities", logReqMW(NewEntityListHandler(logger.With(slog.String("handler", "entities")), backend)))
	s.mux.Handle("GET /api/entities/{id}", logReqMW(NewEntityHandler(logger.With(slog.String("handler", "entity")), backend)))
	s.mux.Handle("GET /api/overview", logReqMW(NewOverviewHandler(logger.With(slog.String("handler", "overview")), backend)))
	s.mux.Handle("POST /api/services/{name}", logReqMW(NewServiceHandler(logger.With(slog.String("handler", "service")), services)))
	s.mux.Handle("GET /api/log", logReqMW(NewLogHandler(logger.With(slog.String("handler", "log")), backend)))
	s.mux.Handle("GET /api/ledger", logReqMW(NewLedgerHandler(logger.With(slog.String("handler", "ledger")), backend, func() time.Time { return s.now() })))
	s.mux.Handle("GET /api/sys_info", logReqMW(NewSysInfoHandler(logger.With(slog.String("handler", "sys_info")), sysInfo)))

	s.mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.register(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// OnChange is an entity.Listener forwarding changes to websocket clients.
func (s *Server) OnChange(_ context.Context, c entity.Change) {
	s.hub.Publish(c, s.now())
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("writing response failed", slog.Any("error", err))
	}
}

func writeError(logger *slog.Logger, w http.ResponseWriter, status int, err error) {
	writeJSON(logger, w, status, map[string]string{"error": err.Error()})
}
