// Command agentd runs the daemon's HTTP surface (spec §4/§6): one process
// that lazily starts each agent backend on first use, translates its
// native event stream into the Universal Event Schema, and serves
// per-session REST/SSE endpoints over it. Grounded on the teacher's
// cmd/agentctl/main.go wiring order (config -> logger -> collaborators ->
// http.Server -> signal-driven graceful shutdown).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kandev/agentd/internal/adapters"
	"github.com/kandev/agentd/internal/config"
	"github.com/kandev/agentd/internal/eventrouter"
	"github.com/kandev/agentd/internal/httpapi"
	"github.com/kandev/agentd/internal/installer"
	"github.com/kandev/agentd/internal/logging"
	"github.com/kandev/agentd/internal/session"
	"github.com/kandev/agentd/internal/supervisor"
	"github.com/kandev/agentd/internal/universal"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.SetDefault(log)

	registry := adapters.NewRegistry()
	sup := supervisor.New(spawnAgent, log)
	sessions := session.NewManager(registry, sup, log)
	router := eventrouter.New(sessions, log)
	rt := NewRuntime(sup, registry, router, sessions, log)

	inst := installer.NewStatic(os.Getenv("AGENTD_BIN_DIR"))
	handlers := httpapi.NewHandlers(sessions, inst, sup, rt.EnsureAgent)
	engine := httpapi.NewRouter(cfg, handlers, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // SSE streams are long-lived
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("agentd listening", zap.String("addr", cfg.Addr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http server shutdown error")
	}

	sup.Shutdown(ctx, func(clientID string, _ *int) {
		if s, err := sessions.Get(clientID); err == nil {
			s.MarkEnded(universal.SessionEndCancelled, universal.TerminatedByHost, nil)
		}
	})
}
