package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// main wires the engine together: registry, health monitor, mixer,
// status hub and the HTTP surface.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	listenAddr := flag.String("listen", "", "listen address override")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.PrettyLog {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	gin.SetMode(gin.ReleaseMode)

	reg := NewRegistry(cfg.Sources)
	hub := NewStatusHub()
	monitor := NewMonitor(reg, cfg, hub)
	mixer := NewMixer(reg, cfg)
	server := NewServer(cfg, reg, mixer, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go monitor.Run(ctx)
	go mixer.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
		// tie request contexts to the process context so open
		// multipart streams unwind on shutdown instead of hanging
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Int("sources", reg.Len()).
			Msg("stream server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	// Stop sources and the mixer first so in-flight client streams
	// drain, then close the listener.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server exited")
}
