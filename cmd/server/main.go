package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Wyydra/rtcpeer/internal/adapter/driven/gateway/ws"
	mediamemory "github.com/Wyydra/rtcpeer/internal/adapter/driven/media/memory"
	"github.com/Wyydra/rtcpeer/internal/adapter/driven/media/pion"
	repo "github.com/Wyydra/rtcpeer/internal/adapter/driven/persistence/memory"
	handler "github.com/Wyydra/rtcpeer/internal/adapter/driving/http"
	"github.com/Wyydra/rtcpeer/internal/config"
	"github.com/Wyydra/rtcpeer/internal/core/port"
	"github.com/Wyydra/rtcpeer/internal/core/service"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.FromArgs("rtcpeer", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	var l zerolog.Logger
	if cfg.Log.Format == config.FormatJSON {
		l = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
	} else {
		w := zerolog.ConsoleWriter{Out: os.Stdout}
		l = zerolog.New(w).With().Timestamp().Caller().Logger()
	}
	zerolog.SetGlobalLevel(cfg.Level())
	log.Logger = l

	params := cfg.ConnectionParameters()

	var engine port.MediaEngine
	switch cfg.Media.Engine {
	case config.EngineMemory:
		engine = mediamemory.NewEngine()
	default:
		engine, err = pion.NewEngine(pion.Config{
			Params:        params,
			LoggerFactory: pion.NewLoggerFactory(cfg.PionLevel()),
		})
		if err != nil {
			l.Fatal().Err(err).Msg("Failed to create media engine")
		}
	}

	states := repo.NewStateRepository()
	hub := ws.NewHub()

	peer := service.NewPeer(engine, params, cfg.SignalingParameters())
	signaling := service.NewSignalingService(peer, hub)
	peer.AddObserver(signaling)
	peer.AddObserver(service.NewSnapshotPublisher(states))
	peer.Start()

	h := handler.NewHandler(peer, signaling, states, hub)
	h.StaticDir = cfg.Server.StaticDir

	go hub.Run()

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h.NewRouter(),
	}

	go func() {
		l.Info().Str("addr", cfg.Server.Addr).Str("engine", cfg.Media.Engine).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	l.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("Server forced to shutdown")
	}

	peer.Close()
	hub.Stop()
	l.Info().Msg("Server exited")
}
