package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coach-client/internal/coach"
	"coach-client/internal/journal"
	"coach-client/internal/media"
	"coach-client/internal/overlay"
	"coach-client/internal/platform/config"
	"coach-client/internal/platform/eventloop"
	"coach-client/internal/platform/logger"
	"coach-client/internal/platform/metrics"
	"coach-client/internal/protocol"
	"coach-client/internal/source"
	"coach-client/internal/status"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	_ = config.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	met := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := eventloop.New(256, logger.Component(log, "eventloop"))
	go loop.Run(ctx)

	assets := media.Assets{Root: cfg.Media.AssetsDir}
	var videoCh, audioCh *media.Channel
	videoPlayer, err := newPlayer(cfg, assets, logger.Component(log, "video"), loop, func() *media.Channel { return videoCh })
	if err != nil {
		log.Error("video player", "error", err)
		os.Exit(1)
	}
	audioPlayer, err := newPlayer(cfg, assets, logger.Component(log, "audio"), loop, func() *media.Channel { return audioCh })
	if err != nil {
		log.Error("audio player", "error", err)
		os.Exit(1)
	}
	mediaLog := logger.Component(log, "media")
	videoCh = media.NewChannel(media.Video, videoPlayer, loop, mediaLog, met)
	audioCh = media.NewChannel(media.Audio, audioPlayer, loop, mediaLog, met)

	canvas := overlay.NewCanvas(cfg.Overlay.Width, cfg.Overlay.Height, logger.Component(log, "canvas"))
	renderer := overlay.NewRenderer(canvas, cfg.Overlay.RefreshRate, logger.Component(log, "overlay"), met)
	go renderer.Run(ctx)

	store, err := openJournal(cfg.Journal.Path)
	if err != nil {
		log.Error("journal error", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	recorder := journal.NewRecorder(store, logger.Component(log, "journal"), met)

	view := coach.NewViewState()
	ctrl := coach.NewController(coach.Deps{
		View:      view,
		Video:     videoCh,
		Audio:     audioCh,
		Widgets:   renderer,
		Frames:    canvas,
		Journal:   recorder,
		Scheduler: loop,
		Assets:    assets,
		Timings: coach.Timings{
			AudioDelay:      cfg.Timings.AudioDelay,
			OverlayDuration: cfg.Timings.OverlayDuration,
			ProgressDelay:   cfg.Timings.ProgressDelay,
		},
		Log:     logger.Component(log, "controller"),
		Metrics: met,
	})

	srcLog := logger.Component(log, "source")
	src := source.NewWebSocket(source.Options{
		URL:               cfg.Source.URL,
		ReconnectAttempts: cfg.Source.ReconnectAttempts,
		ReconnectDelay:    cfg.Source.ReconnectDelay,
	}, func(msg protocol.Message) {
		if err := loop.Post(func() { ctrl.Dispatch(msg) }); err != nil {
			srcLog.Debug("message dropped after shutdown", "type", string(msg.Type()))
		}
	}, srcLog, met)
	go func() {
		// The client stays up without a source; only the status surface
		// reports the outage.
		if err := src.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			srcLog.Error("event source stopped", "error", err)
		}
	}()

	h := status.NewHandler(status.Sources{
		Controller: ctrl,
		View:       view,
		Widgets:    renderer,
		Frames:     canvas,
		Journal:    store,
	}, logger.Component(log, "status"), met)
	srv := &http.Server{
		Addr:    cfg.Status.Addr,
		Handler: status.NewRouter(h, log, met, cfg.Status.AllowedOrigins),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("client starting",
		"source_url", cfg.Source.URL,
		"status_addr", cfg.Status.Addr,
		"assets_dir", cfg.Media.AssetsDir,
		"audio_delay", cfg.Timings.AudioDelay,
		"log_level", cfg.Log.Level,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping")
	cancel()
	<-loop.Done()

	// The loop has exited, so nothing else touches the channels.
	videoCh.Stop()
	audioCh.Stop()
	recorder.SessionEnded()
	recorder.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("client stopped")
}

// newPlayer builds the configured player. Exits of an external player are
// reported back to the channel on the event loop.
func newPlayer(cfg *config.Config, assets media.Assets, log *slog.Logger, loop *eventloop.Loop, ch func() *media.Channel) (media.Player, error) {
	if cfg.Media.PlayerCommand == "" {
		return media.NewLogPlayer(assets, log), nil
	}
	return media.NewExecPlayer(cfg.Media.PlayerCommand, assets, log, func(src string, err error) {
		_ = loop.Post(func() { ch().Ended(src, err) })
	})
}

func openJournal(path string) (journal.Store, error) {
	if path == "" {
		return journal.NewInMemoryStore(), nil
	}
	return journal.OpenSQLite(path)
}
