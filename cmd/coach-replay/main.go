package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coach-client/internal/platform/config"
	"coach-client/internal/platform/logger"
	"coach-client/internal/replay"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "", "listen address (default $REPLAY_ADDR or :9090)")
	loop := flag.Bool("loop", false, "restart the script after the last step")
	flag.Parse()

	_ = config.Load()

	log := logger.New(config.GetEnv("LOG_LEVEL", "info"), config.GetEnv("LOG_FORMAT", "text"))

	if flag.NArg() != 1 {
		log.Error("usage: coach-replay [-addr :9090] [-loop] script.yaml")
		os.Exit(2)
	}
	script, frames, err := replay.LoadScript(flag.Arg(0))
	if err != nil {
		log.Error("script error", "error", err)
		os.Exit(1)
	}

	listen := *addr
	if listen == "" {
		listen = config.GetEnv("REPLAY_ADDR", ":9090")
	}

	r := chi.NewRouter()
	r.Handle("/", replay.NewServer(frames, script.Loop || *loop, log))

	srv := &http.Server{Addr: listen, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("replay server starting", "addr", listen, "steps", len(frames))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	log.Info("replay server stopped")
}
