package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/linesmerrill/advisory-chat-api/api/handlers"
	"github.com/linesmerrill/advisory-chat-api/api/scheduler"
	"github.com/linesmerrill/advisory-chat-api/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil { //initialize database and router
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	jobs := scheduler.NewScheduler(a.Store.PinDB, a.Store.MessageDB, a.LockDB(), a.Hub, a.Config.PinSweepSchedule)
	if err := jobs.Start(); err != nil {
		zap.S().Fatalw("failed to start scheduler", "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.S().Infow("advisory-chat-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		jobs.Stop()
		// hijacked websocket connections are not tracked by Shutdown, close them first
		a.Hub.Close()
		err := srv.Shutdown(shutdownCtx)
		return multierr.Append(err, a.Close(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorw("server stopped with error", "error", err)
	}
	_ = zap.L().Sync()
}
