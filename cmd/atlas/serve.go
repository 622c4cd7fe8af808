package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	httpadapter "github.com/lmarchau/provider-atlas/internal/adapter/http"
	"github.com/lmarchau/provider-atlas/internal/markers"
	"github.com/lmarchau/provider-atlas/internal/store"
	"github.com/lmarchau/provider-atlas/internal/syncer"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the directory service: sync, geocoding, and HTTP endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(a)
		},
	}
}

func runServe(a *app) error {
	kv, err := a.openMirror()
	if err != nil {
		return err
	}

	rem := a.buildRemote()
	st := a.buildStore(kv, store.Options{
		Resolver: a.buildResolver(kv),
		Remote:   rem,
		Markers:  markers.NewMemory(),
	})
	ctl := syncer.New(st, rem, a.logger, a.metrics)

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, ctl, st, a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := ctl.Run(ctx); err != nil {
			a.logger.Error("sync controller error", "error", err)
		}
	}()

	scheduler, err := startRefresh(ctx, a, ctl, rem != nil)
	if err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	if scheduler != nil {
		if err := scheduler.Shutdown(); err != nil {
			a.logger.Error("scheduler shutdown error", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}

// startRefresh schedules periodic full pulls while the controller is online.
// Offline sessions stay on their mirror; a refresh never promotes them back.
func startRefresh(ctx context.Context, a *app, ctl *syncer.Controller, hasRemote bool) (gocron.Scheduler, error) {
	if !hasRemote || a.cfg.RefreshInterval <= 0 {
		return nil, nil
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.cfg.RefreshInterval),
		gocron.NewTask(func() {
			if ctl.State() != syncer.StateOnline {
				return
			}
			if err := ctl.PullAll(ctx); err != nil {
				a.logger.Warn("periodic refresh failed", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	a.logger.Info("periodic refresh scheduled", "interval", a.cfg.RefreshInterval)
	return scheduler, nil
}
