package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/estatehub/marketplace/internal/app/httpapi"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg, log, err := loadConfig(opts)
	if err != nil {
		return err
	}
	svc, err := bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.close()

	api, err := httpapi.New(svc.app, httpapi.Options{
		CORSOrigins:    cfg.Server.CORSOrigins,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		AuditFile:      cfg.Server.AuditFile,
	}, log.WithComponent("http"))
	if err != nil {
		return err
	}
	defer api.Close()

	if err := svc.app.Start(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithField("addr", server.Addr).
			WithField("driver", cfg.Database.Driver).
			Info("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		api.RunMaintenance(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if stopErr := svc.app.Stop(shutdownCtx); stopErr != nil {
			log.WithError(stopErr).Warn("stop services")
		}
		return err
	})
	return g.Wait()
}
