package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/outpost-game/outpost/internal/api"
	"github.com/outpost-game/outpost/internal/app/resolver"
	"github.com/outpost-game/outpost/internal/app/story"
	"github.com/outpost-game/outpost/internal/daemon"
)

// ─── serve ──────────────────────────────────────────────────────────────────

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				host, port, err := daemon.ParseListenAddr(listen)
				if err != nil {
					return err
				}
				opts.cfg.API.Host, opts.cfg.API.Port = host, port
			}
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address host:port (overrides api.host/api.port)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg := opts.cfg
	log := slog.Default().With("component", "serve")

	db, cleanup, err := opts.openDB()
	if err != nil {
		return err
	}
	defer cleanup()

	seed := cfg.Resolver.Seed
	if seed == 0 {
		if seed, err = resolver.NewSeed(); err != nil {
			return err
		}
	}
	res := resolver.New(cfg.ResolverSettings(), db, resolver.NewRandom(seed))

	srv := api.NewServer(res, db)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	if cfg.Story.ContentFile != "" {
		reg := story.NewRegistry()
		n, err := reg.LoadFile(cfg.Story.ContentFile)
		if err != nil {
			return fmt.Errorf("load story content: %w", err)
		}
		for _, p := range story.Validate(reg.All()) {
			log.Warn("story content", "problem", p)
		}
		srv.SetStories(api.NewStorySessions(reg, db, db))
		log.Info("story content loaded", "file", cfg.Story.ContentFile, "milestones", n)
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpSrv.Addr, "metrics", cfg.Metrics.Enabled)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	stats := res.Stats()
	log.Info("stopped", "resolved", stats.Resolved, "found", stats.Found, "rejected", stats.Rejected, "conflicts", stats.Conflicts)
	return nil
}
