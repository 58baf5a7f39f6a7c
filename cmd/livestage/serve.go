package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	router "github.com/dkeye/livestage/internal/adapters/http"
	"github.com/dkeye/livestage/internal/adapters/livekit"
	"github.com/dkeye/livestage/internal/adapters/lock"
	"github.com/dkeye/livestage/internal/adapters/memory"
	wsfeed "github.com/dkeye/livestage/internal/adapters/signal"
	"github.com/dkeye/livestage/internal/app"
	"github.com/dkeye/livestage/internal/app/stage"
	"github.com/dkeye/livestage/internal/captoken"
	"github.com/dkeye/livestage/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tokens, err := captoken.NewCodec(cfg.Capability.Secret, captoken.WithTTL(cfg.Capability.TTL))
	if err != nil {
		return err
	}
	policy, err := app.PolicyByName(cfg.Events.Backpressure)
	if err != nil {
		return err
	}

	ctl := &stage.Controller{
		Media:  livekit.NewMediaTokens(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.WSURL, cfg.MediaTokenTTL),
		Tokens: tokens,
	}
	switch cfg.Directory.Driver {
	case config.DirectoryMemory:
		log.Warn().Str("module", "main").Msg("using in-memory directory; state is lost on restart")
		dir := memory.NewDirectory()
		ctl.Directory = dir
		ctl.Media = memory.NewAdmittingTokens(dir, ctl.Media)
		ctl.Ingress = memory.NewIngress("rtmp://localhost:1935")
	default:
		ctl.Directory = livekit.NewDirectory(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
		ctl.Ingress = livekit.NewIngress(cfg.LiveKit.URL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	}

	switch cfg.Lock.Driver {
	case config.LockValkey:
		vl, err := lock.NewValkey(cfg.Valkey.Addr, cfg.Valkey.Password, cfg.Lock.TTL)
		if err != nil {
			return fmt.Errorf("connect valkey: %w", err)
		}
		defer vl.Close()
		ctl.Locks = vl
	default:
		ctl.Locks = lock.NewLocal()
	}

	reg := app.NewRegistry()
	ctl.Events = &app.Broadcaster{Registry: reg, Policy: policy}
	events := wsfeed.NewEventsController(reg, ctl, cfg.ReadLimit, cfg.PingPeriod, cfg.CORS.AllowedOrigins)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Stage:   ctl,
		Tokens:  tokens,
		Events:  events,
		Limiter: app.NewRateLimiter(cfg.RateLimit.StageActions, cfg.RateLimit.Interval),
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("livestage server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
