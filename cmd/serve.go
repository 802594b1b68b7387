package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dealdesk/internal/api"
	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/dcf"
	"github.com/sells-group/dealdesk/internal/negotiation"
	"github.com/sells-group/dealdesk/internal/research"
	"github.com/sells-group/dealdesk/internal/resilience"
	"github.com/sells-group/dealdesk/pkg/alphavantage"
	"github.com/sells-group/dealdesk/pkg/anthropic"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		guard := resilience.NewGuard(
			resilience.PolicyFrom(cfg.Retry.MaxAttempts, cfg.Retry.InitialBackoffMs, cfg.Retry.MaxBackoffMs, cfg.Retry.Multiplier, cfg.Retry.JitterFraction),
			resilience.BreakerFrom(cfg.Circuit.FailureThreshold, cfg.Circuit.ResetTimeoutSecs),
		)
		srv := &api.Server{
			Models:       dcf.NewService(st),
			Negotiations: negotiation.NewService(st),
			Verifier:     auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Audience),
			Breakers:     guard.Breakers,
			Store:        st,
		}
		if err := cfg.Validate("research"); err != nil {
			zap.L().Warn("research disabled", zap.Error(err))
		} else {
			market := alphavantage.NewClient(cfg.AlphaVantage.Key,
				alphavantage.WithBaseURL(cfg.AlphaVantage.BaseURL),
				alphavantage.WithRatePerMinute(cfg.AlphaVantage.RatePerMin),
			)
			srv.Research = research.NewService(st, market, anthropic.NewClient(cfg.Anthropic.Key), guard, research.Config{
				MaxUses:   cfg.Research.MaxUses,
				CacheTTL:  time.Duration(cfg.Research.CacheTTLMinutes) * time.Minute,
				Model:     cfg.Anthropic.Model,
				MaxTokens: cfg.Anthropic.MaxTokens,
				NewsLimit: cfg.Research.NewsLimit,
			})
		}

		handler := api.NewRouter(srv, api.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RatePerSec:     cfg.Server.RatePerSec,
			RateBurst:      cfg.Server.RateBurst,
			MaxBodyBytes:   int64(cfg.Server.MaxUploadMB) << 20,
		})

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
