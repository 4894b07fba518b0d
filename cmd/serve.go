package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/api"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/enrichment"
	"github.com/alexisthb/gourrmet-signals-42-sub000/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for enrichment requests and status checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		handlers := api.NewHandlers(env.Store, env.Requestor, env.Poller, env.Breakers)
		staleAfter := time.Duration(cfg.Monitor.StaleTaskHours) * time.Hour
		collector := monitoring.NewCollector(env.Store, env.Breakers, staleAfter)
		handlers.SetCollector(collector)
		router := api.NewRouter(handlers, cfg.Server.AllowedOrigins)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		if cfg.Sweep.IntervalSecs > 0 {
			sweeper := enrichment.NewSweeper(env.Store, env.Poller, cfg.Sweep.Concurrency)
			interval := time.Duration(cfg.Sweep.IntervalSecs) * time.Second
			g.Go(func() error {
				zap.L().Info("background sweep enabled", zap.Duration("interval", interval))
				return sweeper.Run(gctx, interval)
			})
		}

		if cfg.Monitor.CheckIntervalSecs > 0 {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitor.WebhookURL),
				time.Duration(cfg.Monitor.CheckIntervalSecs)*time.Second)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
