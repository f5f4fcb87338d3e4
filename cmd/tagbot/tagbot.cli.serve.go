package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/itsatony/go-tagbot"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   CmdNameServe,
		Short: HelpShortServe,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return serve(cmd.Context(), cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, FlagAddr, "", "listen address override")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *tagbot.Config) error {
	logger, closeLogger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return fail(ExitCodeValidationError, ErrMsgBuildLogger, err)
	}
	defer closeLogger()

	storage, err := cfg.OpenStorage(logger)
	if err != nil {
		return fail(ExitCodeError, ErrMsgOpenStorage, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := tagbot.NewMetrics(registry)
	if err != nil {
		_ = storage.Close()
		return fail(ExitCodeError, ErrMsgRegisterMetric, err)
	}

	roster := tagbot.NewRoster()
	opts := append(cfg.Options(),
		tagbot.WithRoster(roster),
		tagbot.WithMetrics(metrics),
		tagbot.WithLogger(logger),
	)
	bot, err := tagbot.New(storage, tagbot.NewGatewaySender(), opts...)
	if err != nil {
		_ = storage.Close()
		return fail(ExitCodeError, ErrMsgBuildBot, err)
	}
	defer bot.Close()

	gatewayConfig := tagbot.GatewayConfig{
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Logger:      logger,
	}
	if cfg.HTTP.Metrics {
		gatewayConfig.Gatherer = registry
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           tagbot.NewGatewayHandler(bot, roster, gatewayConfig),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(LogMsgServing,
			zap.String(LogFieldAddr, cfg.HTTP.Addr),
			zap.String(LogFieldDriver, cfg.Storage.Driver))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(LogMsgShuttingDown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fail(ExitCodeError, ErrMsgServe, err)
	}
	return nil
}
