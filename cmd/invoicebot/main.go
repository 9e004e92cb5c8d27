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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/comigor/invoicebot-go/internal/config"
	"github.com/comigor/invoicebot-go/internal/history"
	"github.com/comigor/invoicebot-go/internal/llm"
	"github.com/comigor/invoicebot-go/internal/logger"
	"github.com/comigor/invoicebot-go/internal/pipeline"
	"github.com/comigor/invoicebot-go/internal/server"
	"github.com/comigor/invoicebot-go/internal/telegram"
	"github.com/comigor/invoicebot-go/pkg/invoicing"
)

func main() {
	if err := run(); err != nil {
		logger.L.Error("invoicebot stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if !cfg.Telegram.Enabled && !cfg.Server.Enabled {
		return errors.New("nothing to run: enable telegram and/or server")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := pipeline.NewMetrics(registry)

	// Initialize LLM client
	var llmClient llm.Client = llm.NewClient(cfg.LLM)
	if cfg.LLM.Breaker.Enabled {
		llmClient = llm.NewBreakerClient(llmClient, cfg.LLM.Breaker)
	}

	api := invoicing.New(
		invoicing.WithBaseURL(cfg.Invoicing.BaseURL),
		invoicing.WithTimeout(cfg.Invoicing.Timeout),
		invoicing.WithBearerToken(cfg.Invoicing.Token),
		invoicing.WithHeader("User-Agent", "invoicebot"),
		invoicing.WithObserver(metrics),
	)
	logger.L.Info("invoicing API configured", "base_url", api.BaseURL())

	opts := []pipeline.Option{pipeline.WithMetrics(metrics)}
	var store *history.Store
	if cfg.History.Enabled {
		store = history.Open(cfg.History.Path)
		defer store.Close()
		opts = append(opts, pipeline.WithRecorder(store))
	}
	p := pipeline.New(api, llmClient, *cfg, opts...)

	var bot *telegram.Bot
	if cfg.Telegram.Enabled {
		botAPI, err := telegram.Dial(cfg.Telegram)
		if err != nil {
			return fmt.Errorf("telegram login: %w", err)
		}
		bot = telegram.New(botAPI, p, cfg.Telegram, cfg.Pipeline.MessageTimeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.Enabled {
		var hist server.HistoryReader
		if store != nil {
			hist = store
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
			Handler:           server.New(p, hist, registry, cfg.Pipeline.MessageTimeout).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.L.Info("starting server", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if bot != nil {
		g.Go(func() error {
			if err := bot.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("telegram: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
