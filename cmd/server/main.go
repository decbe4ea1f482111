package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"post-or-nah/backend/internal/analyzer"
	"post-or-nah/backend/internal/api"
	"post-or-nah/backend/internal/billing"
	"post-or-nah/backend/internal/config"
	"post-or-nah/backend/internal/store"
	"post-or-nah/backend/internal/verdict"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $"+config.EnvConfigPath+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}
	db, err := store.Open(cfg.DBPath, true)
	if err != nil {
		logrus.Fatalf("open store: %v", err)
	}
	defer db.Close()

	reviewer := analyzer.New(cfg.BuildModel(ctx), verdict.NewParser(), cfg.AnalyzerConfig())
	meter := billing.NewMeter(db, cfg.MeterConfig())
	var webhooks *billing.Webhooks
	if cfg.Billing.WebhookSecret != "" {
		webhooks = billing.NewWebhooks(meter, cfg.Billing.WebhookSecret)
	} else {
		logrus.Info("stripe webhook disabled - no signing secret configured")
	}
	var checkout *billing.Checkout
	if coCfg, ok := cfg.CheckoutConfig(); ok {
		checkout, err = billing.NewCheckout(meter, coCfg)
		if err != nil {
			logrus.Fatalf("configure checkout: %v", err)
		}
	} else {
		logrus.Info("stripe checkout disabled - no secret key configured")
	}

	server, err := api.NewServer(api.Config{
		Analyzer:       reviewer,
		Meter:          meter,
		Webhooks:       webhooks,
		Checkout:       checkout,
		AllowedOrigins: cfg.AllowedOrigins,
		AdminToken:     cfg.Billing.AdminToken,
		RatePerMinute:  cfg.RateLimit.PerMinute,
		RateBurst:      cfg.RateLimit.Burst,
	})
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer server.Close()

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logrus.WithFields(logrus.Fields{
			"model":   reviewer.ModelName(),
			"billing": meter.Enabled(),
		}).Infof("starting post-or-nah backend on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		logrus.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logrus.Fatalf("server exited: %v", err)
	}
}
