package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sariahouse/racebot/internal/config"
	"github.com/sariahouse/racebot/internal/discord"
	"github.com/sariahouse/racebot/internal/gen"
	"github.com/sariahouse/racebot/internal/ops"
	"github.com/sariahouse/racebot/internal/racing"
	"github.com/sariahouse/racebot/internal/store"
	"github.com/sariahouse/racebot/internal/supervisor"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}
	if cfg.Production {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	for _, dir := range []string{filepath.Dir(cfg.DatabasePath), cfg.SeedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).Fatalf("creating %s failed", dir)
		}
	}

	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.WithError(err).Fatal("opening database failed")
	}
	defer db.Close()

	notifier, err := discord.New(log, cfg.DiscordToken, cfg.DiscordAlertChannel, cfg.Production)
	if err != nil {
		log.WithError(err).Fatal("connecting to discord failed")
	}
	defer notifier.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	raceClient := racing.NewClient(httpClient, log, cfg.PlatformHost, cfg.PlatformCategory, cfg.ClientID, cfg.ClientSecret)
	webClient := gen.NewWebClient(httpClient, log, cfg.GeneratorBaseURL, cfg.GeneratorAPIKey, cfg.GeneratorEncryptionKey, cfg.SeedDir)
	localRoller := gen.NewLocalRoller(log, cfg.RandomizerDir, cfg.SeedDir)
	blitzClient := gen.NewBlitzClient(httpClient, cfg.BlitzBaseURL)
	genService := gen.NewService(log, db, webClient, localRoller, blitzClient)

	shutdown := supervisor.NewCleanShutdown()
	sup := supervisor.New(log, db, raceClient, genService, notifier, shutdown, cfg.BlitzBaseURL)

	statusServer := &http.Server{
		Addr:    cfg.StatusAddr,
		Handler: ops.NewServer(shutdown),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sup.ScanRaces(ctx) })
	g.Go(func() error { return sup.RunFeed(ctx) })
	g.Go(func() error { return genService.MaintainSeedCache(ctx) })
	g.Go(func() error {
		if err := statusServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// First signal: stop taking on new rooms and drain the open ones.
	// Second signal: stop immediately.
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Info("shutdown requested, draining open rooms")
		drained := shutdown.Request(true)
		select {
		case <-drained:
			log.Info("all rooms closed")
		case <-stop:
			log.Warn("second signal, stopping immediately")
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("status server shutdown failed")
		}
	}()

	log.WithField("category", cfg.PlatformCategory).Info("racebot started")
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("racebot stopped")
	}
	log.Info("racebot stopped")
}
