package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/acuhlmann/hackersbot/internal/bot"
	"github.com/acuhlmann/hackersbot/internal/config"
	"github.com/acuhlmann/hackersbot/internal/fetcher"
	"github.com/acuhlmann/hackersbot/internal/filter"
	"github.com/acuhlmann/hackersbot/internal/llm"
	"github.com/acuhlmann/hackersbot/internal/refresh"
	"github.com/acuhlmann/hackersbot/internal/store"
	"github.com/acuhlmann/hackersbot/internal/summarizer"
	"github.com/acuhlmann/hackersbot/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one refresh and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("No config file at %s, using defaults", *configPath)
		cfg = config.Default()
	}

	st, err := store.New(cfg.OutputDir)
	if err != nil {
		log.Fatalf("Failed to open summary store: %v", err)
	}

	client, err := llm.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build LLM client: %v", err)
	}
	log.Printf("Using LLM provider %s (model %s)", cfg.LLM.Provider, cfg.LLM.Model)

	orch := refresh.New(
		fetcher.NewHNFetcher(cfg.FetchTimeout()),
		filter.New(client),
		summarizer.New(client),
		st,
		refresh.Options{
			MinInterval:   cfg.MinInterval(),
			FetchTimeout:  cfg.FetchTimeout(),
			LLMTimeout:    cfg.LLMTimeout(),
			MaxComments:   cfg.Fetcher.MaxComments,
			MinConfidence: cfg.MinConfidence,
		},
	)

	// Carry the last run's timestamp across restarts so the cooldown
	// survives a process bounce.
	if meta, err := st.LatestMeta(); err != nil {
		log.Printf("WARNING: could not read latest run: %v", err)
	} else {
		orch.Seed(meta)
	}

	if *once {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		log.Println("Running refresh (once mode)...")
		run, err := orch.Refresh(ctx, cfg.TopN, cfg.FilterAI)
		if err != nil {
			log.Fatalf("Refresh failed: %v", err)
		}
		log.Printf("Done, run %s with %d articles", run.ID, len(run.Articles))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := web.NewServer(cfg.Web.Addr, orch, st, cfg.TopN, cfg.FilterAI)
	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start web server: %v", err)
	}
	log.Printf("Web UI listening on %s", cfg.Web.Addr)

	if cfg.BotEnabled() {
		tb, err := bot.New(cfg.Telegram.Token, orch)
		if err != nil {
			log.Fatalf("Failed to start Telegram bot: %v", err)
		}
		go tb.Run(ctx)
	}

	if cfg.RunOnStart {
		log.Println("Running initial refresh...")
		if _, err := orch.Refresh(ctx, cfg.TopN, cfg.FilterAI); err != nil {
			log.Printf("Initial refresh failed: %v", err)
		}
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Schedule, func() {
		log.Println("Cron triggered, refreshing summaries...")
		if _, err := orch.Refresh(ctx, cfg.TopN, cfg.FilterAI); err != nil {
			log.Printf("Scheduled refresh failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to set up cron schedule %q: %v", cfg.Schedule, err)
	}
	c.Start()
	log.Printf("Scheduled refresh with cron expression: %s", cfg.Schedule)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received signal %v, shutting down...", sig)

	cancel()
	c.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Web server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
