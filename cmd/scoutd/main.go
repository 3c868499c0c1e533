// Command scoutd serves competitor profile discovery over HTTP. Jobs are
// started with a POST and polled by ID; finished jobs are swept from memory
// on a schedule.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/scoutbase/scout"
	"github.com/scoutbase/scout/httpcache"
	"github.com/scoutbase/scout/metadata"
	"github.com/scoutbase/scout/platform"
	"github.com/scoutbase/scout/scraper"
	"github.com/scoutbase/scout/search"
)

type config struct {
	Addr             string        `env:"SCOUTD_ADDR" envDefault:":8080"`
	Debug            bool          `env:"SCOUTD_DEBUG" envDefault:"false"`
	FirecrawlAPIKey  string        `env:"FIRECRAWL_API_KEY"`
	PerplexityAPIKey string        `env:"PERPLEXITY_API_KEY"`
	OpenRouterAPIKey string        `env:"OPENROUTER_API_KEY"`
	CacheDir         string        `env:"SCOUTD_CACHE_DIR"`
	JobMaxAge        time.Duration `env:"SCOUTD_JOB_MAX_AGE" envDefault:"24h"`
	SweepSchedule    string        `env:"SCOUTD_SWEEP_SCHEDULE" envDefault:"@every 1h"`
	SkipPlatforms    []string      `env:"SCOUTD_SKIP_PLATFORMS" envSeparator:","`
}

type discoverRequest struct {
	CompetitorName string `json:"competitorName" binding:"required"`
	WebsiteURL     string `json:"websiteUrl"`
}

func main() {
	// Best effort; a missing .env just means the environment is already set.
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("config parse failed", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	store := scout.NewMemoryStore()
	discoverer := buildDiscoverer(cfg, store, logger)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SweepSchedule, func() {
		if n := store.Sweep(cfg.JobMaxAge); n > 0 {
			logger.Info("swept expired jobs", "removed", n, "max_age", cfg.JobMaxAge)
		}
	}); err != nil {
		logger.Error("invalid sweep schedule", "schedule", cfg.SweepSchedule, "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/discoveries", func(c *gin.Context) {
		var req discoverRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		jobID, err := discoverer.Start(c.Request.Context(), req.CompetitorName, req.WebsiteURL)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
	})
	api.GET("/discoveries/:id", func(c *gin.Context) {
		status, err := discoverer.Status(c.Param("id"))
		if err != nil {
			if errors.Is(err, scout.ErrJobNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	})
	api.GET("/discoveries/:id/variables", func(c *gin.Context) {
		status, err := discoverer.Status(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if status.Results == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "discovery not complete"})
			return
		}
		c.JSON(http.StatusOK, scout.CampaignVariables(status.Results))
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server exited", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func buildDiscoverer(cfg config, store scout.Store, logger *slog.Logger) *scout.Discoverer {
	scraperOpts := []scraper.Option{scraper.WithLogger(logger)}
	firecrawlOpts := []scraper.FirecrawlOption{scraper.WithFirecrawlLogger(logger)}

	if cfg.CacheDir != "" {
		cache, err := httpcache.NewWithPath(6*time.Hour, cfg.CacheDir)
		if err != nil {
			logger.Warn("page cache disabled", "dir", cfg.CacheDir, "error", err)
		} else {
			scraperOpts = append(scraperOpts, scraper.WithHTTPCache(cache))
			firecrawlOpts = append(firecrawlOpts, scraper.WithFirecrawlCache(cache))
		}
	}

	if cfg.FirecrawlAPIKey != "" {
		fc := scraper.NewFirecrawl(cfg.FirecrawlAPIKey, firecrawlOpts...)
		scraperOpts = append(scraperOpts, scraper.WithFetcher(fc))
	}

	opts := []scout.Option{
		scout.WithLogger(logger),
		scout.WithStore(store),
		scout.WithScraper(scraper.New(scraperOpts...)),
	}

	creds := search.Credentials{
		PerplexityKey: cfg.PerplexityAPIKey,
		OpenRouterKey: cfg.OpenRouterAPIKey,
	}
	if creds.Configured() {
		strategies := search.Strategies(creds, "")
		opts = append(opts,
			scout.WithSearcher(search.New(strategies, search.WithLogger(logger))),
			scout.WithMetadata(metadata.New(strategies, metadata.WithLogger(logger))),
		)
	} else {
		logger.Warn("no search credentials configured, relying on website links only")
	}

	var skip []platform.Platform
	for _, name := range cfg.SkipPlatforms {
		skip = append(skip, platform.Platform(name))
	}
	if len(skip) > 0 {
		opts = append(opts, scout.WithSkipPlatforms(skip...))
	}

	return scout.New(opts...)
}
