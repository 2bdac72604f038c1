package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"slideshow-renderer/config"
	"slideshow-renderer/handlers"
	"slideshow-renderer/middleware"
	"slideshow-renderer/publish"
	"slideshow-renderer/render"
	"slideshow-renderer/staging"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the slideshow render HTTP service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfig()

	if err := os.MkdirAll(cfg.StagingDir, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	store := publish.NewStore(cfg.OutputDir, cfg.BaseURL, cfg.LinkKey, cfg.LinkTTL)
	fetcher := staging.NewHTTPFetcher(cfg.FetchTimeout, cfg.FetchRatePerSec)
	pipeline := render.NewPipeline(fetcher, render.NewFFmpeg(cfg.FFmpegBin), store, render.Options{
		StagingDir:        cfg.StagingDir,
		TrailingBuffer:    cfg.TrailingBuffer,
		FrameRate:         cfg.FrameRate,
		EncodeTimeout:     cfg.EncodeTimeout,
		AllowRemoteInputs: cfg.AllowRemoteInputs,
		MaxFetches:        cfg.MaxFetches,
	})

	initCleanupSchedule(cfg, store)

	// Set release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CorsMiddleware())
	router.Use(middleware.GzipMiddleware())

	handlerContext := &handlers.HandlerContext{
		Config:   cfg,
		Pipeline: pipeline,
		Store:    store,
	}

	router.POST("/render", handlerContext.RenderHandler)
	router.GET("/download", handlerContext.DownloadHandler)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		// A render holds its connection through both encoder stages.
		WriteTimeout: 2*cfg.EncodeTimeout + 2*time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting server with configuration:")
	log.Printf("- Base URL: %s", cfg.BaseURL)
	log.Printf("- Staging directory: %s", cfg.StagingDir)
	log.Printf("- Output directory: %s", cfg.OutputDir)
	log.Printf("- Remote input passthrough: %v", cfg.AllowRemoteInputs)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// initCleanupSchedule starts the cron sweeps for working areas orphaned by
// crashes and for published outputs past their retention window, plus one
// immediate sweep for anything a previous run left behind.
func initCleanupSchedule(cfg *config.AppConfig, store *publish.Store) {
	// An area older than any healthy render could run is orphaned.
	staleAge := time.Hour
	if a := 2 * cfg.EncodeTimeout; a > staleAge {
		staleAge = a
	}

	sweep := func() {
		count, err := staging.CleanStale(cfg.StagingDir, staleAge)
		if err != nil {
			log.Printf("Error sweeping stale areas: %v", err)
		} else if count > 0 {
			log.Printf("Swept %d stale working areas", count)
		}
		removed, err := store.CleanExpired(cfg.OutputRetention)
		if err != nil {
			log.Printf("Error removing expired outputs: %v", err)
		} else if removed > 0 {
			log.Printf("Removed %d expired outputs", removed)
		}
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CleanupSchedule, sweep); err != nil {
		log.Printf("Invalid cron schedule %q, falling back to hourly", cfg.CleanupSchedule)
		c.AddFunc("0 * * * *", sweep)
	}
	c.Start()

	go sweep()
}
