// fileindexd is an always-on local file indexer and search service,
// modeled on Everything-style instant filename search.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/fileindexd/internal/config"
	"github.com/anthropics/fileindexd/internal/coordinator"
	"github.com/anthropics/fileindexd/internal/crawler"
	"github.com/anthropics/fileindexd/internal/httpapi"
	"github.com/anthropics/fileindexd/internal/logging"
	"github.com/anthropics/fileindexd/internal/store"
	"github.com/anthropics/fileindexd/internal/watcher"
)

const version = "0.1.0"

func main() {
	var (
		showVersion = flag.Bool("version", false, "Show version")
		dbPath      = flag.String("db", "", "Index database path (default: config/env)")
		debug       = flag.Bool("debug", false, "Enable debug logging")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `fileindexd v%s - local file index and search service

Usage: fileindexd [options]

Options:
`, version)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Environment Variables:
  FILE_INDEX_HOST, FILE_INDEX_PORT, FILE_INDEX_WATCH_PATHS,
  FILE_INDEX_INDEX_DB_PATH, FILE_INDEX_SCAN_WORKERS, FILE_INDEX_DEBOUNCE_MS,
  FILE_INDEX_BATCH_SIZE, FILE_INDEX_IGNORE_PATTERNS, FILE_INDEX_DEFAULT_COUNT,
  FILE_INDEX_MAX_COUNT, FILE_INDEX_DEFAULT_PATH
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("fileindexd v%s\n", version)
		return
	}

	log := logging.New(os.Stderr, *debug)

	cfg := config.Load()
	if *dbPath != "" {
		cfg.IndexDBPath = *dbPath
	}

	st, err := store.New(cfg.IndexDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open index database")
	}

	ignoreFunc := func(path string) bool {
		patterns, err := st.ListIgnorePatterns(context.Background())
		if err != nil {
			return false
		}
		return store.MatchesIgnore(path, patterns)
	}

	cr := crawler.New(crawler.Options{
		Workers:    cfg.ScanWorkers,
		BatchSize:  cfg.BatchSize,
		IgnoreFunc: ignoreFunc,
		Log:        log,
	})

	wt, err := watcher.New(st, time.Duration(cfg.DebounceMS)*time.Millisecond, ignoreFunc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("create watcher")
	}

	co := coordinator.New(st, cr, wt, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := co.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("coordinator start")
	}

	go func() {
		if err := wt.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("watcher run exited")
		}
	}()

	api := httpapi.New(st, co, cfg, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      api.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("fileindexd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown")
	}
	if err := co.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("coordinator shutdown")
	}
}
