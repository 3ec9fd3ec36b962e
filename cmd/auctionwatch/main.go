// cmd/auctionwatch/main.go
// Command auctionwatch scrapes commercial real-estate auction listings
// from a configured marketplace and exports them as a timestamped artifact.
//
// The process exits 0 whenever an artifact was written, even when the run
// was canceled or produced no records. Only a browser that cannot start or
// an export that cannot be written exit non-zero.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/realyield/auctionwatch/internal/browser"
	"github.com/realyield/auctionwatch/internal/config"
	"github.com/realyield/auctionwatch/internal/monitoring"
	"github.com/realyield/auctionwatch/internal/output"
	"github.com/realyield/auctionwatch/internal/pipeline"
	"github.com/realyield/auctionwatch/internal/scraper"
	"github.com/realyield/auctionwatch/internal/utils"
	"github.com/realyield/auctionwatch/pkg/types"
)

const (
	exitOK           = 0
	exitUsage        = 1
	exitSessionStart = 2
	exitExport       = 3
)

var (
	configPath   = flag.String("config", "", "path to YAML run configuration")
	sourceFlag   = flag.String("source", "", "marketplace to scrape (crexi, loopnet or rmi)")
	headlessFlag = flag.Bool("headless", true, "run the browser headless")
	maxPagesFlag = flag.Int("max-pages", 0, "cap on index pages visited (0 = unbounded)")
	verboseFlag  = flag.Bool("v", false, "enable debug logging")
	validateFlag = flag.Bool("validate", false, "validate the configuration and exit")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitUsage
	}
	if *validateFlag {
		fmt.Println("configuration is valid")
		return exitOK
	}

	log := utils.NewLoggerWithLevel(logLevel(cfg.LogLevel))
	source, err := types.ParseSource(cfg.Source)
	if err != nil {
		log.Errorf("%v", err)
		return exitUsage
	}
	profile, err := scraper.ProfileFor(source, cfg.MaxPages)
	if err != nil {
		log.Errorf("%v", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	if cfg.Metrics.Enabled {
		server := monitoring.NewServer(cfg.Metrics.Listen, metrics, log)
		server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()
	}

	// Export destinations are prepared before the browser launches, so a
	// misconfigured sink fails fast instead of after a long scrape.
	manager := output.NewManager(output.Format(cfg.Output.Format), cfg.Output.Directory, log)
	defer manager.Close()
	if err := addSinks(manager, cfg); err != nil {
		log.Errorf("%v", err)
		return exitExport
	}

	sessionCfg := browser.DefaultSessionConfig()
	sessionCfg.Headless = *cfg.Headless
	sessionCfg.RequestDelay = cfg.RequestDelay()
	sessionCfg.NavTimeout = cfg.NavTimeout()
	if cfg.UserAgent != "" {
		sessionCfg.UserAgent = cfg.UserAgent
	}

	session, err := browser.NewSession(ctx, sessionCfg)
	if err != nil {
		log.Errorf("%v", err)
		return exitSessionStart
	}
	defer session.Close()

	runner := &scraper.Runner{
		Profile: profile,
		Nav:     &scraper.SessionNavigator{Session: session},
		Detail:  &scraper.SessionNavigator{Session: session, Capture: profile.Capture},
		Retry: scraper.RetryPolicy{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			PerAttemptTimeout: cfg.Retry.PerAttemptTimeout(),
			BaseDelay:         cfg.Retry.BaseDelay(),
			MaxDelay:          cfg.Retry.MaxDelay(),
		},
		Normalizer:  pipeline.NewNormalizer(log),
		Logger:      log,
		Observer:    metrics,
		MaxListings: cfg.MaxListings,
	}

	result := runner.Run(ctx)

	// The partial result is exported even after cancellation.
	exportStart := time.Now()
	path, err := manager.Export(result)
	metrics.ObserveExport(time.Since(exportStart).Seconds())
	if err != nil {
		log.Errorf("%v", err)
		return exitExport
	}
	log.Infof("artifact written: %s", path)
	return exitOK
}

// loadConfig reads the config file when given, then layers explicitly set
// flags on top.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Source = *sourceFlag
		case "headless":
			cfg.Headless = headlessFlag
		case "max-pages":
			cfg.MaxPages = *maxPagesFlag
		case "v":
			cfg.LogLevel = "debug"
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func addSinks(manager *output.Manager, cfg *config.Config) error {
	if pg := cfg.Output.Postgres; pg != nil {
		w, err := output.NewPostgresWriter(output.PostgresOptions{
			ConnectionString: pg.DSN,
			Table:            pg.Table,
		})
		if err != nil {
			return &output.ExportError{Dest: "postgres", Cause: err}
		}
		manager.AddSink(w)
	}
	if lite := cfg.Output.SQLite; lite != nil {
		w, err := output.NewSQLiteWriter(lite.Path)
		if err != nil {
			return &output.ExportError{Dest: lite.Path, Cause: err}
		}
		manager.AddSink(w)
	}
	return nil
}

func logLevel(level string) utils.LogLevel {
	if *verboseFlag {
		return utils.DebugLevel
	}
	switch level {
	case "debug":
		return utils.DebugLevel
	case "warn":
		return utils.WarnLevel
	case "error":
		return utils.ErrorLevel
	default:
		return utils.InfoLevel
	}
}
