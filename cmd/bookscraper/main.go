// cmd/bookscraper/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/openshelf/bookscraper/internal/config"
	"github.com/openshelf/bookscraper/internal/crawl"
	"github.com/openshelf/bookscraper/internal/fetch"
	"github.com/openshelf/bookscraper/internal/monitoring"
	"github.com/openshelf/bookscraper/internal/output"
	"github.com/openshelf/bookscraper/pkg/api"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "run":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: run requires a configuration file")
			os.Exit(1)
		}
		runCrawl(os.Args[2], false)

	case "network":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: network requires a configuration file")
			os.Exit(1)
		}
		runCrawl(os.Args[2], true)

	case "serve":
		configFile := ""
		if len(os.Args) >= 3 {
			configFile = os.Args[2]
		}
		serve(configFile)

	case "validate":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: validate requires a configuration file")
			os.Exit(1)
		}
		validateConfig(os.Args[2])

	case "version", "--version":
		fmt.Printf("bookscraper %s (built %s, commit %s)\n", version, buildTime, gitCommit)

	case "help", "--help", "-h":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func loadConfig(configFile string) *config.CrawlConfig {
	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("BOOKSCRAPER_DEBUG") != "" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

// runCrawl drives a crawl session to completion. Network crawls expand the
// social graph from the start profiles; plain runs fetch exactly the
// configured URLs plus what sitemaps enumerate.
func runCrawl(configFile string, network bool) {
	cfg := loadConfig(configFile)
	log := newLogger()

	metrics, _ := monitoring.NewMetrics("bookscraper")

	sink, err := output.NewManager(&cfg.Output, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	fetcher := fetch.NewClient(fetch.Config{
		Timeout:       cfg.Fetch.Timeout,
		RetryAttempts: cfg.Fetch.RetryAttempts,
		RetryDelay:    cfg.Fetch.RetryDelay,
		RateLimit:     cfg.Fetch.RateLimit,
		RateBurst:     cfg.Fetch.RateBurst,
		UserAgents:    cfg.Fetch.UserAgents,
		Headers:       cfg.Fetch.Headers,
	}, log)

	var browser fetch.Fetcher
	if cfg.Fetch.BrowserEnabled {
		browser = fetch.NewBrowser(cfg.Fetch.BrowserTimeout, "", log)
	}

	if network {
		cfg.CollectReviews = true
	}

	session := crawl.NewSession(cfg, fetcher, browser, sink, metrics, log)
	if err := session.Run(context.Background()); err != nil {
		log.WithError(err).Error("crawl failed")
		os.Exit(1)
	}
	log.Info("crawl complete")
}

// serve runs the HTTP batch-scraping API.
func serve(configFile string) {
	var cfg *config.CrawlConfig
	if configFile != "" {
		cfg = loadConfig(configFile)
	} else {
		cfg = config.Default()
	}
	log := newLogger()

	metrics, registry := monitoring.NewMetrics("bookscraper")

	sink, err := output.NewManager(&cfg.Output, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	fetcher := fetch.NewClient(fetch.Config{
		Timeout:       cfg.Fetch.Timeout,
		RetryAttempts: cfg.Fetch.RetryAttempts,
		RetryDelay:    cfg.Fetch.RetryDelay,
		RateLimit:     cfg.Fetch.RateLimit,
		RateBurst:     cfg.Fetch.RateBurst,
		UserAgents:    cfg.Fetch.UserAgents,
		Headers:       cfg.Fetch.Headers,
	}, log)

	var browser fetch.Fetcher
	if cfg.Fetch.BrowserEnabled {
		browser = fetch.NewBrowser(cfg.Fetch.BrowserTimeout, "", log)
	}

	server := api.NewServer(cfg, fetcher, browser, sink, metrics, registry, log)
	if err := server.ListenAndServe(); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}

func validateConfig(configFile string) {
	if _, err := config.LoadFromFile(configFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Configuration file '%s' is valid\n", configFile)
}

func printUsage() {
	fmt.Println(`bookscraper - book catalog content extraction

Usage:
  bookscraper <command> [arguments]

Commands:
  run <config.yaml>      Crawl the configured start URLs (books, authors, sitemaps)
  network <config.yaml>  Expand the social graph from the start profiles
  serve [config.yaml]    Run the HTTP batch-scraping API
  validate <config.yaml> Check a configuration file
  version                Print version information
  help                   Show this help

Environment:
  BOOKSCRAPER_DEBUG      Enable debug logging when set`)
}
