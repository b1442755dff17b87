package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crawlspace/linkgate/internal/errors"
	"github.com/crawlspace/linkgate/internal/filter"
	"github.com/crawlspace/linkgate/internal/shutdown"
	"github.com/crawlspace/linkgate/pkg/linkgate"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	debug      bool

	// Serve flags
	listenAddr string

	// Filter flags
	requestFile string
	outputFile  string
	prettyPrint bool

	// Crawl flags
	workers         int
	maxDepth        int
	limit           int
	includePatterns []string
	excludePatterns []string
	regexOnFullURL  bool
	allowBackward   bool
	ignoreRobots    bool
	rateLimit       float64
	queuePath       string
	userAgent       string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "linkgate",
		Short: "linkgate - crawl frontier admission filter",
		Long: `linkgate decides which discovered links may enter a crawl frontier.

It fuses URL normalization, scope and backward-crawl policy, regex
include/exclude matching, depth accounting, and robots.txt evaluation into
one deterministic decision per link, served over HTTP or run in-process by
the built-in crawl loop.`,
		Version: version,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the filter HTTP service",
		Long:  "Serve the admission filter API: POST /filter, /healthz, /metrics, /events.",
		RunE:  runServe,
	}

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Run one filter request from a file or stdin",
		Long:  "Read a filter request payload (JSON) and print the result.",
		RunE:  runFilter,
	}

	crawlCmd := &cobra.Command{
		Use:   "crawl [target]",
		Short: "Crawl a target URL",
		Long:  "Crawl a target URL, admitting links through the filter as it goes.",
		Args:  cobra.ExactArgs(1),
		RunE:  runCrawl,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Serve flags
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from config)")

	// Filter flags
	filterCmd.Flags().StringVarP(&requestFile, "request", "r", "-", "Request file (- for stdin)")
	filterCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	filterCmd.Flags().BoolVar(&prettyPrint, "pretty", true, "Pretty-print the result")

	// Crawl flags
	crawlCmd.Flags().IntVarP(&workers, "workers", "w", 16, "Number of concurrent workers")
	crawlCmd.Flags().IntVarP(&maxDepth, "max-depth", "d", 10, "Maximum crawl depth beyond the seed path")
	crawlCmd.Flags().IntVar(&limit, "limit", 0, "Cap on accepted links per page (0 = no cap)")
	crawlCmd.Flags().StringArrayVar(&includePatterns, "include", nil, "URL patterns to include (regex)")
	crawlCmd.Flags().StringArrayVar(&excludePatterns, "exclude", nil, "URL patterns to exclude (regex)")
	crawlCmd.Flags().BoolVar(&regexOnFullURL, "regex-full-url", false, "Match patterns against the full URL instead of the path")
	crawlCmd.Flags().BoolVar(&allowBackward, "allow-backward", false, "Allow links above the seed's path level")
	crawlCmd.Flags().BoolVar(&ignoreRobots, "ignore-robots", false, "Ignore robots.txt")
	crawlCmd.Flags().Float64VarP(&rateLimit, "rate-limit", "r", 50, "Requests per second")
	crawlCmd.Flags().StringVar(&queuePath, "queue-file", "", "Frontier database file for resumable crawls")
	crawlCmd.Flags().StringVar(&userAgent, "user-agent", "", "User agent override")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(crawlCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig builds the effective configuration from file and flags.
func loadConfig() (*linkgate.Config, error) {
	cfg := linkgate.DefaultConfig()

	if configFile != "" {
		loaded, err := linkgate.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if debug {
		cfg.Debug = true
	}

	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	svc, err := linkgate.New(cfg)
	if err != nil {
		return err
	}

	return svc.Serve()
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if requestFile != "" && requestFile != "-" {
		f, err := os.Open(requestFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var req filter.Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return errors.NewTransport("filter", "malformed request payload", err)
	}

	engine := filter.NewEngine(cfg.UserAgent)
	result, err := engine.Filter(&req)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	if prettyPrint {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flags override config
	cfg.Crawl.Workers = workers
	cfg.Crawl.RequestsPerSecond = rateLimit
	cfg.Scope.MaxDepth = maxDepth
	cfg.Scope.Limit = limit
	if len(includePatterns) > 0 {
		cfg.Scope.Includes = includePatterns
	}
	if len(excludePatterns) > 0 {
		cfg.Scope.Excludes = excludePatterns
	}
	cfg.Scope.RegexOnFullURL = regexOnFullURL
	cfg.Scope.AllowBackwardCrawling = allowBackward
	cfg.Scope.IgnoreRobotsTxt = ignoreRobots
	if queuePath != "" {
		cfg.Queue.Path = queuePath
	}
	if userAgent != "" {
		cfg.UserAgent = userAgent
	}

	svc, err := linkgate.New(cfg)
	if err != nil {
		return err
	}

	sd := shutdown.New(30 * time.Second)
	if err := svc.Crawl(sd.Context(), args[0]); err != nil && err != context.Canceled {
		return err
	}

	snap := svc.Metrics().Snapshot()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
