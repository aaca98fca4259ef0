package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PentesterFlow/crmprobe/internal/logger"
	"github.com/PentesterFlow/crmprobe/internal/output"
	"github.com/PentesterFlow/crmprobe/internal/progress"
	"github.com/PentesterFlow/crmprobe/internal/report"
	"github.com/PentesterFlow/crmprobe/internal/shutdown"
	"github.com/PentesterFlow/crmprobe/internal/store"
	"github.com/PentesterFlow/crmprobe/pkg/discovery"
)

var (
	version = "1.0.0"

	// Global flags
	configFile  string
	envFile     string
	historyPath string
	verbose     bool
	logFormat   string

	// Discover flags
	apiURL          string
	apiKey          string
	iterations      int
	concurrency     int
	timeoutMs       int
	sampleID        string
	outputFile      string
	rateLimitBudget time.Duration
	noHistory       bool
	noProgress      bool

	// History flags
	limit int

	// Init flags
	force bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crmprobe",
		Short: "crmprobe - CRM dual-API discovery",
		Long: `crmprobe measures a CRM's GraphQL and REST APIs side by side.

It samples latency for standard operations on both protocols, introspects the
GraphQL schema, probes token scopes, rate limits and cache headers, and writes
a JSON report with integration recommendations.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Run a discovery against the configured CRM",
		Args:  cobra.NoArgs,
		RunE:  runDiscover,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List stored discovery runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file")
	rootCmd.PersistentFlags().StringVar(&historyPath, "history", "", "Report history database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "pretty", "Log format (pretty, json)")

	// Discover flags
	discoverCmd.Flags().StringVar(&apiURL, "url", "", "CRM base URL (env TWENTY_API_URL)")
	discoverCmd.Flags().StringVar(&apiKey, "api-key", "", "API key (env TWENTY_API_KEY)")
	discoverCmd.Flags().IntVarP(&iterations, "iterations", "n", 5, "Trials per operation and protocol")
	discoverCmd.Flags().IntVar(&concurrency, "concurrency", 10, "Maximum concurrent requests")
	discoverCmd.Flags().IntVarP(&timeoutMs, "timeout", "t", 10000, "Request timeout in milliseconds")
	discoverCmd.Flags().StringVar(&sampleID, "sample-id", "", "Record id used by single-record operations")
	discoverCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Report file (default: ./reports/api-discovery-<timestamp>.json)")
	discoverCmd.Flags().DurationVar(&rateLimitBudget, "rate-limit-budget", 30*time.Second, "Wall-clock limit of the rate-limit probe")
	discoverCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not store the report in history")
	discoverCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	// History flags
	historyCmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list (0 lists all)")

	// Init flags
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, the environment and flags, in
// that order of precedence.
func loadConfig(cmd *cobra.Command) (*discovery.Config, error) {
	config := discovery.DefaultConfig()
	if configFile != "" {
		fileConfig, err := discovery.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	if err := config.ApplyEnv(envFile); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		config.APIBaseURL = apiURL
	}
	if flags.Changed("api-key") {
		config.APIKey = apiKey
	}
	if flags.Changed("iterations") {
		config.TestIterations = iterations
	}
	if flags.Changed("concurrency") {
		config.MaxConcurrentRequests = concurrency
	}
	if flags.Changed("timeout") {
		config.RequestTimeout = time.Duration(timeoutMs) * time.Millisecond
	}
	if flags.Changed("sample-id") {
		config.SampleRecordID = sampleID
	}
	if flags.Changed("output") {
		config.OutputPath = outputFile
	}
	if flags.Changed("rate-limit-budget") {
		config.RateLimit.Budget = rateLimitBudget
	}
	if flags.Changed("history") {
		config.HistoryPath = historyPath
	}
	if noHistory {
		config.HistoryPath = ""
	}
	if verbose {
		config.Verbose = true
	}

	return config, nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(config, logFormat, !noProgress)
	if err != nil {
		return err
	}

	var finished atomic.Bool
	h := shutdown.New(cmd.Context(), shutdown.Config{
		OnShutdownStart: func() {
			if !finished.Load() {
				fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, stopping...")
			}
		},
	})
	defer func() {
		finished.Store(true)
		h.Shutdown()
	}()
	go h.Watch()

	display := progress.New(os.Stderr, len(discovery.Analyzers))
	opts := []discovery.Option{
		discovery.WithConfig(config),
		discovery.WithLogger(log),
	}
	if !noProgress {
		opts = append(opts, discovery.WithProgress(display))
	}

	if config.HistoryPath != "" {
		history, err := store.Open(config.HistoryPath)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		h.RegisterFunc("history", func() { history.Close() })
		opts = append(opts, discovery.WithHistory(history))
	}

	engine, err := discovery.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	h.RegisterFunc("engine", func() { engine.Close() })

	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "crmprobe v%s - discovering %s\n", version, config.APIBaseURL)
	fmt.Fprintln(os.Stderr)

	r, err := engine.Run(h.Context())
	if err != nil {
		if h.IsShuttingDown() {
			return fmt.Errorf("discovery interrupted")
		}
		return fmt.Errorf("discovery failed: %w", err)
	}

	path := config.OutputPath
	if path == "" {
		path = defaultReportPath(r)
	}
	if err := engine.SaveReport(r, path); err != nil {
		return err
	}

	display.Start(config.APIBaseURL)
	display.PrintSummary(r)
	fmt.Fprintf(os.Stderr, "Full report saved to: %s\n", path)
	return nil
}

// newLogger builds the run logger. With the progress bar showing, info lines
// are suppressed unless verbose is set.
func newLogger(config *discovery.Config, format string, showProgress bool) (*logger.Logger, error) {
	level, levelErr := logger.ParseLevel(config.LogLevel)
	if levelErr != nil || config.LogLevel == "" {
		level = logger.InfoLevel
	}

	var log *logger.Logger
	switch format {
	case "", "pretty":
		cfg := logger.DefaultConfig()
		cfg.Level = level
		cfg.Component = "crmprobe"
		log = logger.New(cfg)
	case "json":
		log = logger.NewJSON(level).WithComponent("crmprobe")
	default:
		return nil, fmt.Errorf("unknown log format %q (want pretty or json)", format)
	}

	if levelErr != nil {
		log.Warnf("Invalid log level %q, using info", config.LogLevel)
	}
	if config.Verbose {
		log.SetLevel(logger.DebugLevel)
	} else if showProgress && level < logger.WarnLevel {
		log.SetLevel(logger.WarnLevel)
	}
	return log, nil
}

func defaultReportPath(r *report.DiscoveryReport) string {
	return filepath.Join("reports", "api-discovery-"+r.Timestamp.UTC().Format("2006-01-02T15-04-05Z")+".json")
}

func openHistory(cmd *cobra.Command) (*store.BoltStore, error) {
	path := discovery.DefaultConfig().HistoryPath
	if configFile != "" {
		fileConfig, err := discovery.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		if fileConfig.HistoryPath != "" {
			path = fileConfig.HistoryPath
		}
	}
	if cmd.Flags().Changed("history") {
		path = historyPath
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no history at %s", path)
	}
	return store.Open(path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	history, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.List()
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No stored runs")
		return nil
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Println(bold(fmt.Sprintf("%-36s  %-20s  %-10s  %-8s  %s", "RUN ID", "TIMESTAMP", "VERSION", "FASTER", "LIMITED")))
	shown := historyWindow(len(runs), limit)
	for _, run := range runs[:shown] {
		fmt.Printf("%-36s  %-20s  %-10s  %-8s  %v\n",
			run.RunID, run.Timestamp.UTC().Format(time.RFC3339), run.ServiceVersion, run.FasterAPI.Label(), run.LimitsDetected)
	}
	if len(runs) > shown {
		fmt.Printf("... and %d more\n", len(runs)-shown)
	}
	return nil
}

// historyWindow returns how many of total runs to list. A non-positive limit
// lists them all.
func historyWindow(total, limit int) int {
	if limit <= 0 {
		return total
	}
	return min(total, limit)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "crmprobe.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := discovery.DefaultConfig().SaveToFile(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	history, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer history.Close()

	r, err := history.Get(args[0])
	if err != nil {
		return err
	}

	w := output.NewWriter(os.Stdout, output.Config{Format: "json", Pretty: true})
	return w.WriteReport(r)
}
