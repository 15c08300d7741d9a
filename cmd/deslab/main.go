// Command deslab trains a bagged pool of calibrated perceptrons and compares
// dynamic classifier and ensemble selection methods on a held-out test set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"deslab/internal/cfg"
	"deslab/internal/experiment"
	"deslab/internal/metrics"
	"deslab/internal/report"
	"deslab/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Flags shared by run and the root command.
var (
	datasetPath string
	datasetURL  string
	labelColumn string
	methods     []string
	poolSize    int
	regionK     int
	seed        int64
	outputPath  string
	dataPath    string
	logLevel    string
	workers     int
	noHistory   bool
)

var rootCmd = &cobra.Command{
	Use:   "deslab",
	Short: "Dynamic classifier and ensemble selection experiments",
	Long: `deslab trains a pool of calibrated perceptrons with bagging and
evaluates dynamic selection methods (OLA, MCB, KNORA-E, META-DES, ...) on it.

Without a subcommand it behaves like "deslab run".`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	RunE:              runExperiment,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the experiment and write the reports",
	RunE:  runExperiment,
}

var (
	historyLimit int
	historySince string
	historyUntil string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous runs stored in the data directory",
	RunE:  showHistory,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "Data directory for downloads and run history")

	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		f := c.Flags()
		f.StringVar(&datasetPath, "dataset", "", "CSV file to load (default: synthetic dataset)")
		f.StringVar(&datasetURL, "url", "", "CSV URL to download into the data directory")
		f.StringVar(&labelColumn, "label", "", "Name of the label column (default: last column)")
		f.StringSliceVarP(&methods, "methods", "m", nil, "Selection methods to evaluate")
		f.IntVar(&poolSize, "pool-size", 0, "Number of estimators in the pool")
		f.IntVarP(&regionK, "region-k", "k", 0, "Size of the region of competence")
		f.Int64Var(&seed, "seed", 0, "Random seed")
		f.StringVarP(&outputPath, "output", "o", "", "Output directory for reports")
		f.IntVar(&workers, "workers", 0, "Parallel workers")
		f.BoolVar(&noHistory, "no-history", false, "Do not record the run in the data directory")
	}

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historySince, "since", "", "Only runs started at or after this date (2006-01-02 or RFC 3339)")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "Only runs started at or before this date (2006-01-02 or RFC 3339)")

	rootCmd.AddCommand(runCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("deslab failed")
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	setLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

func setLevel(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

// loadSettings reads the configuration and applies the flags that were set
// on cmd.
func loadSettings(cmd *cobra.Command) (*cfg.Settings, error) {
	config, err := cfg.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, &config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	setLevel(config.LogLevel)
	return &config, nil
}

func applyFlags(cmd *cobra.Command, config *cfg.Settings) {
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		config.DatasetPath = datasetPath
	}
	if flags.Changed("url") {
		config.DatasetURL = datasetURL
	}
	if flags.Changed("label") {
		config.LabelColumn = labelColumn
	}
	if flags.Changed("methods") {
		config.Methods = methods
	}
	if flags.Changed("pool-size") {
		config.PoolSize = poolSize
	}
	if flags.Changed("region-k") {
		// SafeK follows K unless it was configured on its own.
		if config.SafeK == 0 || config.SafeK == config.K {
			config.SafeK = regionK
		}
		config.K = regionK
	}
	if flags.Changed("seed") {
		config.Seed = seed
		config.Synthetic.Seed = seed
	}
	if flags.Changed("output") {
		config.OutputPath = outputPath
	}
	if flags.Changed("data") {
		config.DataPath = dataPath
	}
	if flags.Changed("workers") {
		config.Workers = workers
	}
	if flags.Changed("log-level") {
		config.LogLevel = logLevel
	}
}

func runExperiment(cmd *cobra.Command, args []string) error {
	config, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry)

	var store *storage.Store
	if !noHistory {
		store, err = storage.New(config.DataPath)
		if err != nil {
			return fmt.Errorf("open run history: %w", err)
		}
		defer store.Close()
	}

	d, src, err := experiment.LoadDataset(ctx, config)
	if err != nil {
		return err
	}

	results, err := experiment.NewEngine(config, metrics.NewWrapper(m), store).Run(ctx, d, src)
	if err != nil {
		return err
	}

	reporter := report.NewReporter(results, config.OutputPath)
	reporter.PrintSummary(cmd.OutOrStdout())
	if err := reporter.GenerateReport(); err != nil {
		return err
	}

	if config.MetricsFile != "" {
		path := config.MetricsFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(config.OutputPath, path)
		}
		if err := m.WriteTextfile(path); err != nil {
			return err
		}
		log.Info().Str("file", path).Msg("Metrics written")
	}

	log.Info().Str("ranking", report.FormatRanking(results)).Msg("Done")
	return nil
}

func showHistory(cmd *cobra.Command, args []string) error {
	config, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("data") {
		config.DataPath = dataPath
	}

	store, err := storage.New(config.DataPath)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer store.Close()

	runs, err := loadHistory(store, historySince, historyUntil, historyLimit)
	if err != nil {
		return err
	}
	return printHistory(cmd.OutOrStdout(), runs)
}
