package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/cache"
	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/engine"
	"github.com/drupal-spider/DrupalSecurity/internal/plugin"
	"github.com/drupal-spider/DrupalSecurity/internal/reporter"
	"github.com/drupal-spider/DrupalSecurity/internal/rules"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	"github.com/drupal-spider/DrupalSecurity/internal/scanner"
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// options holds flag values for one command tree.
type options struct {
	cfgFile      string
	outputFile   string
	format       string
	severity     string
	failOn       string
	parallel     int
	verbose      bool
	allowedDirs  []string
	excludedDirs []string
	maxFiles     int
	noCache      bool
	pluginPath   string
	tablesPath   string
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree with fresh flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "drupalsec [path]",
		Short: "Security linter for Drupal code and configuration",
		Long: `Scans Drupal modules and themes for risky code patterns: raw SQL
concatenation, unchecked entity loads, unsafe Twig output, inline templates,
JavaScript DOM injection and open or CSRF-less routes and views.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initConfig(opts.cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is .drupalsec.yaml)")
	flags.StringVarP(&opts.outputFile, "output", "o", "", "output file (default: stdout)")
	flags.StringVarP(&opts.format, "format", "f", "text", "output format (text, json, sarif, checkstyle)")
	flags.StringVarP(&opts.severity, "severity", "s", "warning", "minimum severity level to report (warning, error)")
	flags.StringVar(&opts.failOn, "fail-on", "", "exit with code 2 when a diagnostic at or above this severity is reported (warning, error)")
	flags.IntVarP(&opts.parallel, "parallel", "p", 0, "number of parallel workers (0 = auto)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	flags.StringSliceVar(&opts.allowedDirs, "allow-dir", []string{}, "only lint files under these directories")
	flags.StringSliceVar(&opts.excludedDirs, "exclude-dir", []string{}, "directories to exclude from scanning")
	flags.IntVar(&opts.maxFiles, "max-files", 0, "maximum number of files to process (0 = unlimited)")
	flags.BoolVar(&opts.noCache, "no-cache", false, "disable the result cache")
	flags.StringVar(&opts.pluginPath, "plugin", "", "lint through an out-of-process plugin binary")
	flags.StringVar(&opts.tablesPath, "tables", "", "YAML file overriding the tracked-name tables")

	rootCmd.AddCommand(newRulesCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newCacheCmd(opts))

	return rootCmd
}

func initConfig(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".drupalsec")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("DRUPALSEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the config and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) *config.Config {
	cfg := config.Load()
	flags := cmd.Flags()

	if flags.Changed("output") {
		cfg.OutputFile = opts.outputFile
	}
	if flags.Changed("format") {
		cfg.Format = opts.format
	}
	if flags.Changed("severity") {
		cfg.Severity = opts.severity
	}
	if flags.Changed("fail-on") {
		cfg.FailOn = opts.failOn
	}
	if opts.parallel > 0 {
		cfg.Parallel = opts.parallel
	}
	if flags.Changed("verbose") {
		cfg.Verbose = opts.verbose
	}
	if len(opts.allowedDirs) > 0 {
		cfg.AllowedDirs = opts.allowedDirs
	}
	if len(opts.excludedDirs) > 0 {
		cfg.ExcludedDirs = opts.excludedDirs
	}
	if flags.Changed("max-files") {
		cfg.MaxFiles = opts.maxFiles
	}
	if opts.noCache {
		cfg.Cache.Enabled = false
	}
	if opts.pluginPath != "" {
		cfg.Plugin.Path = opts.pluginPath
	}
	if opts.tablesPath != "" {
		cfg.Rules.TablesPath = opts.tablesPath
	}
	return cfg
}

func runScan(cmd *cobra.Command, opts *options, args []string) error {
	cfg := loadConfig(cmd, opts)
	if _, _, err := parseFailOn(cfg.FailOn); err != nil {
		return err
	}
	logger := initLogger(cfg.Verbose)
	defer logger.Sync()

	scanPath := "."
	if len(args) > 0 {
		scanPath = args[0]
	}
	absPath, err := filepath.Abs(scanPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	cfg.ScanPath = absPath

	s, enabled, cleanup, err := newScanner(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := s.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	r := reporter.New(cfg, logger).WithWriter(cmd.OutOrStdout()).WithRules(enabled)
	if err := r.Generate(results); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	return checkFailOn(cfg.FailOn, results.Diagnostics)
}

// newScanner loads the enabled rules and wires the cache and plugin
// configured in cfg. cleanup releases both.
func newScanner(cfg *config.Config, logger *zap.Logger) (*scanner.Scanner, []types.Rule, func(), error) {
	loader := rules.NewLoader(logger)
	enabled, err := loader.LoadAll(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load rules: %w", err)
	}
	if cfg.Verbose {
		logger.Debug("Rules loaded", zap.Any("statistics", loader.GetStatistics()))
	}

	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	var opts []scanner.Option

	if cfg.Plugin.Path != "" {
		client, err := plugin.Open(cfg.Plugin.Path, plugin.NewLogger("drupalsec"))
		if err != nil {
			return nil, nil, nil, err
		}
		closers = append(closers, client.Close)
		opts = append(opts, scanner.WithPlugin(client))
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(cfg.Cache, ruleSetFingerprint(enabled, loader.Tables(), cfg.Plugin.Path), logger)
		if err != nil {
			logger.Warn("Result cache unavailable, continuing without it", zap.Error(err))
		} else {
			closers = append(closers, func() { c.Close() })
			opts = append(opts, scanner.WithCache(c))
		}
	}

	return scanner.New(cfg, logger, engine.New(enabled...), opts...), enabled, cleanup, nil
}

func ruleSetFingerprint(enabled []types.Rule, tables types.Tables, pluginPath string) string {
	parts := make([]string, 0, len(enabled)+2)
	for _, r := range enabled {
		parts = append(parts, r.Meta().ID)
	}
	parts = append(parts, fmt.Sprintf("%+v", tables), pluginPath)
	return cache.Fingerprint(parts...)
}

// parseFailOn validates a fail-on threshold. enabled is false for an empty
// value or "none".
func parseFailOn(failOn string) (threshold diag.Severity, enabled bool, err error) {
	switch strings.ToLower(strings.TrimSpace(failOn)) {
	case "", "none":
		return diag.Warning, false, nil
	case "warning":
		return diag.Warning, true, nil
	case "error":
		return diag.Error, true, nil
	default:
		return diag.Warning, false, fmt.Errorf("invalid fail-on value %q (expected warning, error or none)", failOn)
	}
}

// checkFailOn returns an ExitError with code 2 when any diagnostic reaches
// the fail-on severity. An empty threshold never fails.
func checkFailOn(failOn string, diagnostics []diag.Diagnostic) error {
	threshold, enabled, err := parseFailOn(failOn)
	if err != nil || !enabled {
		return err
	}
	count := 0
	for _, d := range diagnostics {
		if d.Severity >= threshold {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	return &ExitError{
		Code: 2,
		Err:  fmt.Errorf("%d diagnostic(s) at or above %s severity", count, threshold),
	}
}

func initLogger(verbose bool) *zap.Logger {
	var logger *zap.Logger
	var err error

	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	return logger
}
