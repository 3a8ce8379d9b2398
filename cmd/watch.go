package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/scanner"
	"github.com/drupal-spider/DrupalSecurity/internal/watch"
)

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [path]",
		Short: "Lint once, then re-lint files as they change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd, opts)
			logger := initLogger(cfg.Verbose)
			defer logger.Sync()

			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			absPath, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve path: %w", err)
			}
			cfg.ScanPath = absPath

			s, _, cleanup, err := newScanner(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			return runWatch(ctx, cfg, logger, s, cmd.OutOrStdout())
		},
	}
}

func runWatch(ctx context.Context, cfg *config.Config, logger *zap.Logger, s *scanner.Scanner, out io.Writer) error {
	minSeverity := config.ParseSeverity(cfg.Severity)

	results, err := s.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	printDiagnostics(out, results.Diagnostics, minSeverity)

	w, err := watch.New(cfg, logger, watch.WithFilter(s.Accepts))
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Stop()

	err = w.Watch(cfg.ScanPath, func(path string) {
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Debug("Changed file unreadable", zap.String("file", path), zap.Error(err))
			return
		}
		diagnostics, _, err := s.ScanFile(ctx, path, content)
		if err != nil {
			logger.Warn("Failed to lint file", zap.String("file", path), zap.Error(err))
			return
		}
		fmt.Fprintf(out, "--- %s: %d diagnostic(s)\n", path, len(diagnostics))
		printDiagnostics(out, diagnostics, minSeverity)
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", cfg.ScanPath, err)
	}

	logger.Info("Watching for changes", zap.String("path", cfg.ScanPath))
	<-ctx.Done()
	return nil
}

func printDiagnostics(out io.Writer, diagnostics []diag.Diagnostic, minSeverity diag.Severity) {
	for _, d := range diagnostics {
		if d.Severity < minSeverity {
			continue
		}
		fmt.Fprintf(out, "%s:%d: %s: %s (%s)\n", d.File, d.Line, strings.ToUpper(d.Severity.String()), d.Message, d.Source())
	}
}
