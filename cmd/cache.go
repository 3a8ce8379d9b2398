package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drupal-spider/DrupalSecurity/internal/cache"
)

func newCacheCmd(opts *options) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	var all bool
	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove expired cache entries (or every entry with --all)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd, opts)
			logger := initLogger(cfg.Verbose)
			defer logger.Sync()

			c, err := cache.New(cfg.Cache, "", logger)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer c.Close()

			ctx := context.Background()
			if all {
				if err := c.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			}

			removed, err := c.Clean(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", removed)
			return nil
		},
	}
	cleanCmd.Flags().BoolVar(&all, "all", false, "remove every entry")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd, opts)
			logger := initLogger(cfg.Verbose)
			defer logger.Sync()

			c, err := cache.New(cfg.Cache, "", logger)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer c.Close()

			stats, err := c.GetStats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Driver: %v\nEntries: %v\nMax age (hours): %v\nVersion: %v\n",
				stats["driver"], stats["total_entries"], stats["max_age_hours"], stats["version"])
			return nil
		},
	}

	cacheCmd.AddCommand(cleanCmd, statsCmd)
	return cacheCmd
}
