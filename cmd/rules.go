package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/drupal-spider/DrupalSecurity/internal/rules"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
)

type ruleInfo struct {
	types.Meta
	Enabled bool `json:"enabled"`
}

func newRulesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the built-in rules and whether they are enabled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd, opts)
			logger := initLogger(cfg.Verbose)
			defer logger.Sync()

			loader := rules.NewLoader(logger)
			if _, err := loader.LoadAll(cfg); err != nil {
				return fmt.Errorf("failed to load rules: %w", err)
			}

			var infos []ruleInfo
			for _, r := range loader.GetRegistry().GetAllRules() {
				infos = append(infos, ruleInfo{Meta: r.Meta(), Enabled: rules.IsEnabled(r.Meta(), cfg)})
			}

			if strings.ToLower(cfg.Format) == "json" {
				data, err := json.MarshalIndent(infos, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RULE\tENABLED\tCODES\tDESCRIPTION")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%t\t%s\t%s\n", info.ID, info.Enabled, strings.Join(info.Codes, ", "), info.Description)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			stats := loader.GetStatistics()
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d rules, %d codes\n", stats["total_rules"], stats["total_codes"])
			return nil
		},
	}
}
