package rules

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/database"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/form"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/javascript"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/render"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/theme"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
	yamlrules "github.com/drupal-spider/DrupalSecurity/internal/rules/yaml"
)

// Builtin returns every built-in rule, built from tables.
func Builtin(tables types.Tables) []types.Rule {
	return []types.Rule{
		database.NewSQLRule(tables),
		form.NewFormRule(tables),
		javascript.NewJavascriptRule(tables),
		render.NewRenderRule(tables),
		theme.NewTwigTemplateRule(tables),
		yamlrules.NewRoutingAccessRule(tables),
		yamlrules.NewViewAccessRule(tables),
	}
}

// RuleLoader resolves the tracked tables and registers rules
type RuleLoader struct {
	registry *RuleRegistry
	tables   types.Tables
	logger   *zap.Logger
}

// NewLoader creates a new rule loader with logger
func NewLoader(logger *zap.Logger) *RuleLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleLoader{
		registry: NewRuleRegistry(),
		tables:   types.DefaultTables(),
		logger:   logger,
	}
}

// LoadTables applies the tables file and the configured LIKE severity on
// top of the built-in tables.
func (rl *RuleLoader) LoadTables(cfg *config.Config) error {
	tables := types.DefaultTables()
	if cfg != nil && cfg.Rules.TablesPath != "" {
		loaded, err := NewYAMLTablesLoader(cfg.Rules.TablesPath).Load(tables)
		if err != nil {
			return fmt.Errorf("failed to load tables: %w", err)
		}
		rl.logger.Info("Loaded tracked tables", zap.String("path", cfg.Rules.TablesPath))
		tables = loaded
	}
	if cfg != nil && cfg.Rules.LikeSeverity != "" {
		tables.LikeSeverity = diag.ParseSeverity(cfg.Rules.LikeSeverity)
	}
	rl.tables = tables
	return nil
}

// LoadBuiltinRules registers all built-in rules
func (rl *RuleLoader) LoadBuiltinRules() error {
	for _, rule := range Builtin(rl.tables) {
		if err := rl.registry.Register(rule); err != nil {
			return err
		}
	}
	rl.logger.Debug("Loaded built-in rules", zap.Int("count", len(rl.registry.order)))
	return nil
}

// LoadAll loads tables and rules and returns the rules enabled by cfg.
func (rl *RuleLoader) LoadAll(cfg *config.Config) ([]types.Rule, error) {
	if err := rl.LoadTables(cfg); err != nil {
		return nil, err
	}
	if err := rl.LoadBuiltinRules(); err != nil {
		return nil, err
	}
	if err := rl.ValidateRules(); err != nil {
		return nil, err
	}
	enabled := rl.registry.GetEnabledRules(cfg)
	if len(enabled) == 0 {
		rl.logger.Warn("No rules enabled")
	}
	return enabled, nil
}

// GetRegistry returns the rule registry
func (rl *RuleLoader) GetRegistry() *RuleRegistry {
	return rl.registry
}

// Tables returns the resolved tables
func (rl *RuleLoader) Tables() types.Tables {
	return rl.tables
}

// ValidateRules validates all loaded rules
func (rl *RuleLoader) ValidateRules() error {
	for _, rule := range rl.registry.GetAllRules() {
		meta := rule.Meta()
		if meta.Name == "" {
			return fmt.Errorf("rule %s has empty Name", meta.ID)
		}
		if len(meta.Codes) == 0 {
			return fmt.Errorf("rule %s has no codes defined", meta.ID)
		}
		if len(rule.Subscriptions()) == 0 {
			return fmt.Errorf("rule %s subscribes to no token kinds", meta.ID)
		}
	}
	return nil
}

// GetStatistics returns statistics about loaded rules
func (rl *RuleLoader) GetStatistics() map[string]interface{} {
	all := rl.registry.GetAllRules()

	stats := make(map[string]interface{})
	stats["total_rules"] = len(all)

	codes := 0
	byCategory := make(map[string]int)
	for _, rule := range all {
		meta := rule.Meta()
		codes += len(meta.Codes)
		category, _, _ := strings.Cut(meta.ID, ".")
		byCategory[category]++
	}
	stats["total_codes"] = codes
	stats["by_category"] = byCategory

	return stats
}
