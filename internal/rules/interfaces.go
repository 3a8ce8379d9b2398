package rules

import (
	"fmt"
	"strings"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
)

// RuleRegistry manages the registration and discovery of rules. Rules are
// kept in registration order so runs are reproducible.
type RuleRegistry struct {
	order []string
	rules map[string]types.Rule
}

// NewRuleRegistry creates a new rule registry
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		rules: make(map[string]types.Rule),
	}
}

// Register adds a rule to the registry
func (rr *RuleRegistry) Register(rule types.Rule) error {
	id := rule.Meta().ID
	if id == "" {
		return fmt.Errorf("rule has empty ID")
	}
	if _, exists := rr.rules[id]; exists {
		return fmt.Errorf("rule %s already registered", id)
	}
	rr.rules[id] = rule
	rr.order = append(rr.order, id)
	return nil
}

// GetRule returns a rule by ID, nil if unknown
func (rr *RuleRegistry) GetRule(id string) types.Rule {
	return rr.rules[id]
}

// GetAllRules returns all registered rules in registration order
func (rr *RuleRegistry) GetAllRules() []types.Rule {
	all := make([]types.Rule, 0, len(rr.order))
	for _, id := range rr.order {
		all = append(all, rr.rules[id])
	}
	return all
}

// GetEnabledRules returns only enabled rules based on configuration
func (rr *RuleRegistry) GetEnabledRules(cfg *config.Config) []types.Rule {
	var enabled []types.Rule
	for _, rule := range rr.GetAllRules() {
		if IsEnabled(rule.Meta(), cfg) {
			enabled = append(enabled, rule)
		}
	}
	return enabled
}

// IsEnabled checks if a rule is enabled based on configuration. A selector
// matches the full rule ID ("Database.Sql") or its category ("Database").
func IsEnabled(meta types.Meta, cfg *config.Config) bool {
	if cfg == nil {
		return true
	}

	// Check if rule is explicitly enabled
	for _, enabled := range cfg.Rules.Enabled {
		if selects(enabled, meta.ID) {
			return true
		}
	}

	// Check if rule is explicitly disabled
	for _, disabled := range cfg.Rules.Disabled {
		if selects(disabled, meta.ID) {
			return false
		}
	}

	// An explicit allow-list turns everything else off
	return len(cfg.Rules.Enabled) == 0
}

func selects(selector, id string) bool {
	selector = strings.TrimSpace(selector)
	if strings.EqualFold(selector, id) {
		return true
	}
	category, _, _ := strings.Cut(id, ".")
	return strings.EqualFold(selector, category)
}
