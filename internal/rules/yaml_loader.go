package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
	"github.com/drupal-spider/DrupalSecurity/internal/rules/types"
)

// YAMLTablesConfig is the on-disk form of the tracked tables. Omitted keys
// keep their built-in values.
type YAMLTablesConfig struct {
	DatabaseCalls   []string `yaml:"database_calls"`
	LikeSeverity    string   `yaml:"like_severity"`
	FormWindow      int      `yaml:"form_window"`
	FormMarkers     []string `yaml:"form_markers"`
	JavascriptXSS   []string `yaml:"javascript_xss"`
	JavascriptCode  []string `yaml:"javascript_code"`
	TwigRawFilters  []string `yaml:"twig_raw_filters"`
	TwigAttributes  []string `yaml:"twig_attributes"`
	WidePermissions []string `yaml:"wide_permissions"`
	OpenPermissions []string `yaml:"open_permissions"`
	OpenRoles       []string `yaml:"open_roles"`
	RenderKeys      []string `yaml:"render_keys"`
	InlineTemplates []string `yaml:"inline_templates"`
}

// YAMLTablesLoader handles loading tracked tables from a YAML file
type YAMLTablesLoader struct {
	path string
}

// NewYAMLTablesLoader creates a new YAML tables loader
func NewYAMLTablesLoader(path string) *YAMLTablesLoader {
	return &YAMLTablesLoader{
		path: path,
	}
}

// Load reads the file and overlays it on base.
func (l *YAMLTablesLoader) Load(base types.Tables) (types.Tables, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return base, fmt.Errorf("failed to read file %s: %w", l.path, err)
	}

	var cfg YAMLTablesConfig
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse YAML from %s: %w", l.path, err)
	}

	tables := mergeTables(base, cfg)
	if err := tables.Validate(); err != nil {
		return base, fmt.Errorf("invalid tables in %s: %w", l.path, err)
	}
	return tables, nil
}

func mergeTables(base types.Tables, cfg YAMLTablesConfig) types.Tables {
	out := base
	overlay := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = append([]string(nil), src...)
		}
	}
	overlay(&out.DatabaseCalls, cfg.DatabaseCalls)
	overlay(&out.FormMarkers, cfg.FormMarkers)
	overlay(&out.JavascriptXSS, cfg.JavascriptXSS)
	overlay(&out.JavascriptCode, cfg.JavascriptCode)
	overlay(&out.TwigRawFilters, cfg.TwigRawFilters)
	overlay(&out.TwigAttributes, cfg.TwigAttributes)
	overlay(&out.WidePermissions, cfg.WidePermissions)
	overlay(&out.OpenPermissions, cfg.OpenPermissions)
	overlay(&out.OpenRoles, cfg.OpenRoles)
	overlay(&out.RenderKeys, cfg.RenderKeys)
	overlay(&out.InlineTemplates, cfg.InlineTemplates)
	if cfg.FormWindow != 0 {
		out.FormWindow = cfg.FormWindow
	}
	if cfg.LikeSeverity != "" {
		out.LikeSeverity = diag.ParseSeverity(cfg.LikeSeverity)
	}
	return out
}
