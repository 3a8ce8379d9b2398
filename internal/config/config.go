package config

import (
	"runtime"

	"github.com/spf13/viper"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
)

// Config holds the application configuration
type Config struct {
	ScanPath     string
	OutputFile   string
	Format       string
	Severity     string
	FailOn       string
	Parallel     int
	Verbose      bool
	AllowedDirs  []string
	ExcludedDirs []string
	Cache        CacheConfig
	Rules        RulesConfig
	Plugin       PluginConfig `mapstructure:"plugin"`
	MaxFiles     int          // Maximum number of files to process (0 = unlimited)
}

// CacheConfig holds result cache configuration
type CacheConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Driver    string `mapstructure:"driver"` // sqlite3 or mysql
	DSN       string `mapstructure:"dsn"`
	Directory string `mapstructure:"directory"`
	MaxAge    int    `mapstructure:"max_age"` // in hours
}

// RulesConfig holds rule selection and tracked-table configuration
type RulesConfig struct {
	Enabled          []string `mapstructure:"enabled"`
	Disabled         []string `mapstructure:"disabled"`
	TablesPath       string   `mapstructure:"tables_path"`
	LikeSeverity     string   `mapstructure:"like_severity"`
	IgnorePatterns   []string `mapstructure:"ignore_patterns"`
	FileExtensions   []string `mapstructure:"file_extensions"`
	ExcludedDirs     []string `mapstructure:"excluded_dirs"`
	RespectGitignore bool     `mapstructure:"respect_gitignore"`
}

// PluginConfig points the CLI at an out-of-process lint plugin
type PluginConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from various sources
func Load() *Config {
	cfg := &Config{
		Format:   "text",
		Severity: "warning",
		Parallel: runtime.NumCPU(),
		MaxFiles: 0, // Default: unlimited
		Cache: CacheConfig{
			Enabled:   true,
			Driver:    "sqlite3",
			Directory: ".drupalsec",
			MaxAge:    168, // 7 days in hours
		},
		Rules: RulesConfig{
			RespectGitignore: true,
			FileExtensions: []string{
				".php", ".module", ".inc", ".install", ".theme", ".profile", ".engine",
				".js", ".twig", ".yml",
			},
			IgnorePatterns: []string{
				"*.min.js",
			},
			ExcludedDirs: []string{
				"vendor",
				"node_modules",
				".git",
				".svn",
				".hg",
				"build",
				"dist",
				"tmp",
				"temp",
				"cache",
				".vscode",
				".idea",
				"coverage",
				".drupalsec",
			},
		},
	}

	// Override with viper values
	if viper.IsSet("format") {
		cfg.Format = viper.GetString("format")
	}
	if viper.IsSet("severity") {
		cfg.Severity = viper.GetString("severity")
	}
	if viper.IsSet("fail_on") {
		cfg.FailOn = viper.GetString("fail_on")
	}
	if viper.IsSet("parallel") {
		cfg.Parallel = viper.GetInt("parallel")
	}
	if viper.IsSet("verbose") {
		cfg.Verbose = viper.GetBool("verbose")
	}
	if viper.IsSet("max_files") {
		cfg.MaxFiles = viper.GetInt("max_files")
	}

	if viper.IsSet("cache") {
		viper.UnmarshalKey("cache", &cfg.Cache)
	}
	if viper.IsSet("rules") {
		viper.UnmarshalKey("rules", &cfg.Rules)
	}
	if viper.IsSet("plugin") {
		viper.UnmarshalKey("plugin", &cfg.Plugin)
	}

	// Auto-detect parallel workers
	if cfg.Parallel <= 0 {
		cfg.Parallel = runtime.NumCPU()
	}

	return cfg
}

// ParseSeverity parses a minimum severity level from string
func ParseSeverity(s string) diag.Severity {
	return diag.ParseSeverity(s)
}
