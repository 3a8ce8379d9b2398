package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/drupal-spider/DrupalSecurity/internal/diag"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	cfg := Load()

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "warning", cfg.Severity)
	assert.Greater(t, cfg.Parallel, 0)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "sqlite3", cfg.Cache.Driver)
	assert.Contains(t, cfg.Rules.FileExtensions, ".twig")
	assert.Contains(t, cfg.Rules.ExcludedDirs, "vendor")
	assert.True(t, cfg.Rules.RespectGitignore)
}

func TestLoad_ViperOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("format", "sarif")
	viper.Set("parallel", -1)
	viper.Set("fail_on", "error")
	viper.Set("cache", map[string]interface{}{"enabled": false, "driver": "mysql", "dsn": "user:pw@tcp(db:3306)/lint"})
	viper.Set("rules", map[string]interface{}{"disabled": []string{"Javascript.Javascript"}, "like_severity": "error"})

	cfg := Load()
	assert.Equal(t, "sarif", cfg.Format)
	assert.Greater(t, cfg.Parallel, 0)
	assert.Equal(t, "error", cfg.FailOn)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "mysql", cfg.Cache.Driver)
	assert.Equal(t, "user:pw@tcp(db:3306)/lint", cfg.Cache.DSN)
	assert.Equal(t, []string{"Javascript.Javascript"}, cfg.Rules.Disabled)
	assert.Equal(t, "error", cfg.Rules.LikeSeverity)
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		input    string
		expected diag.Severity
	}{
		{"warning", diag.Warning},
		{"error", diag.Error},
		{"ERROR", diag.Error},
		{"invalid", diag.Warning},
		{"", diag.Warning},
	}

	for _, test := range tests {
		result := ParseSeverity(test.input)
		if result != test.expected {
			t.Errorf("ParseSeverity(%s) = %v, expected %v", test.input, result, test.expected)
		}
	}
}
