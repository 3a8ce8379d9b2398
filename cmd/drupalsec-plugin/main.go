package main

import (
	"os"

	"go.uber.org/zap"

	"github.com/drupal-spider/DrupalSecurity/internal/config"
	"github.com/drupal-spider/DrupalSecurity/internal/engine"
	"github.com/drupal-spider/DrupalSecurity/internal/plugin"
	"github.com/drupal-spider/DrupalSecurity/internal/rules"
)

func main() {
	logger := plugin.NewLogger("drupalsec-plugin")

	enabled, err := rules.NewLoader(zap.NewNop()).LoadAll(config.Load())
	if err != nil {
		logger.Error("failed to load rules", "err", err)
		os.Exit(1)
	}
	logger.Info("serving rules", "count", len(enabled))

	plugin.Serve(plugin.NewEngineLinter(engine.New(enabled...), logger))
}
