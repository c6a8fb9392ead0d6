package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/hyprpal/clusterdock/internal/config"
	"github.com/hyprpal/clusterdock/internal/engine"
	"github.com/hyprpal/clusterdock/internal/metrics"
	"github.com/hyprpal/clusterdock/internal/util"
)

// configReloader applies configuration changes to a running engine. A rejected
// document leaves the last valid configuration in effect.
type configReloader struct {
	mu             sync.Mutex
	path           string
	logger         *util.Logger
	engine         *engine.Engine
	metrics        *metrics.Collector
	pinnedLevel    bool
	lastConfig     *config.Config
	lastSerialized []byte
}

func newConfigReloader(path string, logger *util.Logger, eng *engine.Engine, metrics *metrics.Collector, cfg *config.Config, serialized []byte) *configReloader {
	return &configReloader{
		path:           path,
		logger:         logger,
		engine:         eng,
		metrics:        metrics,
		lastConfig:     cfg,
		lastSerialized: append([]byte(nil), serialized...),
	}
}

// Reload re-reads the file and applies it. Safe for concurrent use.
func (r *configReloader) Reload(reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Infof("%s, reloading config", reason)
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg, err := config.ParseFormat(raw, config.FormatForPath(r.path))
	if err != nil {
		r.logDiff(raw)
		return err
	}
	if lintErrs := cfg.Lint(); len(lintErrs) > 0 {
		r.logLintErrors(lintErrs)
		r.logDiff(raw)
		return lintErrs[0]
	}

	r.engine.SetParams(cfg.Params())
	r.engine.SetVariant(cfg.LayoutVariant())
	r.engine.SetSettleDelay(cfg.SettleDelay())
	if r.metrics != nil {
		r.metrics.SetEnabled(cfg.Telemetry.Enabled)
	}
	if !r.pinnedLevel {
		r.logger.SetLevel(util.ParseLogLevel(cfg.LogLevel))
	}
	if diff := config.DiffEffective(r.lastConfig, cfg); diff != "" {
		r.logger.Infof("config applied; effective changes:\n%s", diff)
	} else {
		r.logger.Infof("config reloaded with no effective changes")
	}
	if pos, changed := r.engine.Reconcile(); changed {
		r.logger.Infof("position corrected to %.1f after reload", pos)
	}

	r.lastConfig = cfg
	r.lastSerialized = append([]byte(nil), raw...)
	return nil
}

// Current returns the last configuration that was applied.
func (r *configReloader) Current() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastConfig
}

func (r *configReloader) logDiff(current []byte) {
	diff := config.DiffSerialized(r.lastSerialized, current)
	if diff == "" {
		r.logger.Warnf("config change rejected; unable to compute diff vs last valid config")
		return
	}
	r.logger.Warnf("config change rejected; diff vs last valid config:\n%s", diff)
}

func (r *configReloader) logLintErrors(errs []config.LintError) {
	r.logger.Warnf("config validation failed with %d issue(s):", len(errs))
	for _, lintErr := range errs {
		if lintErr.Path != "" {
			r.logger.Warnf(" - %s: %s", lintErr.Path, lintErr.Message)
			continue
		}
		r.logger.Warnf(" - %s", lintErr.Message)
	}
}
