// config_watcher.go: Hot reload of rack security policy with Argus integration
//
// The watcher re-applies the MUTABLE parts of a rack configuration when the
// file changes: major type, paranoia flags and authorized owner. It never
// re-runs discovery or unloads plugins on reload - the plugin population is
// fixed at startup and changing it requires an explicit rescan by the
// caller. This keeps a config edit from silently yanking code that callers
// are executing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agilira/argus"
)

// RackConfigWatcher watches a rack configuration file and hot-reloads the
// rack's security policy on change.
//
// Usage:
//
//	watcher, err := NewRackConfigWatcher(rack, "/etc/plugrack/rack.yaml")
//	if err != nil { ... }
//	if err := watcher.Start(); err != nil { ... }
//	defer watcher.Stop()
type RackConfigWatcher struct {
	rack   *Rack
	logger Logger

	watcher    *argus.Watcher
	configPath string

	currentConfig atomic.Pointer[RackConfig]

	enabled  atomic.Bool
	stopped  atomic.Bool
	stopOnce sync.Once
	mutex    sync.Mutex
}

// RackConfigWatcherOptions customizes watcher behavior.
type RackConfigWatcherOptions struct {
	// PollInterval is the Argus polling interval. Zero means 2 seconds.
	PollInterval time.Duration

	// Logger receives watcher status and reload outcomes. Nil means the
	// rack's logger.
	Logger Logger
}

// NewRackConfigWatcher creates a watcher for the given rack and config path.
// The configuration file does not need to exist yet; Start validates it.
func NewRackConfigWatcher(rack *Rack, configPath string, opts ...RackConfigWatcherOptions) (*RackConfigWatcher, error) {
	if rack == nil {
		return nil, NewInvalidArgumentError("rack")
	}
	if configPath == "" {
		return nil, NewConfigPathError(configPath, "empty config file path")
	}

	options := RackConfigWatcherOptions{}
	if len(opts) > 0 {
		options = opts[0]
	}
	if options.PollInterval <= 0 {
		options.PollInterval = 2 * time.Second
	}

	logger := options.Logger
	if logger == nil {
		logger = rack.logger
	}

	argusWatcher := argus.New(argus.Config{
		PollInterval:         options.PollInterval,
		CacheTTL:             options.PollInterval / 2,
		MaxWatchedFiles:      10,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, path string) {
			logger.Error("Rack config watcher error", "error", err, "path", path)
		},
	})

	return &RackConfigWatcher{
		rack:       rack,
		logger:     logger,
		watcher:    argusWatcher,
		configPath: configPath,
	}, nil
}

// Start loads and applies the initial configuration, then begins watching
// the file for changes. A watcher that has been stopped cannot be restarted.
func (w *RackConfigWatcher) Start() error {
	if w.stopped.Load() {
		return NewConfigWatcherError("rack config watcher has been stopped and cannot be restarted", nil)
	}

	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.enabled.CompareAndSwap(false, true) {
		return NewConfigWatcherError("rack config watcher is already running", nil)
	}

	initialConfig, err := LoadRackConfig(w.configPath)
	if err != nil {
		w.enabled.Store(false)
		return NewConfigWatcherError("failed to load initial rack configuration", err)
	}

	if err := w.rack.ApplyConfig(initialConfig); err != nil {
		w.enabled.Store(false)
		return NewConfigWatcherError("failed to apply initial rack configuration", err)
	}
	w.currentConfig.Store(&initialConfig)

	if err := w.watcher.Watch(w.configPath, w.handleConfigChange); err != nil {
		w.enabled.Store(false)
		return NewConfigWatcherError("failed to watch rack config file", err)
	}
	if err := w.watcher.Start(); err != nil {
		w.enabled.Store(false)
		return NewConfigWatcherError("failed to start Argus watcher", err)
	}

	w.logger.Info("Rack configuration watcher started",
		"config_path", w.configPath)
	w.rack.audit("rack_config_watcher_started", map[string]interface{}{
		"config_path": w.configPath,
		"pid":         os.Getpid(),
	})
	return nil
}

// Stop halts file watching permanently. Safe to call more than once; only
// the first call performs the shutdown.
func (w *RackConfigWatcher) Stop() error {
	if w.stopped.Load() {
		return NewConfigWatcherError("rack config watcher is already stopped", nil)
	}
	// A watcher that never started must not consume the stop guard, or a
	// later Start would leave the Argus poller unstoppable.
	if !w.enabled.Load() {
		return NewConfigWatcherError("rack config watcher is not running", nil)
	}

	var stopErr error
	w.stopOnce.Do(func() {
		w.mutex.Lock()
		defer w.mutex.Unlock()

		if !w.enabled.CompareAndSwap(true, false) {
			stopErr = NewConfigWatcherError("rack config watcher is not running", nil)
			return
		}
		w.stopped.Store(true)

		if err := w.watcher.Stop(); err != nil {
			stopErr = NewConfigWatcherError("failed to stop Argus watcher", err)
			return
		}

		w.logger.Info("Rack configuration watcher stopped")
		w.rack.audit("rack_config_watcher_stopped", map[string]interface{}{
			"config_path": w.configPath,
		})
	})
	return stopErr
}

// IsRunning reports whether the watcher is active.
func (w *RackConfigWatcher) IsRunning() bool {
	return w.enabled.Load() && !w.stopped.Load()
}

// CurrentConfig returns the last configuration successfully applied.
func (w *RackConfigWatcher) CurrentConfig() *RackConfig {
	return w.currentConfig.Load()
}

// handleConfigChange is the Argus callback for config file events. Only the
// security policy is re-applied; discovery lists and audit settings from the
// new file are logged but left untouched until the next restart.
func (w *RackConfigWatcher) handleConfigChange(event argus.ChangeEvent) {
	w.logger.Info("Rack configuration file change detected",
		"path", event.Path,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)

	if event.IsDelete {
		w.logger.Warn("Rack configuration file was deleted, keeping current policy",
			"path", event.Path)
		w.rack.audit("rack_config_file_deleted", map[string]interface{}{
			"path": event.Path,
		})
		return
	}

	newConfig, err := LoadRackConfig(event.Path)
	if err != nil {
		w.logger.Error("Failed to load new rack configuration, keeping current policy",
			"error", err, "path", event.Path)
		w.rack.audit("rack_config_reload_failed", map[string]interface{}{
			"path":  event.Path,
			"error": err.Error(),
		})
		return
	}

	flags, err := ParseParanoia(newConfig.Paranoia)
	if err != nil {
		w.logger.Error("Invalid paranoia flags in new configuration",
			"error", err, "path", event.Path)
		return
	}
	uid := newConfig.AuthorizedUID
	if uid < 0 {
		uid = os.Getuid()
	}

	w.rack.SetMajorType(newConfig.MajorType)
	w.rack.SetParanoia(flags, uid)

	oldConfig := w.currentConfig.Swap(&newConfig)

	w.logger.Info("Rack security policy reloaded",
		"major_type", newConfig.MajorType,
		"paranoia", flags.String())
	w.rack.audit("rack_config_reloaded", map[string]interface{}{
		"path":           event.Path,
		"major_type":     newConfig.MajorType,
		"paranoia":       flags.String(),
		"had_previous":   oldConfig != nil,
		"authorized_uid": uid,
	})
}
