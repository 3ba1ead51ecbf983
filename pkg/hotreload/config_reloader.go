// Package hotreload watches the warehouse's config file and reloads
// the narrow subset of settings that are safe to change on a running
// process: the log level and the query engine's default cold window.
// Ports, memory mode, and the storage selector are fixed at process
// start and never touched here, by design.
package hotreload

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/warehoused/warehoused/internal/config"
)

// DebounceInterval coalesces bursts of filesystem events (editors often
// write a file twice) into a single reload attempt.
const DebounceInterval = 500 * time.Millisecond

// ColdWindowSetter is the one piece of live engine state a reload can
// change. internal/query.Engine satisfies this.
type ColdWindowSetter interface {
	SetColdWindow(d time.Duration)
}

// ConfigReloader watches configFile and, on change, reloads it and
// applies the reloadable fields onto the live *config.Config in place.
type ConfigReloader struct {
	configFile string
	live       *config.Config
	engine     ColdWindowSetter
	logger     *logrus.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex

	wg sync.WaitGroup
}

// NewConfigReloader builds a reloader bound to live, the *config.Config
// the rest of the process already holds a reference to, and engine,
// whose cold window gets updated alongside it. If configFile is empty,
// Start is a no-op: there's nothing on disk to watch.
func NewConfigReloader(configFile string, live *config.Config, engine ColdWindowSetter, logger *logrus.Logger) *ConfigReloader {
	return &ConfigReloader{configFile: configFile, live: live, engine: engine, logger: logger}
}

// Start begins watching the config file in the background. Watcher
// setup failures are logged, not fatal: the process runs fine without
// hot reload, it just needs a restart to pick up config edits.
func (cr *ConfigReloader) Start(ctx context.Context) {
	if cr.configFile == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cr.logger.WithError(err).Warn("hot reload disabled: failed to create file watcher")
		return
	}

	dir := filepath.Dir(cr.configFile)
	if err := watcher.Add(dir); err != nil {
		cr.logger.WithError(err).WithField("dir", dir).Warn("hot reload disabled: failed to watch config directory")
		watcher.Close()
		return
	}

	cr.watcher = watcher
	cr.wg.Add(1)
	go cr.watch(ctx)
}

// Stop closes the underlying watcher and waits for the watch loop to
// exit. Safe to call even if Start never ran.
func (cr *ConfigReloader) Stop() {
	if cr.watcher == nil {
		return
	}
	cr.watcher.Close()
	cr.wg.Wait()
}

func (cr *ConfigReloader) watch(ctx context.Context) {
	defer cr.wg.Done()

	target, err := filepath.Abs(cr.configFile)
	if err != nil {
		cr.logger.WithError(err).Warn("hot reload disabled: could not resolve config file path")
		return
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-cr.watcher.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !debounce.Stop() {
				select {
				case <-debounce.C:
				default:
				}
			}
			debounce.Reset(DebounceInterval)
			pending = true
		case err, ok := <-cr.watcher.Errors:
			if !ok {
				return
			}
			cr.logger.WithError(err).Warn("config file watcher error")
		case <-debounce.C:
			if pending {
				pending = false
				cr.reload()
			}
		}
	}
}

func (cr *ConfigReloader) reload() {
	reloaded, err := config.Load(cr.configFile, cr.logger)
	if err != nil {
		cr.logger.WithError(err).Warn("config reload failed validation, keeping current settings")
		return
	}

	cr.mu.Lock()
	defer cr.mu.Unlock()

	changed := false
	if reloaded.App.LogLevel != cr.live.App.LogLevel {
		cr.logger.WithFields(logrus.Fields{
			"old": cr.live.App.LogLevel,
			"new": reloaded.App.LogLevel,
		}).Info("reloaded log level")
		cr.live.App.LogLevel = reloaded.App.LogLevel
		if level, err := logrus.ParseLevel(reloaded.App.LogLevel); err == nil {
			cr.logger.SetLevel(level)
		}
		changed = true
	}
	if reloaded.Query.ColdWindow != cr.live.Query.ColdWindow {
		cr.logger.WithFields(logrus.Fields{
			"old": cr.live.Query.ColdWindow,
			"new": reloaded.Query.ColdWindow,
		}).Info("reloaded query cold window")
		cr.live.Query.ColdWindow = reloaded.Query.ColdWindow
		cr.engine.SetColdWindow(reloaded.Query.ColdWindow)
		changed = true
	}

	if !changed {
		cr.logger.Debug("config file changed but no reloadable field differed")
	}
}
