package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rgehrsitz/finsight/internal/domain"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// TablesHolder publishes the current tax tables to concurrent readers and
// lets a watcher swap them without locking.
type TablesHolder struct {
	current *atomic.Pointer[domain.TaxTables]
}

// NewTablesHolder returns a holder serving tables.
func NewTablesHolder(tables *domain.TaxTables) *TablesHolder {
	return &TablesHolder{current: atomic.NewPointer(tables)}
}

// Tables returns the tables currently in effect.
func (h *TablesHolder) Tables() *domain.TaxTables { return h.current.Load() }

// Replace swaps in new tables and returns the previous ones.
func (h *TablesHolder) Replace(tables *domain.TaxTables) *domain.TaxTables {
	return h.current.Swap(tables)
}

// TablesWatcher reloads a tables file into a holder when it changes on disk.
// A file that fails to parse or validate is logged and the previous tables
// stay in effect.
type TablesWatcher struct {
	path     string
	holder   *TablesHolder
	parser   *TableParser
	log      *zap.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	// OnReload, when set, is called after each successful reload.
	OnReload func(*domain.TaxTables)
}

// NewTablesWatcher creates a watcher for path.
func NewTablesWatcher(path string, holder *TablesHolder, log *zap.Logger) (*TablesWatcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &TablesWatcher{
		path:     filepath.Clean(path),
		holder:   holder,
		parser:   NewTableParser(),
		log:      log.With(zap.String("module", "tables-watcher")),
		debounce: 500 * time.Millisecond,
		watcher:  watcher,
	}, nil
}

// Run watches until ctx is done. The directory is watched rather than the
// file so editors that replace the file by rename are still seen.
func (tw *TablesWatcher) Run(ctx context.Context) error {
	defer tw.watcher.Close()
	if err := tw.watcher.Add(filepath.Dir(tw.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", tw.path, err)
	}
	tw.log.Info("Watching tax tables", zap.String("path", tw.path))

	debounceTimer := time.NewTimer(time.Hour)
	debounceTimer.Stop()

	for {
		select {
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != tw.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			tw.log.Debug("Tables file change detected", zap.String("op", event.Op.String()))
			debounceTimer.Reset(tw.debounce)

		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return nil
			}
			tw.log.Error("Watcher error", zap.Error(err))

		case <-debounceTimer.C:
			tw.reload()

		case <-ctx.Done():
			tw.log.Info("Stopping tables watcher")
			return nil
		}
	}
}

func (tw *TablesWatcher) reload() {
	tables, err := tw.parser.LoadFromFile(tw.path)
	if err != nil {
		tw.log.Error("Tax tables reload rejected; keeping previous tables", zap.Error(err))
		return
	}
	tw.holder.Replace(tables)
	tw.log.Info("Tax tables reloaded",
		zap.Strings("schedules", ScheduleNames(tables)),
		zap.String("default", tables.DefaultSchedule))
	if tw.OnReload != nil {
		tw.OnReload(tables)
	}
}
