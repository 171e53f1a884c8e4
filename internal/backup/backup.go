// Package backup writes timestamped JSON exports of the event collection,
// either on demand or on a cron schedule.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	appLog "simplecal/internal/log"
	"simplecal/internal/store"
)

const filePrefix = "events-"

// Runner owns the backup directory and the optional cron schedule.
type Runner struct {
	store *store.Store
	dir   string
	keep  int
	cron  *cron.Cron
}

// New prepares a runner writing into dir and retaining the newest keep
// backup files.
func New(st *store.Store, dir string, keep int) *Runner {
	if keep < 1 {
		keep = 1
	}
	return &Runner{store: st, dir: dir, keep: keep}
}

// RunOnce exports the current collection to a timestamped file and prunes
// old backups. It returns the path of the file written.
func (r *Runner) RunOnce() (string, error) {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	data, err := json.MarshalIndent(r.store.Events(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("backup: encode events: %w", err)
	}

	name := filePrefix + time.Now().UTC().Format("20060102-150405") + ".json"
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	if err := r.prune(); err != nil {
		// A failed prune does not invalidate the backup just written.
		appLog.Warn("backup: prune failed", "err", err)
	}
	return path, nil
}

// Start schedules RunOnce with the given cron spec. An empty spec disables
// scheduling entirely.
func (r *Runner) Start(spec string) error {
	if spec == "" {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		path, err := r.RunOnce()
		if err != nil {
			appLog.Error("scheduled backup failed", err)
			return
		}
		appLog.Info("scheduled backup written", "path", path)
	})
	if err != nil {
		return fmt.Errorf("backup: invalid cron spec %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	return nil
}

// Stop halts the schedule, waiting for an in-flight run to finish.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// prune removes the oldest backups beyond the retention count. Timestamped
// names sort chronologically, so a name sort is a time sort.
func (r *Runner) prune() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= r.keep {
		return nil
	}
	sort.Strings(names)

	for _, name := range names[:len(names)-r.keep] {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil {
			return err
		}
	}
	return nil
}
