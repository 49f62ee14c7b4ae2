package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/guiyumin/mediadrop/internal/core/logger"
)

const (
	DefaultTTL      = time.Hour
	DefaultInterval = 10 * time.Minute
)

var reaperLog = logger.Get("Reaper")

// Reaper periodically deletes registered files older than the TTL, plus
// task directories nothing in the registry points into.
type Reaper struct {
	reg      *Registry
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	ticker   *time.Ticker
	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// SweepStats reports what one sweep removed.
type SweepStats struct {
	Expired int
	Orphans int
}

// NewReaper creates a reaper for reg. Zero durations use the defaults.
func NewReaper(reg *Registry, ttl, interval time.Duration) *Reaper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		reg:      reg,
		ttl:      ttl,
		interval: interval,
		now:      reg.now,
		stop:     make(chan struct{}),
	}
}

// Start runs the sweep loop in the background.
func (rp *Reaper) Start() {
	rp.ticker = time.NewTicker(rp.interval)
	rp.wg.Add(1)
	go rp.loop()
	reaperLog.Emit(logger.INFO, "Sweeping every %s, ttl %s", rp.interval, rp.ttl)
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (rp *Reaper) Stop() {
	rp.stopOnce.Do(func() {
		close(rp.stop)
		if rp.ticker != nil {
			rp.ticker.Stop()
		}
		rp.wg.Wait()
	})
}

func (rp *Reaper) loop() {
	defer rp.wg.Done()
	for {
		select {
		case <-rp.ticker.C:
			stats := rp.SweepOnce(rp.now())
			if stats.Expired > 0 || stats.Orphans > 0 {
				reaperLog.Emit(logger.INFO, "Removed %d expired file(s), %d orphaned dir(s)", stats.Expired, stats.Orphans)
			}
		case <-rp.stop:
			return
		}
	}
}

// SweepOnce runs a single cycle as of now.
func (rp *Reaper) SweepOnce(now time.Time) SweepStats {
	var stats SweepStats
	for _, e := range rp.reg.Expired(now, rp.ttl) {
		// a concurrent Release may have won the entry already
		if _, ok := rp.reg.Remove(e.ID); !ok {
			continue
		}
		rp.reg.deletePath(e.Path)
		stats.Expired++
	}
	stats.Orphans = rp.sweepOrphans(now)
	return stats
}

// sweepOrphans removes top-level task directories older than the TTL that
// hold no registered path and no running acquisition, e.g. leftovers of a
// crash or the extra files of a finished request.
func (rp *Reaper) sweepOrphans(now time.Time) int {
	root := rp.reg.Root()
	if root == "" {
		return 0
	}
	dirents, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			reaperLog.Emit(logger.WARNING, "Cannot list %s: %v", root, err)
		}
		return 0
	}

	live := make(map[string]bool)
	for _, e := range rp.reg.Snapshot() {
		if top := topLevel(root, e.Path); top != "" {
			live[top] = true
		}
	}
	for _, dir := range rp.reg.Held() {
		if top := topLevel(root, dir); top != "" {
			live[top] = true
		}
	}

	removed := 0
	for _, d := range dirents {
		name := d.Name()
		if strings.HasPrefix(name, ".") || !d.IsDir() || live[name] {
			continue
		}
		info, err := d.Info()
		if err != nil || now.Sub(info.ModTime()) <= rp.ttl {
			continue
		}
		path := filepath.Join(root, name)
		if err := os.RemoveAll(path); err != nil {
			reaperLog.Emit(logger.WARNING, "Cleanup error removing %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}

// topLevel returns the first path element of path below root.
func topLevel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	return strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
}
