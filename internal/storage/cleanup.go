package storage

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"homeguard/pkg/log"
)

const cleanupBatchSize = 50

// Cleaner removes event clips older than the retention window so the video
// directory does not grow without bound. Removal is batch-limited per pass to
// keep each pass short.
type Cleaner struct {
	dir       string
	retention time.Duration
	interval  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	now    func() time.Time
	logger *logrus.Entry
}

func NewCleaner(parentCtx context.Context, dir string, retentionDays, intervalSeconds int) *Cleaner {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Cleaner{
		dir:       dir,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  time.Duration(intervalSeconds) * time.Second,
		ctx:       ctx,
		cancel:    cancel,
		wg:        &sync.WaitGroup{},
		now:       time.Now,
		logger:    log.GetLogger(ctx).WithField("component", "cleanup"),
	}
}

func (c *Cleaner) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				removed, err := c.cleanupOnce()
				if err != nil {
					c.logger.WithError(err).Errorf("cleanup pass failed")
				} else if removed > 0 {
					c.logger.Infof("removed %d expired clips", removed)
				}
			}
		}
	}()
}

func (c *Cleaner) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Cleaner) cleanupOnce() (int, error) {
	cutoff := c.now().Add(-c.retention)

	removed := 0
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if removed >= cleanupBatchSize {
			return filepath.SkipAll
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".mp4") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			c.logger.WithError(err).Warnf("remove expired clip %s failed", path)
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}
