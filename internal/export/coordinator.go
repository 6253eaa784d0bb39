// Package export writes deliverable rasters to disk through the external
// export backend, one at a time, pacing calls to stay under the backend's
// request-rate limits.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vegcover/internal/remote"
)

// Job is one deliverable raster. Transient: jobs exist only during the
// export phase.
type Job struct {
	Filename  string
	Handle    remote.Handle
	Succeeded bool
}

// Coordinator exports jobs strictly sequentially with a fixed pause
// between consecutive calls. The serialization is deliberate
// backpressure, not an oversight: the backend rate-limits export
// requests and a concurrent burst trades a slow run for a failed one.
type Coordinator struct {
	Backend   remote.ExportBackend
	OutputDir string
	Options   remote.ExportOptions
	Pause     time.Duration

	// Sleep is the pacing primitive; tests substitute it to avoid
	// real delays.
	Sleep func(d time.Duration)

	// Logf receives per-job outcome lines. Optional.
	Logf func(format string, args ...any)
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

func (c *Coordinator) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Export writes one job's raster. Failures (backend error, missing
// output file) are logged and reported as false, never raised: one bad
// export must not abort the remaining deliverables.
func (c *Coordinator) Export(ctx context.Context, job Job) bool {
	path := filepath.Join(c.OutputDir, job.Filename)
	if err := c.Backend.Export(ctx, job.Handle, path, c.Options); err != nil {
		c.logf("export failed for %s: %v", job.Filename, err)
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		c.logf("export of %s reported success but the file is missing: %v", job.Filename, err)
		return false
	}
	c.logf("exported %s (%.1f MB)", job.Filename, float64(info.Size())/(1024*1024))
	return true
}

// ExportAll runs every job in order, pausing between consecutive calls,
// and returns (successCount, totalCount).
//
// total is the expected deliverable count for the run — periods times
// requested artifact kinds — independent of how many jobs were actually
// materialized: a group skipped during aggregation still counts against
// the total, surfacing as a reduced success ratio.
func (c *Coordinator) ExportAll(ctx context.Context, jobs []Job, total int) (int, int) {
	success := 0
	for i := range jobs {
		if i > 0 {
			c.sleep(c.Pause)
		}
		jobs[i].Succeeded = c.Export(ctx, jobs[i])
		if jobs[i].Succeeded {
			success++
		}
	}
	if len(jobs) < total {
		c.logf("%d of %d expected deliverables were not produced", total-len(jobs), total)
	}
	return success, total
}

// EnsureDir creates the output directory if absent. Idempotent.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("creating output directory %s: %w", path, err)
	}
	return nil
}
