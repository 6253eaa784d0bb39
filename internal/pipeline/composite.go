package pipeline

import (
	"context"
	"fmt"

	"vegcover/internal/remote"
)

// Group is an ordered slice of results selected for one composite.
type Group struct {
	Key     string
	Members []Result
}

// Composite is a group materialized into stacked multi-band rasters.
// Band order equals member order (which equals period-index order) and
// band labels equal member labels verbatim; that is the externally
// visible contract for consumers of the composite file.
type Composite struct {
	Key     string
	Members []Result
	Bands   []string
	Rasters map[remote.Artifact]remote.Handle
	Attrs   map[string]string
}

// groupKey renders a member range as e.g. "01_02" or "01_12".
func groupKey(first, last int) string {
	return fmt.Sprintf("%02d_%02d", first, last)
}

// GroupFixed partitions ordered results into consecutive chunks of
// size. A chunk is returned only when it has exactly size members; an
// incomplete tail is reported in skipped, never an error. Grouping is
// pure and idempotent: the same ordered input always yields the same
// key -> member composition.
func GroupFixed(results []Result, size int) (groups []Group, skipped []string) {
	if size < 1 {
		return nil, nil
	}
	for i := 0; i < len(results); i += size {
		end := i + size
		if end > len(results) {
			key := groupKey(results[i].Period.Index, results[i].Period.Index+size-1)
			skipped = append(skipped, key)
			break
		}
		chunk := results[i:end]
		groups = append(groups, Group{
			Key:     groupKey(chunk[0].Period.Index, chunk[len(chunk)-1].Period.Index),
			Members: chunk,
		})
	}
	return groups, skipped
}

// GroupSpan selects every result holding a raster handle for the
// primary artifact into a single whole-range group. Given the executor's
// placeholder invariant this is all of them; a result without any cover
// handle would indicate an upstream bug and is skipped rather than
// crashed on.
func GroupSpan(results []Result, key string) Group {
	g := Group{Key: key}
	for _, r := range results {
		if h, ok := r.Rasters[remote.Cover]; !ok || h.IsZero() {
			continue
		}
		g.Members = append(g.Members, r)
	}
	return g
}

// Aggregator materializes groups into composites by delegating band
// stacking to the backend.
type Aggregator struct {
	Client    remote.ComputeClient
	Artifacts []remote.Artifact

	// Logf receives skip reports. Optional.
	Logf func(format string, args ...any)
}

func (a *Aggregator) logf(format string, args ...any) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

// Build stacks the group's per-period rasters into one multi-band handle
// per artifact. Attrs are attached to the stacked rasters as file-level
// metadata and carried on the composite.
func (a *Aggregator) Build(ctx context.Context, g Group, attrs map[string]string) (Composite, error) {
	if len(g.Members) == 0 {
		return Composite{}, fmt.Errorf("group %s has no members", g.Key)
	}

	comp := Composite{
		Key:     g.Key,
		Members: g.Members,
		Rasters: make(map[remote.Artifact]remote.Handle, len(a.Artifacts)),
		Attrs:   attrs,
	}
	for _, m := range g.Members {
		comp.Bands = append(comp.Bands, m.Period.Label)
	}

	for _, art := range a.Artifacts {
		handles := make([]remote.Handle, 0, len(g.Members))
		labels := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			h, ok := m.Rasters[art]
			if !ok || h.IsZero() {
				a.logf("group %s: period %d has no %s raster, skipping band", g.Key, m.Period.Index, art)
				continue
			}
			handles = append(handles, h)
			labels = append(labels, m.Period.Label)
		}
		if len(handles) == 0 {
			return Composite{}, fmt.Errorf("group %s has no %s bands", g.Key, art)
		}
		stacked, err := a.Client.StackBands(ctx, handles, labels, attrs)
		if err != nil {
			return Composite{}, fmt.Errorf("stacking %s for group %s: %w", art, g.Key, err)
		}
		comp.Rasters[art] = stacked
	}
	return comp, nil
}
