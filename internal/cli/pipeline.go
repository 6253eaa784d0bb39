package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"vegcover/internal/config"
	"vegcover/internal/export"
	"vegcover/internal/metadata"
	"vegcover/internal/period"
	"vegcover/internal/pipeline"
	"vegcover/internal/remote"
)

// RunSummary is the structured outcome of a run. The run always
// completes and returns a summary; per-item failures show up as a
// reduced export ratio or a lowered metadata flag, never as an error.
type RunSummary struct {
	RunID             string
	OutputDir         string
	Elapsed           time.Duration
	ExportSuccess     int
	ExportTotal       int
	MetadataOK        bool
	Periods           int
	PeriodsWithData   int
	TotalSourceImages int
}

// Execute opens a backend session from the invocation and runs the
// full pipeline. Session setup is the only remote-facing step allowed
// to abort the run.
func Execute(ctx context.Context, inv Invocation, out io.Writer) (RunSummary, error) {
	session, err := remote.NewSession(inv.Cfg.Endpoint, inv.Cfg.KeyFile, inv.Cfg.RegionAsset, remote.WithAOI(inv.Cfg.AOIAsset))
	if err != nil {
		return RunSummary{}, &InvocationError{ExitCode: ExitConfigError, Message: fmt.Sprintf("backend session: %v", err)}
	}
	return ExecuteWith(ctx, inv, session, session, out)
}

// ExecuteWith runs the pipeline against explicit backend implementations.
// Tests use it to substitute fakes.
func ExecuteWith(ctx context.Context, inv Invocation, client remote.ComputeClient, backend remote.ExportBackend, out io.Writer) (RunSummary, error) {
	cfg := inv.Cfg
	start := time.Now()
	p := newPrinter(out)
	runID := uuid.NewString()
	outDir := filepath.Join(cfg.OutputDir, string(cfg.Granularity))

	if cfg.Granularity == config.Biweekly {
		p.Banner(fmt.Sprintf("BI-WEEKLY VC PROCESSING  run %s", runID))
	} else {
		mode := "VC only"
		if cfg.ExportIndex {
			mode = "VC + NDVI"
		}
		p.Banner(fmt.Sprintf("MONTHLY VC PROCESSING (%s)  run %s", mode, runID))
	}

	if err := export.EnsureDir(outDir); err != nil {
		return RunSummary{}, err
	}

	periods, err := plan(cfg)
	if err != nil {
		return RunSummary{}, err
	}
	p.Infof("processing %d periods with %d workers", len(periods), cfg.Workers)

	comp := &pipeline.Computation{Client: client, Cfg: cfg, RunID: runID, Logf: p.Warnf}
	exec := &pipeline.Executor{
		Compute:  comp.ComputePeriod,
		Fallback: comp.Placeholder,
		Workers:  cfg.Workers,
		Logf:     p.Infof,
	}
	results, err := exec.Run(ctx, periods)
	if err != nil {
		p.Errorf("run aborted: %v", err)
		return RunSummary{}, err
	}

	summary := RunSummary{RunID: runID, OutputDir: outDir, Periods: len(results)}
	for _, r := range results {
		if r.QAFlag() {
			summary.PeriodsWithData++
		}
		summary.TotalSourceImages += r.ImageCount
	}

	// Metadata rows are persisted independently of raster export
	// outcomes: a failed export never loses the run's accounting.
	metaName := metadataFilename(cfg)
	metaOK, metaErr := metadata.WriteCSV(pipeline.CollectRecords(results), filepath.Join(outDir, metaName))
	switch {
	case metaErr != nil:
		p.Errorf("metadata export failed: %v", metaErr)
	case !metaOK:
		p.Warnf("no metadata to export")
	default:
		p.Successf("metadata exported: %s", metaName)
	}
	summary.MetadataOK = metaOK

	agg := &pipeline.Aggregator{Client: client, Artifacts: comp.Artifacts(), Logf: p.Warnf}
	jobs, total := buildJobs(ctx, cfg, agg, results, p)

	exporter := &export.Coordinator{
		Backend:   backend,
		OutputDir: outDir,
		Options:   remote.ExportOptions{CRS: cfg.CRS, Scale: cfg.Scale, DataType: cfg.DataType},
		Pause:     cfg.ExportPause,
		Logf:      p.Plainf,
	}
	summary.ExportSuccess, summary.ExportTotal = exporter.ExportAll(ctx, jobs, total)
	summary.Elapsed = time.Since(start)

	printSummary(p, summary)
	return summary, nil
}

func plan(cfg config.Run) ([]period.Period, error) {
	if cfg.Granularity == config.Biweekly {
		return period.Biweekly(cfg.Year, cfg.Months, cfg.AcquisitionWindowDays)
	}
	return period.Monthly(cfg.Year, cfg.StartMonth, cfg.EndMonth)
}

func metadataFilename(cfg config.Run) string {
	if cfg.Granularity == config.Biweekly {
		return fmt.Sprintf("%d_BiWeekly_VC_NDVI_Metadata.csv", cfg.Year)
	}
	if cfg.ExportIndex {
		return fmt.Sprintf("%d_Monthly_VC_NDVI_Metadata.csv", cfg.Year)
	}
	return fmt.Sprintf("%d_Monthly_VC_Metadata.csv", cfg.Year)
}

// buildJobs materializes composites and turns them into export jobs.
// The returned total is the expected deliverable count for the run;
// skipped groups reduce the job list but never the total.
func buildJobs(ctx context.Context, cfg config.Run, agg *pipeline.Aggregator, results []pipeline.Result, p *printer) ([]export.Job, int) {
	var jobs []export.Job

	if cfg.Granularity == config.Biweekly {
		total := cfg.Months * len(agg.Artifacts)
		groups, skipped := pipeline.GroupFixed(results, 2)
		for _, key := range skipped {
			p.Warnf("missing data for pair %s", key)
		}
		for _, g := range groups {
			comp, err := agg.Build(ctx, g, nil)
			if err != nil {
				p.Warnf("skipping pair %s: %v", g.Key, err)
				continue
			}
			jobs = append(jobs, export.Job{
				Filename: fmt.Sprintf("%d_BiWeekly_VC_%s.tif", cfg.Year, comp.Key),
				Handle:   comp.Rasters[remote.Cover],
			})
			if cfg.ExportIndex {
				jobs = append(jobs, export.Job{
					Filename: fmt.Sprintf("%d_BiWeekly_NDVI_%s.tif", cfg.Year, comp.Key),
					Handle:   comp.Rasters[remote.Index],
				})
			}
		}
		return jobs, total
	}

	total := len(agg.Artifacts)
	key := fmt.Sprintf("%02d_%02d", cfg.StartMonth, cfg.EndMonth)
	g := pipeline.GroupSpan(results, key)
	if len(g.Members) == 0 {
		p.Warnf("no monthly mosaics available for the annual composite")
		return nil, total
	}
	attrs := map[string]string{
		"year":          fmt.Sprintf("%d", cfg.Year),
		"threshold":     fmt.Sprintf("%g", cfg.CoverThreshold),
		"cloud_filter":  fmt.Sprintf("%d", cfg.CloudCoverMax),
		"creation_date": time.Now().Format("2006-01-02"),
		"description":   fmt.Sprintf("Monthly VC composite %02d-%02d %d", cfg.StartMonth, cfg.EndMonth, cfg.Year),
	}
	comp, err := agg.Build(ctx, g, attrs)
	if err != nil {
		p.Warnf("skipping annual composite: %v", err)
		return nil, total
	}
	p.Infof("annual composite contains %d bands", len(comp.Bands))

	tag := pipeline.ThresholdTag(cfg.CoverThreshold)
	jobs = append(jobs, export.Job{
		Filename: fmt.Sprintf("VC_Annual_%d_thr_%s_%s.tif", cfg.Year, tag, key),
		Handle:   comp.Rasters[remote.Cover],
	})
	if cfg.ExportIndex {
		jobs = append(jobs, export.Job{
			Filename: fmt.Sprintf("NDVI_Annual_%d_thr_%s_%s.tif", cfg.Year, tag, key),
			Handle:   comp.Rasters[remote.Index],
		})
	}
	return jobs, total
}

func printSummary(p *printer, s RunSummary) {
	p.Banner("FINAL SUMMARY")
	p.Plainf("Total processing time: %.1f seconds", s.Elapsed.Seconds())
	p.Plainf("Successful image exports: %d/%d files", s.ExportSuccess, s.ExportTotal)
	if s.MetadataOK {
		p.Successf("Metadata export: SUCCESS")
	} else {
		p.Errorf("Metadata export: FAILED")
	}
	p.Plainf("Periods with data: %d/%d (%d source images)", s.PeriodsWithData, s.Periods, s.TotalSourceImages)
	listOutputs(p, s.OutputDir)
}

// listOutputs reports the produced raster and metadata files with sizes.
func listOutputs(p *printer, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var rasters, tables []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), ".tif"):
			rasters = append(rasters, e.Name())
		case strings.HasSuffix(e.Name(), ".csv"):
			tables = append(tables, e.Name())
		}
	}
	if len(rasters) == 0 && len(tables) == 0 {
		p.Warnf("no files were generated")
		return
	}
	slices.Sort(rasters)
	slices.Sort(tables)
	p.Plainf("Generated files in %s:", dir)
	for _, name := range rasters {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			p.Plainf("  %s (%.1f MB)", name, float64(info.Size())/(1024*1024))
		}
	}
	for _, name := range tables {
		if info, err := os.Stat(filepath.Join(dir, name)); err == nil {
			p.Plainf("  %s (%.1f KB)", name, float64(info.Size())/1024)
		}
	}
}
