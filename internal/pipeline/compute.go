package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vegcover/internal/config"
	"vegcover/internal/metadata"
	"vegcover/internal/period"
	"vegcover/internal/remote"
)

// Source-identifier query caps. Bi-weekly windows are short so a small
// cap suffices; monthly windows list more scenes.
const (
	biweeklySourceCap = 20
	monthlySourceCap  = 100
)

// Computation computes one Result per period against the remote backend.
// It also provides the placeholder fallback the executor substitutes when
// a period's computation fails.
type Computation struct {
	Client remote.ComputeClient
	Cfg    config.Run
	RunID  string

	// Now is the clock for Processing_Date stamps; tests pin it.
	Now func() time.Time

	// Logf receives progress and warning lines. Optional.
	Logf func(format string, args ...any)
}

func (c *Computation) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Computation) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

// Artifacts returns the artifact kinds this run produces, primary first.
func (c *Computation) Artifacts() []remote.Artifact {
	if c.Cfg.ExportIndex {
		return []remote.Artifact{remote.Cover, remote.Index}
	}
	return []remote.Artifact{remote.Cover}
}

func (c *Computation) filters() remote.Filters {
	return remote.Filters{
		CloudCoverMax:  c.Cfg.CloudCoverMax,
		CoverThreshold: c.Cfg.CoverThreshold,
	}
}

// ComputePeriod runs the full per-period flow: query scene count and
// identifiers, then compose one mosaic per requested artifact. A period
// with zero matching scenes is a successful empty result carrying
// constant placeholder rasters.
//
// Errors are returned unclassified; the executor decides whether they
// belong to the recoverable remote class.
func (c *Computation) ComputePeriod(ctx context.Context, p period.Period) (Result, error) {
	win := remote.Window{Start: p.Start, End: p.QueryEnd}

	q, err := c.Client.Query(ctx, win, c.filters())
	if err != nil {
		return Result{}, err
	}

	sources := capSources(q.SourceIDs, c.sourceCap())
	if c.Cfg.Granularity == config.Monthly {
		sources = trimSourcePrefixes(sources)
	}

	res := Result{
		Period:     p,
		ImageCount: q.ImageCount,
		SourceIDs:  sources,
		Rasters:    make(map[remote.Artifact]remote.Handle, 2),
		Succeeded:  true,
	}

	if q.ImageCount == 0 {
		for _, a := range c.Artifacts() {
			res.Rasters[a] = c.Client.ConstantRaster(a.FillValue(), p.Label)
		}
		res.Records = c.buildRecords(res)
		return res, nil
	}

	for _, a := range c.Artifacts() {
		h, err := c.Client.ComposeMosaic(ctx, win, c.filters(), a, p.Label)
		if err != nil {
			return Result{}, err
		}
		res.Rasters[a] = h
	}

	if c.Cfg.Granularity == config.Monthly {
		res.CoveragePercent = c.coveragePercent(ctx, res.Rasters[remote.Cover], p.Label)
	}

	res.Records = c.buildRecords(res)
	return res, nil
}

// Placeholder synthesizes the fallback Result for a failed period:
// zero images, constant rasters for every requested artifact, and
// metadata rows with the quality flag down. It performs no I/O.
func (c *Computation) Placeholder(p period.Period) Result {
	res := Result{
		Period:    p,
		Rasters:   make(map[remote.Artifact]remote.Handle, 2),
		Succeeded: false,
	}
	for _, a := range c.Artifacts() {
		res.Rasters[a] = c.Client.ConstantRaster(a.FillValue(), p.Label)
	}
	res.Records = c.buildRecords(res)
	return res
}

func (c *Computation) sourceCap() int {
	if c.Cfg.Granularity == config.Monthly {
		return monthlySourceCap
	}
	return biweeklySourceCap
}

// coveragePercent reduces the cover mosaic to its regional mean. A
// statistics failure degrades to 0 with a warning; it never fails the
// period.
func (c *Computation) coveragePercent(ctx context.Context, h remote.Handle, band string) float64 {
	mean, err := c.Client.MeanValue(ctx, h, band)
	if err != nil {
		c.logf("warning: coverage calculation failed for %s: %v", band, err)
		return 0
	}
	return mean * 100
}

// buildRecords derives the metadata rows for a result: one row per
// requested artifact, all sharing the run's fixed field set so the CSV
// schema never diverges between computed and placeholder periods.
func (c *Computation) buildRecords(res Result) []*metadata.Record {
	var base *metadata.Record
	if c.Cfg.Granularity == config.Monthly {
		base = c.monthlyRecord(res)
	} else {
		base = c.biweeklyRecord(res)
	}

	records := []*metadata.Record{base}
	if c.Cfg.ExportIndex {
		idx := base.Clone()
		idx.Set("Data_Type", "NDVI_mean")
		if c.Cfg.Granularity == config.Monthly {
			idx.Set("Filename", fmt.Sprintf("NDVI_%s_thr_%s", res.Period.Label, ThresholdTag(c.Cfg.CoverThreshold)))
		}
		records = append(records, idx)
	}
	return records
}

func (c *Computation) biweeklyRecord(res Result) *metadata.Record {
	p := res.Period
	return metadata.NewRecord().
		SetInt("Year", c.Cfg.Year).
		SetInt("Months_Processed", c.Cfg.Months).
		SetInt("Period_Number", p.Index).
		Set("Period_Label", p.Label).
		Set("Output_Start", p.Start.Format("2006-01-02")).
		// CSV rows record the inclusive last covered day; End is exclusive.
		Set("Output_End", p.End.AddDate(0, 0, -1).Format("2006-01-02")).
		Set("Acquisition_Start", p.Start.Format("2006-01-02")).
		Set("Acquisition_End", p.QueryEnd.Format("2006-01-02")).
		SetInt("Acquisition_Window_Days", c.Cfg.AcquisitionWindowDays).
		SetInt("Image_Count", res.ImageCount).
		SetBool("QA_Flag", res.QAFlag()).
		Set("Source_Images", sourceDisplay(res.SourceIDs)).
		SetFloat("NDVI_Threshold", c.Cfg.CoverThreshold).
		SetInt("Cloud_Cover_Max", c.Cfg.CloudCoverMax).
		Set("Data_Type", "VC").
		SetTime("Processing_Date", c.now()).
		Set("Run_ID", c.RunID)
}

func (c *Computation) monthlyRecord(res Result) *metadata.Record {
	p := res.Period
	return metadata.NewRecord().
		SetInt("Year", c.Cfg.Year).
		Set("Month", p.Label).
		Set("Data_Type", "VC").
		SetInt("ImageCount", res.ImageCount).
		SetFloat("CoveragePercent", res.CoveragePercent).
		SetBool("QA_Flag", res.QAFlag()).
		Set("Filename", fmt.Sprintf("VC_%s_thr_%s", p.Label, ThresholdTag(c.Cfg.CoverThreshold))).
		SetFloat("Threshold", c.Cfg.CoverThreshold).
		SetInt("CloudCoverMax", c.Cfg.CloudCoverMax).
		Set("Source_Images", sourceDisplay(res.SourceIDs)).
		SetTime("Processing_Date", c.now()).
		Set("Run_ID", c.RunID)
}

func capSources(ids []string, limit int) []string {
	if len(ids) <= limit {
		return ids
	}
	return ids[:limit]
}

// trimSourcePrefixes strips collection path prefixes from scene
// identifiers, keeping the bare granule name.
func trimSourcePrefixes(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		parts := strings.Split(id, "/")
		if len(parts) >= 3 {
			out[i] = parts[len(parts)-1]
		} else {
			out[i] = id
		}
	}
	return out
}

// ThresholdTag renders a threshold for filenames: 0.15 -> "0_15".
func ThresholdTag(thr float64) string {
	return strings.ReplaceAll(fmt.Sprintf("%g", thr), ".", "_")
}
