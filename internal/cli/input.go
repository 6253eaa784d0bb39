package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"vegcover/internal/config"
)

// Semantic exit codes.
const (
	ExitSuccess           = 0
	ExitPartialFailure    = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// Invocation is the canonicalized description of one run: a validated
// configuration plus nothing else. All option resolution (defaults,
// config file, flags) happens here, before any engine logic runs.
type Invocation struct {
	Cfg config.Run
}

// InvocationError reports an unusable command line with its exit code.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

const usage = "usage: vegcover <biweekly|monthly> [flags]"

// ParseInvocation parses the subcommand and flags into an Invocation.
//
// Precedence is defaults < config file < flags: the YAML overlay is
// applied first, then any flag the user set explicitly wins.
func ParseInvocation(args []string) (Invocation, error) {
	if len(args) == 0 {
		return Invocation{}, invalidInvocationf("%s", usage)
	}

	var g config.Granularity
	switch args[0] {
	case string(config.Biweekly):
		g = config.Biweekly
	case string(config.Monthly):
		g = config.Monthly
	default:
		return Invocation{}, invalidInvocationf("unknown command %q\n%s", args[0], usage)
	}

	cfg := config.Default(g)
	fs := flag.NewFlagSet("vegcover "+string(g), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // parsing errors are returned, not printed

	var (
		configPath string
		flagCfg    = cfg
	)
	fs.StringVar(&configPath, "config", "", "YAML config file (optional)")
	fs.IntVar(&flagCfg.Year, "year", cfg.Year, "Year to process")
	fs.Float64Var(&flagCfg.CoverThreshold, "ndvi-threshold", cfg.CoverThreshold, "NDVI threshold for vegetation cover")
	fs.IntVar(&flagCfg.CloudCoverMax, "cloud-cover-max", cfg.CloudCoverMax, "Maximum scene cloud cover percentage")
	fs.IntVar(&flagCfg.Workers, "workers", cfg.Workers, "Number of parallel workers")
	fs.BoolVar(&flagCfg.ExportIndex, "export-ndvi", cfg.ExportIndex, "Also export NDVI rasters")
	fs.StringVar(&flagCfg.OutputDir, "output-path", cfg.OutputDir, "Output directory")
	fs.StringVar(&flagCfg.Endpoint, "endpoint", cfg.Endpoint, "Imagery backend endpoint")
	fs.StringVar(&flagCfg.KeyFile, "key-file", cfg.KeyFile, "Backend credential file")
	fs.StringVar(&flagCfg.RegionAsset, "region-asset", cfg.RegionAsset, "Region geometry asset")
	fs.StringVar(&flagCfg.AOIAsset, "aoi-asset", cfg.AOIAsset, "Coverage-statistics geometry asset")

	if g == config.Biweekly {
		fs.IntVar(&flagCfg.Months, "months", cfg.Months, "Number of months to process (1-12)")
		fs.IntVar(&flagCfg.AcquisitionWindowDays, "acquisition-window", cfg.AcquisitionWindowDays, "Acquisition window in days")
	} else {
		fs.IntVar(&flagCfg.StartMonth, "start-month", cfg.StartMonth, "Starting month (1-12)")
		fs.IntVar(&flagCfg.EndMonth, "end-month", cfg.EndMonth, "Ending month (1-12)")
	}

	if err := fs.Parse(args[1:]); err != nil {
		return Invocation{}, invalidInvocationf("%v", err)
	}
	if fs.NArg() != 0 {
		return Invocation{}, invalidInvocationf("unexpected positional arguments: %q", strings.Join(fs.Args(), " "))
	}

	if configPath != "" {
		if err := cfg.ApplyFile(configPath); err != nil {
			return Invocation{}, &InvocationError{ExitCode: ExitConfigError, Message: err.Error()}
		}
	}

	// Re-apply only the flags the user actually set, so the config file
	// does not clobber explicit command-line choices.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "year":
			cfg.Year = flagCfg.Year
		case "months":
			cfg.Months = flagCfg.Months
		case "start-month":
			cfg.StartMonth = flagCfg.StartMonth
		case "end-month":
			cfg.EndMonth = flagCfg.EndMonth
		case "ndvi-threshold":
			cfg.CoverThreshold = flagCfg.CoverThreshold
		case "cloud-cover-max":
			cfg.CloudCoverMax = flagCfg.CloudCoverMax
		case "acquisition-window":
			cfg.AcquisitionWindowDays = flagCfg.AcquisitionWindowDays
		case "workers":
			cfg.Workers = flagCfg.Workers
		case "export-ndvi":
			cfg.ExportIndex = flagCfg.ExportIndex
		case "output-path":
			cfg.OutputDir = flagCfg.OutputDir
		case "endpoint":
			cfg.Endpoint = flagCfg.Endpoint
		case "key-file":
			cfg.KeyFile = flagCfg.KeyFile
		case "region-asset":
			cfg.RegionAsset = flagCfg.RegionAsset
		case "aoi-asset":
			cfg.AOIAsset = flagCfg.AOIAsset
		}
	})

	if err := cfg.Validate(); err != nil {
		return Invocation{}, &InvocationError{ExitCode: ExitConfigError, Message: err.Error()}
	}

	return Invocation{Cfg: cfg}, nil
}

// ExitCodeOf extracts a semantic exit code from a parse or execution error.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil && invErr.ExitCode != 0 {
		return invErr.ExitCode
	}
	if errors.Is(err, config.ErrInvalid) {
		return ExitConfigError
	}
	return ExitInternalError
}
