package cli

import (
	"context"
	"io"
)

// Run is the high-level CLI entrypoint suitable for black-box tests.
// It accepts the argument slice (excluding argv[0]) and returns the
// semantic exit code plus any error.
//
// Per-item failures never surface here as errors: they lower the export
// ratio or metadata flag and map to ExitPartialFailure.
func Run(ctx context.Context, args []string, out io.Writer) (int, error) {
	inv, err := ParseInvocation(args)
	if err != nil {
		return ExitCodeOf(err), err
	}
	summary, err := Execute(ctx, inv, out)
	if err != nil {
		return ExitCodeOf(err), err
	}
	if summary.ExportSuccess == summary.ExportTotal && summary.MetadataOK {
		return ExitSuccess, nil
	}
	return ExitPartialFailure, nil
}
