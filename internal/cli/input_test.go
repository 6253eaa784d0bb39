package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vegcover/internal/config"
)

func requireInvocationError(t *testing.T, err error, exitCode int) *InvocationError {
	t.Helper()
	require.Error(t, err)
	var invErr *InvocationError
	require.True(t, errors.As(err, &invErr))
	assert.Equal(t, exitCode, invErr.ExitCode)
	return invErr
}

func TestParseInvocation_NoArguments(t *testing.T) {
	_, err := ParseInvocation(nil)
	invErr := requireInvocationError(t, err, ExitInvalidInvocation)
	assert.Contains(t, invErr.Message, "usage:")
}

func TestParseInvocation_UnknownCommand(t *testing.T) {
	_, err := ParseInvocation([]string{"weekly"})
	invErr := requireInvocationError(t, err, ExitInvalidInvocation)
	assert.Contains(t, invErr.Message, `"weekly"`)
}

func TestParseInvocation_UnknownFlag(t *testing.T) {
	_, err := ParseInvocation([]string{"biweekly", "-bogus"})
	requireInvocationError(t, err, ExitInvalidInvocation)
}

func TestParseInvocation_PositionalArgumentsRejected(t *testing.T) {
	_, err := ParseInvocation([]string{"biweekly", "-year", "2024", "extra"})
	requireInvocationError(t, err, ExitInvalidInvocation)
}

func TestParseInvocation_BiweeklyDefaults(t *testing.T) {
	inv, err := ParseInvocation([]string{"biweekly"})
	require.NoError(t, err)

	assert.Equal(t, config.Biweekly, inv.Cfg.Granularity)
	assert.Equal(t, 2025, inv.Cfg.Year)
	assert.Equal(t, 12, inv.Cfg.Months)
	assert.Equal(t, 40, inv.Cfg.CloudCoverMax)
	assert.Equal(t, 4, inv.Cfg.Workers)
}

func TestParseInvocation_BiweeklyFlags(t *testing.T) {
	inv, err := ParseInvocation([]string{
		"biweekly",
		"-year", "2024",
		"-months", "6",
		"-ndvi-threshold", "0.2",
		"-acquisition-window", "30",
		"-export-ndvi",
		"-workers", "8",
		"-output-path", "/data/out",
	})
	require.NoError(t, err)

	assert.Equal(t, 2024, inv.Cfg.Year)
	assert.Equal(t, 6, inv.Cfg.Months)
	assert.Equal(t, 0.2, inv.Cfg.CoverThreshold)
	assert.Equal(t, 30, inv.Cfg.AcquisitionWindowDays)
	assert.True(t, inv.Cfg.ExportIndex)
	assert.Equal(t, 8, inv.Cfg.Workers)
	assert.Equal(t, "/data/out", inv.Cfg.OutputDir)
}

func TestParseInvocation_MonthlyFlags(t *testing.T) {
	inv, err := ParseInvocation([]string{"monthly", "-start-month", "3", "-end-month", "9"})
	require.NoError(t, err)

	assert.Equal(t, config.Monthly, inv.Cfg.Granularity)
	assert.Equal(t, 3, inv.Cfg.StartMonth)
	assert.Equal(t, 9, inv.Cfg.EndMonth)
	assert.Equal(t, 15, inv.Cfg.CloudCoverMax)
}

func TestParseInvocation_GranularityScopesFlags(t *testing.T) {
	_, err := ParseInvocation([]string{"monthly", "-months", "6"})
	requireInvocationError(t, err, ExitInvalidInvocation)

	_, err = ParseInvocation([]string{"biweekly", "-start-month", "3"})
	requireInvocationError(t, err, ExitInvalidInvocation)
}

func TestParseInvocation_ValidationFailure(t *testing.T) {
	_, err := ParseInvocation([]string{"biweekly", "-months", "13"})
	invErr := requireInvocationError(t, err, ExitConfigError)
	assert.Contains(t, invErr.Message, "months")

	_, err = ParseInvocation([]string{"monthly", "-start-month", "9", "-end-month", "3"})
	requireInvocationError(t, err, ExitConfigError)
}

func TestParseInvocation_ConfigFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("year: 2023\nmonths: 4\nworkers: 2\n"), 0o644))

	// Explicit flags beat the file; file beats defaults.
	inv, err := ParseInvocation([]string{"biweekly", "-config", path, "-year", "2024"})
	require.NoError(t, err)

	assert.Equal(t, 2024, inv.Cfg.Year, "flag wins over file")
	assert.Equal(t, 4, inv.Cfg.Months, "file wins over default")
	assert.Equal(t, 2, inv.Cfg.Workers)
	assert.Equal(t, 40, inv.Cfg.CloudCoverMax, "untouched options keep defaults")
}

func TestParseInvocation_FlagOrderIrrelevantForPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 2\n"), 0o644))

	inv, err := ParseInvocation([]string{"biweekly", "-workers", "8", "-config", path})
	require.NoError(t, err)
	assert.Equal(t, 8, inv.Cfg.Workers)
}

func TestParseInvocation_MissingConfigFile(t *testing.T) {
	_, err := ParseInvocation([]string{"biweekly", "-config", filepath.Join(t.TempDir(), "absent.yaml")})
	requireInvocationError(t, err, ExitConfigError)
}

func TestExitCodeOf(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCodeOf(nil))
	assert.Equal(t, ExitInvalidInvocation, ExitCodeOf(&InvocationError{ExitCode: ExitInvalidInvocation}))
	assert.Equal(t, ExitConfigError, ExitCodeOf(&config.ValidationError{Option: "year", Msg: "bad"}))
	assert.Equal(t, ExitInternalError, ExitCodeOf(errors.New("boom")))
}
