package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func periodRecord(n int, qa bool) *Record {
	return NewRecord().
		SetInt("Period_Number", n).
		Set("Period_Label", "2025-01-01").
		SetInt("Image_Count", n*3).
		SetBool("QA_Flag", qa).
		SetFloat("NDVI_Threshold", 0.15).
		SetTime("Processing_Date", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))
}

func TestRecord_FieldOrderIsInsertionOrder(t *testing.T) {
	r := periodRecord(1, true)
	assert.Equal(t, []string{
		"Period_Number", "Period_Label", "Image_Count", "QA_Flag",
		"NDVI_Threshold", "Processing_Date",
	}, r.Fields())

	// Re-setting an existing field changes the value, not the order.
	r.Set("Period_Label", "2025-01-16")
	assert.Equal(t, "2025-01-16", r.Get("Period_Label"))
	assert.Equal(t, "Period_Label", r.Fields()[1])
}

func TestRecord_ValueFormatting(t *testing.T) {
	r := periodRecord(2, false)
	assert.Equal(t, "2", r.Get("Period_Number"))
	assert.Equal(t, "6", r.Get("Image_Count"))
	assert.Equal(t, "False", r.Get("QA_Flag"))
	assert.Equal(t, "0.15", r.Get("NDVI_Threshold"))
	assert.Equal(t, "2025-06-01 12:30:00", r.Get("Processing_Date"))
	assert.Empty(t, r.Get("Unset_Field"))
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	r := periodRecord(1, true)
	c := r.Clone()
	c.Set("Period_Label", "changed")

	assert.Equal(t, "2025-01-01", r.Get("Period_Label"))
	assert.Equal(t, "changed", c.Get("Period_Label"))
	assert.Equal(t, r.Fields(), c.Fields())
}

func TestWriteCSV_EmptyRunWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	wrote, err := WriteCSV(nil, path)
	require.NoError(t, err)
	assert.False(t, wrote)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no file created for an empty run")
}

func TestWriteCSV_HeaderFromFirstRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.csv")
	records := []*Record{periodRecord(1, true), periodRecord(2, false)}

	wrote, err := WriteCSV(records, path)
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	want := "Period_Number,Period_Label,Image_Count,QA_Flag,NDVI_Threshold,Processing_Date\n" +
		"1,2025-01-01,3,True,0.15,2025-06-01 12:30:00\n" +
		"2,2025-01-01,6,False,0.15,2025-06-01 12:30:00\n"
	assert.Equal(t, want, string(data))
}

func TestWriteCSV_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.csv")

	t.Run("extra field", func(t *testing.T) {
		records := []*Record{
			periodRecord(1, true),
			periodRecord(2, true).Set("Stray", "x"),
		}
		wrote, err := WriteCSV(records, path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
		assert.False(t, wrote)
	})

	t.Run("reordered fields", func(t *testing.T) {
		reordered := NewRecord().
			Set("Period_Label", "2025-01-01").
			SetInt("Period_Number", 2).
			SetInt("Image_Count", 6).
			SetBool("QA_Flag", true).
			SetFloat("NDVI_Threshold", 0.15).
			SetTime("Processing_Date", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC))
		wrote, err := WriteCSV([]*Record{periodRecord(1, true), reordered}, path)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaMismatch)
		assert.False(t, wrote)
	})

	// A schema failure must not leave a partial file behind.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteCSV_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale contents\n"), 0o644))

	wrote, err := WriteCSV([]*Record{periodRecord(1, true)}, path)
	require.NoError(t, err)
	assert.True(t, wrote)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}
