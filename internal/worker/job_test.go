package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"native-exporter/internal/exporter"
)

func TestSource_Validate(t *testing.T) {
	valid := []Source{
		{Kind: SourceFile, Key: "in/a.native"},
		{Kind: SourceFile, Key: "in/a.native.zst", Termination: "short"},
		{Kind: SourceFolder, Key: "in/folder"},
		{Kind: SourceRemote, Query: "SELECT 1"},
		{Kind: SourceAgent, Query: "SELECT 1"},
	}
	for _, src := range valid {
		require.NoError(t, src.Validate(), src)
	}

	invalid := []Source{
		{},
		{Kind: "ftp", Key: "x"},
		{Kind: SourceFile},
		{Kind: SourceFolder},
		{Kind: SourceRemote, Key: "x"},
		{Kind: SourceFile, Key: "x", Termination: "never"},
	}
	for _, src := range invalid {
		require.ErrorIs(t, src.Validate(), ErrInvalidSource, src)
	}
}

func TestSource_Options(t *testing.T) {
	opts, err := Source{Kind: SourceFile, Key: "k"}.Options()
	require.NoError(t, err)
	require.Empty(t, opts)

	opts, err = Source{Termination: "single", MaxBlockSize: 10, ByteCounts: true, VarUIntStrings: true}.Options()
	require.NoError(t, err)
	require.Len(t, opts, 4)

	_, err = Source{Termination: "bogus"}.Options()
	require.Error(t, err)
}

func TestExportJob_Lifecycle(t *testing.T) {
	job := NewExportJob(Source{Kind: SourceRemote, Query: "SELECT 1"}, "", "", time.Minute)
	defer job.Cancel()

	require.Equal(t, exporter.FormatCSV, job.Format)
	require.Equal(t, StatusPending, job.Status())
	require.True(t, job.Info().Started.IsZero())

	require.GreaterOrEqual(t, job.start(), time.Duration(0))
	require.Equal(t, StatusProcessing, job.Status())

	job.addRows(5)
	require.Equal(t, int64(5), job.Info().Rows)

	job.complete(&exporter.ExportResult{RowsProcessed: 7, Batches: 1})
	info := job.Info()
	require.Equal(t, StatusCompleted, info.Status)
	require.Equal(t, int64(7), info.Rows)
	require.False(t, info.Finished.IsZero())
	require.Empty(t, info.Error)
}
