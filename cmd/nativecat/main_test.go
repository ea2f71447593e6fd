package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"

	"native-exporter/internal/exporter"
	"native-exporter/internal/native"
)

// sample encodes one block: id UInt64, name String.
func sample(ids ...uint64) []byte {
	b := native.AppendVarUInt(nil, 2)
	b = native.AppendVarUInt(b, uint64(len(ids)))
	b = append(b, 2, 'i', 'd', 6, 'U', 'I', 'n', 't', '6', '4')
	for _, id := range ids {
		b = binary.LittleEndian.AppendUint64(b, id)
	}
	b = append(b, 4, 'n', 'a', 'm', 'e', 6, 'S', 't', 'r', 'i', 'n', 'g')
	for range ids {
		b = append(b, 1, 'x')
	}
	return b
}

func runCLI(t *testing.T, stdin []byte, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, bytes.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_StdinToCSV(t *testing.T) {
	code, out, errOut := runCLI(t, sample(1, 2))
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "id,name\n1,x\n2,x\n", out)
}

func TestRun_Inspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ids.native")
	require.NoError(t, os.WriteFile(path, sample(1, 2, 3), 0644))

	code, out, errOut := runCLI(t, nil, "-inspect", path)
	require.Equal(t, 0, code, errOut)
	require.Contains(t, out, "ids.native: 3 rows, 2 columns, 1 blocks")
	require.Contains(t, out, "UInt64")
	require.Contains(t, out, "wraps above")
}

func TestRun_CompressedInputsToDir(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "a.native")
	require.NoError(t, os.WriteFile(plain, sample(1), 0644))

	var zbuf bytes.Buffer
	zw, err := zstd.NewWriter(&zbuf)
	require.NoError(t, err)
	_, err = zw.Write(sample(5, 6))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	compressed := filepath.Join(dir, "b.native.zst")
	require.NoError(t, os.WriteFile(compressed, zbuf.Bytes(), 0644))

	out := filepath.Join(dir, "out")
	code, _, errOut := runCLI(t, nil, "-format", "json", "-out", out, plain, compressed)
	require.Equal(t, 0, code, errOut)

	a, err := os.ReadFile(filepath.Join(out, "a.jsonl"))
	require.NoError(t, err)
	require.Equal(t, `{"id":1,"name":"x"}`+"\n", string(a))

	b, err := os.ReadFile(filepath.Join(out, "b.jsonl"))
	require.NoError(t, err)
	require.Equal(t, 2, strings.Count(string(b), "\n"))
}

func TestRun_Folder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, native.FolderColumnsFile), []byte("columns format version: 1\n1 columns:\n`n` Int32\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, native.FolderCountFile), []byte("2\n"), 0644))
	data := binary.LittleEndian.AppendUint32(nil, 10)
	data = binary.LittleEndian.AppendUint32(data, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, native.FolderDataFile), data, 0644))

	code, out, errOut := runCLI(t, nil, dir)
	require.Equal(t, 0, code, errOut)
	require.Equal(t, "n\n10\n20\n", out)
}

func TestRun_Errors(t *testing.T) {
	code, _, errOut := runCLI(t, nil, "-format", "parquet")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "unsupported format")

	code, _, errOut = runCLI(t, nil, "-termination", "never")
	require.Equal(t, 2, code)
	require.NotEmpty(t, errOut)

	truncated := sample(1, 2)
	code, _, errOut = runCLI(t, truncated[:len(truncated)-1])
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "truncated")

	code, _, _ = runCLI(t, nil, filepath.Join(t.TempDir(), "missing.native"))
	require.Equal(t, 1, code)
}

func TestOutputName(t *testing.T) {
	require.Equal(t, "events.csv", outputName("/data/events.native.gz", exporter.FormatCSV))
	require.Equal(t, "events.arrow", outputName("events.bin", exporter.FormatArrow))
	require.Equal(t, "stdin.jsonl", outputName("-", exporter.FormatJSON))
	require.Equal(t, "folder.xlsx", outputName("/data/folder/", exporter.FormatExcel))
}
