package native

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Folder layout file names.
const (
	FolderColumnsFile = "columns.txt"
	FolderCountFile   = "count.txt"
	FolderDataFile    = "data.bin"
)

// Opener opens one file of a folder by its base name.
type Opener func(name string) (io.ReadCloser, error)

// ReadFolder decodes a folder written as columns.txt, count.txt and data.bin.
// data.bin holds count values per column, column after column, with no
// block framing; the schema and row count come from the text files.
func ReadFolder(open Opener) (*Result, error) {
	descs, err := readColumnsFile(open)
	if err != nil {
		return nil, err
	}

	count, err := readCountFile(open)
	if err != nil {
		return nil, err
	}

	f, err := open(FolderDataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", FolderDataFile, err)
	}
	defer f.Close()

	d := &decoder{r: newReader(f), opts: defaultOptions()}
	d.descriptors = descs
	d.columns = make([]Column, len(descs))
	for i, desc := range descs {
		d.columns[i] = NewColumn(desc.Type)
	}

	for i, col := range d.columns {
		if err := col.decode(d.r, count); err != nil {
			return nil, d.wrap(descs[i].Name, err)
		}
	}
	d.blocks = 1
	d.rows = count

	return d.result()
}

func readColumnsFile(open Opener) ([]ColumnDescriptor, error) {
	f, err := open(FolderColumnsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", FolderColumnsFile, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// "columns format version: 1"
	if !sc.Scan() {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidFolder, FolderColumnsFile)
	}
	// "N columns:"
	if !sc.Scan() {
		return nil, fmt.Errorf("%w: missing columns count", ErrInvalidFolder)
	}
	declared, err := parseColumnsCount(sc.Text())
	if err != nil {
		return nil, err
	}

	var descs []ColumnDescriptor
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		desc, err := parseColumnLine(line)
		if err != nil {
			return nil, err
		}
		descs = append(descs, desc)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", FolderColumnsFile, err)
	}

	if declared != len(descs) {
		return nil, fmt.Errorf("%w: %s declares %d columns, lists %d", ErrInvalidFolder, FolderColumnsFile, declared, len(descs))
	}
	return descs, nil
}

func parseColumnsCount(line string) (int, error) {
	field, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	n, err := strconv.Atoi(field)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad columns count line %q", ErrInvalidFolder, line)
	}
	return n, nil
}

// parseColumnLine parses "`name` Type". The type may contain spaces.
func parseColumnLine(line string) (ColumnDescriptor, error) {
	var name, typeName string
	if strings.HasPrefix(line, "`") {
		end := strings.IndexByte(line[1:], '`')
		if end < 0 {
			return ColumnDescriptor{}, fmt.Errorf("%w: unterminated column name in %q", ErrInvalidFolder, line)
		}
		name = line[1 : end+1]
		typeName = strings.TrimSpace(line[end+2:])
	} else {
		var ok bool
		name, typeName, ok = strings.Cut(line, " ")
		if !ok {
			return ColumnDescriptor{}, fmt.Errorf("%w: invalid column line %q", ErrInvalidFolder, line)
		}
		typeName = strings.TrimSpace(typeName)
	}
	if typeName == "" {
		return ColumnDescriptor{}, fmt.Errorf("%w: column %q has no type", ErrInvalidFolder, name)
	}

	t, _ := ParseType(typeName)
	return ColumnDescriptor{Name: name, Type: t}, nil
}

func readCountFile(open Opener) (uint64, error) {
	f, err := open(FolderCountFile)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", FolderCountFile, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, 64))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", FolderCountFile, err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad row count: %v", ErrInvalidFolder, err)
	}
	if n > math.MaxInt {
		return 0, fmt.Errorf("%w: %w: row count %d overflows", ErrInvalidFolder, ErrSchemaMismatch, n)
	}
	return n, nil
}
