// Command nativecat decodes ClickHouse Native files and folders and prints
// their schema or converts them to CSV, JSON Lines, Arrow, Excel or PDF.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"native-exporter/internal/exporter"
	"native-exporter/internal/native"
	"native-exporter/internal/scan"
	"native-exporter/internal/storage"
)

type options struct {
	inspect        bool
	format         exporter.Format
	outDir         string
	termination    native.Termination
	maxBlockSize   uint64
	byteCounts     bool
	varUIntStrings bool
	batchSize      int
	jobs           int
	inputs         []string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, verbose, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "nativecat: %v\n", err)
		return 2
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if err := execute(ctx, opts, stdin, stdout); err != nil {
		fmt.Fprintf(stderr, "nativecat: %v\n", err)
		return 1
	}
	return 0
}

func parseFlags(args []string, stderr io.Writer) (*options, bool, error) {
	fs := flag.NewFlagSet("nativecat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nativecat [flags] <file|folder|->...\n\n")
		fmt.Fprintf(stderr, "Inputs ending in .gz, .zst or .sz are decompressed. A directory is read as a\n")
		fmt.Fprintf(stderr, "columns.txt / count.txt / data.bin folder.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	var (
		opts        options
		format      string
		termination string
		verbose     bool
	)
	fs.BoolVar(&opts.inspect, "inspect", false, "Print the schema and row counts instead of the rows")
	fs.StringVar(&format, "format", "csv", "Output format: csv, json, arrow, xlsx, pdf")
	fs.StringVar(&opts.outDir, "out", "", "Write one file per input into this directory (default stdout)")
	fs.StringVar(&termination, "termination", "eof", "Stream end policy: eof, single, empty, short")
	fs.Uint64Var(&opts.maxBlockSize, "max-block-size", 0, "Block size for -termination short (default 65409)")
	fs.BoolVar(&opts.byteCounts, "byte-counts", false, "Column and row counts are single bytes")
	fs.BoolVar(&opts.varUIntStrings, "varuint-strings", false, "String lengths are VarUInts instead of single bytes")
	fs.IntVar(&opts.batchSize, "batch-size", scan.DefaultBatchSize, "Rows per batch")
	fs.IntVar(&opts.jobs, "j", 4, "Inputs converted concurrently when -out is set")
	fs.BoolVar(&verbose, "v", false, "Debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	var err error
	if opts.format, err = exporter.ParseFormat(format); err != nil {
		return nil, false, err
	}
	if opts.termination, err = native.ParseTermination(termination); err != nil {
		return nil, false, err
	}
	opts.inputs = fs.Args()
	if len(opts.inputs) == 0 {
		opts.inputs = []string{"-"}
	}
	if opts.jobs < 1 {
		opts.jobs = 1
	}
	return &opts, verbose, nil
}

func (o *options) readerOptions() []native.Option {
	opts := []native.Option{native.WithTermination(o.termination)}
	if o.maxBlockSize > 0 {
		opts = append(opts, native.WithMaxBlockSize(o.maxBlockSize))
	}
	if o.byteCounts {
		opts = append(opts, native.WithByteCounts())
	}
	if o.varUIntStrings {
		opts = append(opts, native.WithVarUIntStrings())
	}
	return opts
}

func execute(ctx context.Context, opts *options, stdin io.Reader, stdout io.Writer) error {
	if opts.outDir != "" && !opts.inspect {
		if err := os.MkdirAll(opts.outDir, 0755); err != nil {
			return err
		}
	}

	// Output to stdout is sequential so inputs do not interleave.
	g, ctx := errgroup.WithContext(ctx)
	if opts.outDir == "" || opts.inspect {
		g.SetLimit(1)
	} else {
		g.SetLimit(opts.jobs)
	}

	for _, input := range opts.inputs {
		g.Go(func() error {
			res, err := load(input, stdin, opts.readerOptions())
			if err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			slog.Debug("Decoded input", "input", input, "rows", res.NumRows, "blocks", res.Blocks)

			if opts.inspect {
				return inspect(stdout, input, res)
			}
			if err := convert(ctx, opts, input, res, stdout); err != nil {
				return fmt.Errorf("%s: %w", input, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func load(input string, stdin io.Reader, opts []native.Option) (*native.Result, error) {
	if input == "-" {
		return native.ReadAll(stdin, opts...)
	}

	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return native.ReadFolder(func(name string) (io.ReadCloser, error) {
			return os.Open(filepath.Join(input, name))
		})
	}

	f, err := os.Open(input)
	if err != nil {
		return nil, err
	}
	rc, err := storage.Decompress(f, storage.CodecFromKey(input))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return native.ReadAll(rc, opts...)
}

func inspect(w io.Writer, input string, res *native.Result) error {
	fmt.Fprintf(w, "%s: %d rows, %d columns, %d blocks\n", input, res.NumRows, res.NumColumns(), res.Blocks)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tTYPE\tVECTOR\t")
	for _, f := range scan.Fields(res) {
		note := ""
		if f.Narrowed {
			note = " (wraps above 2^63-1)"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s%s\t\n", f.Name, f.Type, f.Kind, note)
	}
	return tw.Flush()
}

func outputName(input string, format exporter.Format) string {
	if input == "-" {
		return "stdin" + format.Extension()
	}
	base := filepath.Base(filepath.Clean(input))
	for _, ext := range []string{".gz", ".zst", ".sz", ".native", ".bin"} {
		base = strings.TrimSuffix(base, ext)
	}
	return base + format.Extension()
}

func convert(ctx context.Context, opts *options, input string, res *native.Result, stdout io.Writer) (err error) {
	w := stdout
	if opts.outDir != "" {
		f, createErr := os.Create(filepath.Join(opts.outDir, outputName(input, opts.format)))
		if createErr != nil {
			return createErr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	cur := scan.NewCursor(res)
	enc, err := exporter.NewEncoder(opts.format, w, cur.Fields())
	if err != nil {
		return err
	}

	stats, err := exporter.StreamBatches(ctx, cur, opts.batchSize, enc, nil)
	if cerr := enc.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	slog.Debug("Converted input", "input", input, "rows", stats.RowsProcessed, "batches", stats.Batches, "duration", stats.Duration)
	return nil
}
