package worker

import (
	"context"
	"errors"
	"fmt"

	"native-exporter/internal/driver"
	"native-exporter/internal/native"
	"native-exporter/internal/storage"
)

var ErrNoRemote = errors.New("no remote database configured")

// Loader materializes a job's source.
type Loader interface {
	Load(ctx context.Context, src Source) (*native.Result, error)
}

// SourceLoader reads file and folder sources from storage and runs remote
// sources against a driver.
type SourceLoader struct {
	Storage storage.Provider
	// Remote is optional; remote sources fail with ErrNoRemote without it.
	Remote driver.Driver
	// Defaults apply to every file source before its own settings.
	Defaults []native.Option
}

func (l *SourceLoader) Load(ctx context.Context, src Source) (*native.Result, error) {
	switch src.Kind {
	case SourceFile:
		opts, err := src.Options(l.Defaults...)
		if err != nil {
			return nil, err
		}
		rc, err := storage.OpenSource(ctx, l.Storage, src.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to open source %s: %w", src.Key, err)
		}
		defer rc.Close()
		return native.ReadAll(rc, opts...)

	case SourceFolder:
		return native.ReadFolder(storage.FolderOpener(ctx, l.Storage, src.Key))

	case SourceRemote:
		if l.Remote == nil {
			return nil, ErrNoRemote
		}
		return driver.FetchBlock(ctx, l.Remote, src.Query)

	default:
		return nil, fmt.Errorf("%w: %q cannot be loaded locally", ErrInvalidSource, src.Kind)
	}
}
