package executor

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dl-alexandre/drivepush/internal/files"
	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/sync/diff"
	"github.com/dl-alexandre/drivepush/internal/sync/scanner"
)

// Executor carries out the actions of one directory, one at a time.
type Executor struct {
	remote files.Remote
	out    io.Writer
	logger logging.Logger
	dryRun bool
}

// Options configures an Executor.
type Options struct {
	// Out receives progress lines. Nil discards them.
	Out    io.Writer
	Logger logging.Logger
	DryRun bool
}

// Summary counts what Apply did.
type Summary struct {
	Uploaded int
	Updated  int
	Skipped  int
	// Bytes is the local size of everything uploaded or updated.
	Bytes int64
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.Uploaded += other.Uploaded
	s.Updated += other.Updated
	s.Skipped += other.Skipped
	s.Bytes += other.Bytes
}

// New creates an executor writing to remote.
func New(remote files.Remote, opts Options) *Executor {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Executor{remote: remote, out: out, logger: logger, dryRun: opts.DryRun}
}

// Apply runs actions for dir, whose remote counterpart is folderID. It
// stops at the first failure; work already done stays done.
func (e *Executor) Apply(ctx context.Context, dir scanner.Directory, folderID string, actions []diff.Action) (Summary, error) {
	summary := Summary{}
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		switch action.Decision {
		case diff.DecisionCreate:
			if err := e.create(ctx, dir, folderID, action.Local); err != nil {
				return summary, err
			}
			summary.Uploaded++
			summary.Bytes += action.Local.Size
		case diff.DecisionUpdate:
			if err := e.update(ctx, dir, action.Local, action.Remote); err != nil {
				return summary, err
			}
			summary.Updated++
			summary.Bytes += action.Local.Size
		case diff.DecisionSkip:
			fmt.Fprintf(e.out, "'%s' in '%s' is up-to-date.\n", action.Local.Name, dir.RelativePath)
			summary.Skipped++
		default:
			return summary, fmt.Errorf("unknown decision %q for %s", action.Decision, action.Local.RelativePath)
		}
	}
	return summary, nil
}

func (e *Executor) create(ctx context.Context, dir scanner.Directory, folderID string, local scanner.LocalEntry) error {
	if e.dryRun {
		fmt.Fprintf(e.out, "Would upload new file: '%s' to '%s'\n", local.Name, dir.RelativePath)
		return nil
	}

	fmt.Fprintf(e.out, "Uploading new file: '%s' to '%s'...\n", local.Name, dir.RelativePath)
	var id string
	err := withFile(local.AbsPath, func(f *os.File) error {
		created, err := e.remote.Create(ctx, files.Metadata{Name: local.Name, ParentID: folderID}, f)
		if err != nil {
			return err
		}
		id = created.ID
		return nil
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", local.RelativePath, err)
	}

	e.logger.Debug("File uploaded",
		logging.F("path", local.RelativePath),
		logging.F("id", id),
		logging.F("parentId", folderID),
		logging.F("size", local.Size),
	)
	fmt.Fprintf(e.out, "Uploaded '%s' with ID: %s\n", local.Name, id)
	return nil
}

func (e *Executor) update(ctx context.Context, dir scanner.Directory, local scanner.LocalEntry, remote *scanner.RemoteEntry) error {
	if e.dryRun {
		fmt.Fprintf(e.out, "Would update '%s' in '%s' (local is newer)\n", local.Name, dir.RelativePath)
		return nil
	}

	fmt.Fprintf(e.out, "Updating '%s' in '%s' (local is newer)...\n", local.Name, dir.RelativePath)
	err := withFile(local.AbsPath, func(f *os.File) error {
		_, err := e.remote.Update(ctx, remote.ID, f)
		return err
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", local.RelativePath, err)
	}

	e.logger.Debug("File updated",
		logging.F("path", local.RelativePath),
		logging.F("id", remote.ID),
		logging.F("remoteModifiedTime", remote.ModifiedTime),
		logging.F("size", local.Size),
	)
	return nil
}

func withFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(f)
}
