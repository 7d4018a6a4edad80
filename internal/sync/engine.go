package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dl-alexandre/drivepush/internal/files"
	"github.com/dl-alexandre/drivepush/internal/folders"
	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/sync/diff"
	"github.com/dl-alexandre/drivepush/internal/sync/exclude"
	"github.com/dl-alexandre/drivepush/internal/sync/executor"
	"github.com/dl-alexandre/drivepush/internal/sync/scanner"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// ErrLocalRootMissing is wrapped by the error returned when the local
// root does not exist or is not a directory.
var ErrLocalRootMissing = errors.New("local root missing")

// Options describes one push.
type Options struct {
	LocalRoot string
	// RemoteFolder names the top-level Drive folder. Empty uses the base
	// name of LocalRoot.
	RemoteFolder string
	Exclude      []string
	DryRun       bool

	// Out receives progress lines. Nil discards them.
	Out    io.Writer
	Logger logging.Logger
}

// Summary totals a run.
type Summary struct {
	LocalRoot      string
	RemoteFolder   string
	RemoteFolderID string
	Directories    int
	FoldersCreated int
	Uploaded       int
	Updated        int
	Skipped        int
	Excluded       int
	Bytes          int64
	DryRun         bool
	Duration       time.Duration
}

// Engine pushes a local tree into Drive.
type Engine struct {
	remote files.Remote
	opts   Options
	out    io.Writer
	logger logging.Logger
}

// NewEngine creates an engine writing to remote.
func NewEngine(remote files.Remote, opts Options) *Engine {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Engine{remote: remote, opts: opts, out: out, logger: logger}
}

// CheckLocalRoot returns the absolute, symlink-resolved form of root, or an
// INVALID_PATH error wrapping ErrLocalRootMissing when it is not an existing
// directory.
func CheckLocalRoot(root string) (string, error) {
	if root == "" {
		return "", localRootError(root, "no local folder configured")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", localRootError(root, err.Error())
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", localRootError(abs, fmt.Sprintf("Local folder '%s' does not exist.", abs))
		}
		return "", localRootError(abs, err.Error())
	}
	if !info.IsDir() {
		return "", localRootError(abs, fmt.Sprintf("Local path '%s' is not a folder.", abs))
	}
	// WalkDir does not follow a symlinked root.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", localRootError(abs, err.Error())
	}
	return resolved, nil
}

// localRootName is the base name of root as configured, before symlinks
// are resolved.
func localRootName(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return filepath.Base(root)
}

func localRootError(path, msg string) error {
	return utils.WrapAppError(
		utils.NewCLIError(utils.ErrCodeInvalidPath, msg).
			WithContext("localRoot", path).
			WithContext("suggestedAction", "create the folder or update local_root in the configuration").
			Build(),
		ErrLocalRootMissing,
	)
}

// Run performs the push. It validates the local root before any remote
// call, ensures the base folder, then walks the tree in pre-order,
// resolving each directory's folder and reconciling its files. The first
// error aborts the run; the returned summary covers the work done so far.
func (e *Engine) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	summary = Summary{DryRun: e.opts.DryRun}

	root, err := CheckLocalRoot(e.opts.LocalRoot)
	if err != nil {
		return summary, err
	}
	summary.LocalRoot = root

	matcher := exclude.New(e.opts.Exclude)
	if err := matcher.Validate(); err != nil {
		return summary, utils.WrapAppError(
			utils.NewCLIError(utils.ErrCodeInvalidArgument, err.Error()).Build(), err)
	}

	resolver := folders.NewResolver(e.remote, folders.Options{
		Out:    e.out,
		Logger: e.logger,
		DryRun: e.opts.DryRun,
	})
	exec := executor.New(e.remote, executor.Options{
		Out:    e.out,
		Logger: e.logger,
		DryRun: e.opts.DryRun,
	})

	rootName := localRootName(e.opts.LocalRoot)
	baseName := e.opts.RemoteFolder
	if baseName == "" {
		baseName = rootName
	}
	summary.RemoteFolder = baseName

	defer func() {
		summary.FoldersCreated = resolver.Created()
		summary.Duration = time.Since(start)
	}()

	baseID, err := resolver.EnsureBase(ctx, baseName)
	if err != nil {
		return summary, err
	}
	summary.RemoteFolderID = baseID

	e.logger.Info("Push started",
		logging.F("localRoot", root),
		logging.F("remoteFolder", baseName),
		logging.F("remoteFolderId", baseID),
		logging.F("dryRun", e.opts.DryRun),
	)
	fmt.Fprintf(e.out, "\n--- Syncing '%s' to Drive ---\n", rootName)

	tree, err := scanner.ScanLocal(ctx, root, matcher, e.logger)
	if err != nil {
		return summary, fmt.Errorf("scanning %s: %w", root, err)
	}
	summary.Excluded = tree.Excluded

	var totals executor.Summary
	for _, dir := range tree.Directories {
		if err := ctx.Err(); err != nil {
			return e.finish(summary, totals), err
		}

		folderID, err := resolver.ResolvePath(ctx, root, dir.AbsPath, baseID)
		if err != nil {
			return e.finish(summary, totals), err
		}

		remote := map[string]scanner.RemoteEntry{}
		if !folders.IsPlaceholder(folderID) {
			if remote, err = scanner.ListFolderFiles(ctx, e.remote, folderID); err != nil {
				return e.finish(summary, totals), err
			}
		}

		actions, err := diff.Compute(dir.Files, remote)
		if err != nil {
			return e.finish(summary, totals), err
		}

		dirSummary, err := exec.Apply(ctx, dir, folderID, actions)
		totals.Add(dirSummary)
		if err != nil {
			return e.finish(summary, totals), err
		}
		summary.Directories++

		e.logger.Debug("Directory reconciled",
			logging.F("path", dir.RelativePath),
			logging.F("folderId", folderID),
			logging.F("files", len(dir.Files)),
		)
	}

	fmt.Fprintf(e.out, "--- Sync for '%s' complete! ---\n", rootName)
	summary = e.finish(summary, totals)
	e.logger.Info("Push finished",
		logging.F("uploaded", summary.Uploaded),
		logging.F("updated", summary.Updated),
		logging.F("skipped", summary.Skipped),
		logging.F("bytes", summary.Bytes),
	)
	return summary, nil
}

func (e *Engine) finish(summary Summary, totals executor.Summary) Summary {
	summary.Uploaded = totals.Uploaded
	summary.Updated = totals.Updated
	summary.Skipped = totals.Skipped
	summary.Bytes = totals.Bytes
	return summary
}
