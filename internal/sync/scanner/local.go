package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/text/unicode/norm"

	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/sync/exclude"
)

// ScanLocal enumerates root in pre-order. Hidden entries are included.
// Symlinks to files are followed; symlinks to directories are not
// descended. Unreadable subdirectories are skipped with a warning.
func ScanLocal(ctx context.Context, root string, matcher *exclude.Matcher, logger logging.Logger) (*Tree, error) {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	tree := &Tree{}
	dirIndex := make(map[string]int)

	err := filepath.WalkDir(root, func(current string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, current)
		if err != nil {
			return err
		}

		if walkErr != nil {
			if rel == "." || d == nil || !d.IsDir() {
				return walkErr
			}
			logger.Warn("Skipping unreadable directory",
				logging.F("path", current),
				logging.F("error", walkErr.Error()),
			)
			if last := len(tree.Directories) - 1; last >= 0 && tree.Directories[last].AbsPath == current {
				tree.Directories = tree.Directories[:last]
				delete(dirIndex, rel)
			}
			return filepath.SkipDir
		}

		if d.IsDir() {
			if rel != "." && matcher.IsExcluded(filepath.ToSlash(rel), true) {
				logger.Debug("Excluded directory", logging.F("path", rel))
				tree.Excluded++
				return filepath.SkipDir
			}
			dirIndex[rel] = len(tree.Directories)
			tree.Directories = append(tree.Directories, Directory{
				RelativePath: rel,
				AbsPath:      current,
			})
			return nil
		}

		if matcher.IsExcluded(filepath.ToSlash(rel), false) {
			logger.Debug("Excluded file", logging.F("path", rel))
			tree.Excluded++
			return nil
		}

		info, err := os.Stat(current)
		if err != nil {
			if d.Type()&fs.ModeSymlink != 0 && errors.Is(err, fs.ErrNotExist) {
				logger.Warn("Skipping broken symlink", logging.F("path", current))
				return nil
			}
			return err
		}
		if info.IsDir() {
			logger.Debug("Not descending into symlinked directory", logging.F("path", current))
			return nil
		}
		if !info.Mode().IsRegular() {
			logger.Debug("Skipping special file", logging.F("path", current))
			return nil
		}

		idx, ok := dirIndex[filepath.Dir(rel)]
		if !ok {
			return nil
		}
		tree.Directories[idx].Files = append(tree.Directories[idx].Files, LocalEntry{
			RelativePath: rel,
			AbsPath:      current,
			Name:         norm.NFC.String(d.Name()),
			Size:         info.Size(),
			ModTime:      info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tree, nil
}
