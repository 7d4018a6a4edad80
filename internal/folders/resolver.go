package folders

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dl-alexandre/drivepush/internal/files"
	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// dryRunPrefix marks ids of folders that a dry run would have created.
const dryRunPrefix = "dry-run:"

// Options configures a Resolver.
type Options struct {
	// Out receives progress lines. Nil discards them.
	Out    io.Writer
	Logger logging.Logger
	// DryRun reports folder creation without performing it.
	DryRun bool
}

type cacheKey struct {
	parentID string
	name     string
}

// Resolver maps local directories onto remote folder ids, creating
// missing folders on the way. A Resolver lives for a single run.
type Resolver struct {
	remote files.Remote
	out    io.Writer
	logger logging.Logger
	dryRun bool

	cache   map[cacheKey]string
	created int
	pending int
}

// NewResolver creates a resolver over remote.
func NewResolver(remote files.Remote, opts Options) *Resolver {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Resolver{
		remote: remote,
		out:    out,
		logger: logger,
		dryRun: opts.DryRun,
		cache:  make(map[cacheKey]string),
	}
}

// Created returns how many folders this resolver created, or would have
// created in dry-run mode.
func (r *Resolver) Created() int {
	return r.created
}

// IsPlaceholder reports whether id stands for a folder that only exists in a dry run.
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, dryRunPrefix)
}

// Find returns the id of the first non-trashed folder called name inside
// parentID, or "" when there is none. An empty parentID searches everywhere.
func (r *Resolver) Find(ctx context.Context, name, parentID string) (string, error) {
	if IsPlaceholder(parentID) {
		return "", nil
	}

	q := files.Query{Name: name, ParentID: parentID, Kind: files.KindFolder}
	pageToken := ""
	for {
		page, err := r.remote.List(ctx, q, pageToken)
		if err != nil {
			return "", fmt.Errorf("finding folder %q: %w", name, err)
		}
		if len(page.Files) > 0 {
			return page.Files[0].ID, nil
		}
		if page.NextPageToken == "" {
			return "", nil
		}
		pageToken = page.NextPageToken
	}
}

// Create makes a folder called name inside parentID without checking for
// an existing one. An empty parentID creates it in My Drive.
func (r *Resolver) Create(ctx context.Context, name, parentID string) (string, error) {
	r.created++
	if r.dryRun {
		r.pending++
		id := fmt.Sprintf("%s%d", dryRunPrefix, r.pending)
		fmt.Fprintf(r.out, "Would create folder '%s'\n", name)
		return id, nil
	}

	f, err := r.remote.Create(ctx, files.Metadata{
		Name:     name,
		MimeType: utils.MimeTypeFolder,
		ParentID: parentID,
	}, nil)
	if err != nil {
		r.created--
		return "", fmt.Errorf("creating folder %q: %w", name, err)
	}

	r.logger.Debug("Folder created",
		logging.F("name", name),
		logging.F("id", f.ID),
		logging.F("parentId", parentID),
	)
	fmt.Fprintf(r.out, "Created folder '%s' with ID: %s\n", name, f.ID)
	return f.ID, nil
}

// EnsureBase finds the top-level folder name anywhere in Drive, creating it
// in My Drive when it does not exist.
func (r *Resolver) EnsureBase(ctx context.Context, name string) (string, error) {
	name = norm.NFC.String(name)
	id, err := r.Find(ctx, name, "")
	if err != nil {
		return "", err
	}
	if id != "" {
		fmt.Fprintf(r.out, "Found existing Drive folder '%s' with ID: %s\n", name, id)
		return id, nil
	}

	fmt.Fprintf(r.out, "Target folder '%s' not found on Google Drive. Creating it...\n", name)
	return r.Create(ctx, name, "")
}

// ResolvePath returns the remote folder id mirroring localPath, a
// directory at or below root. Each path segment is looked up under its
// parent and created when missing. localPath equal to root resolves to
// baseID without any remote call.
func (r *Resolver) ResolvePath(ctx context.Context, root, localPath, baseID string) (string, error) {
	rel, err := filepath.Rel(root, localPath)
	if err != nil {
		return "", fmt.Errorf("relating %s to %s: %w", localPath, root, err)
	}
	if rel == "." {
		return baseID, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", localPath, root)
	}

	current := baseID
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if segment == "" {
			continue
		}
		segment = norm.NFC.String(segment)
		key := cacheKey{parentID: current, name: segment}
		if id, ok := r.cache[key]; ok {
			current = id
			continue
		}

		id, err := r.Find(ctx, segment, current)
		if err != nil {
			return "", err
		}
		if id == "" {
			if id, err = r.Create(ctx, segment, current); err != nil {
				return "", err
			}
		}
		r.cache[key] = id
		current = id
	}
	return current, nil
}
