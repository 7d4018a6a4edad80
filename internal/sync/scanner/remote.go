package scanner

import (
	"context"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/dl-alexandre/drivepush/internal/files"
)

// ListFolderFiles returns the non-trashed, non-folder entries directly
// inside folderID keyed by NFC-normalized name. When several entries
// share a name the one listed last wins.
func ListFolderFiles(ctx context.Context, remote files.Remote, folderID string) (map[string]RemoteEntry, error) {
	listed, err := files.ListAll(ctx, remote, files.Query{ParentID: folderID, Kind: files.KindFile})
	if err != nil {
		return nil, fmt.Errorf("listing folder %s: %w", folderID, err)
	}

	entries := make(map[string]RemoteEntry, len(listed))
	for _, f := range listed {
		name := norm.NFC.String(f.Name)
		entries[name] = RemoteEntry{
			Name:         name,
			ID:           f.ID,
			ModifiedTime: f.ModifiedTime,
			MimeType:     f.MimeType,
			Size:         f.Size,
		}
	}
	return entries, nil
}
