package files

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dl-alexandre/drivepush/internal/types"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// Kind restricts a Query by folder-ness.
type Kind int

const (
	KindAny Kind = iota
	KindFolder
	KindFile
)

// Query selects non-trashed entries for a single listing call.
type Query struct {
	Name     string
	ParentID string
	Kind     Kind
}

// String renders the Drive search expression, e.g.
// name='a' and mimeType='application/vnd.google-apps.folder' and trashed=false and 'p' in parents
func (q Query) String() string {
	clauses := make([]string, 0, 4)
	if q.Name != "" {
		clauses = append(clauses, fmt.Sprintf("name='%s'", EscapeQueryValue(q.Name)))
	}
	switch q.Kind {
	case KindFolder:
		clauses = append(clauses, fmt.Sprintf("mimeType='%s'", utils.MimeTypeFolder))
	case KindFile:
		clauses = append(clauses, fmt.Sprintf("mimeType!='%s'", utils.MimeTypeFolder))
	}
	clauses = append(clauses, "trashed=false")
	if q.ParentID != "" {
		clauses = append(clauses, fmt.Sprintf("'%s' in parents", EscapeQueryValue(q.ParentID)))
	}
	return strings.Join(clauses, " and ")
}

// EscapeQueryValue escapes backslashes and single quotes for a quoted query literal.
func EscapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// Metadata describes an entry to create.
type Metadata struct {
	Name     string
	MimeType string
	// ParentID may be empty, which places the entry in My Drive.
	ParentID string
}

// Remote is the storage surface a push needs.
type Remote interface {
	// List returns one page of entries matching q.
	List(ctx context.Context, q Query, pageToken string) (*types.FileListResult, error)
	// Create makes a new entry. content is nil for folders and is rewound before each attempt.
	Create(ctx context.Context, meta Metadata, content io.ReadSeeker) (*types.DriveFile, error)
	// Update replaces the content of an existing entry, keeping its id and name.
	Update(ctx context.Context, fileID string, content io.ReadSeeker) (*types.DriveFile, error)
}

// ListAll follows nextPageToken until the listing is exhausted.
func ListAll(ctx context.Context, r Remote, q Query) ([]*types.DriveFile, error) {
	var all []*types.DriveFile
	pageToken := ""
	for {
		page, err := r.List(ctx, q, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Files...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}
