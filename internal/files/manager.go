package files

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/dl-alexandre/drivepush/internal/api"
	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/types"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

const (
	listPageSize = 1000
	fileFields   = "id,name,mimeType,size,modifiedTime,parents,trashed"
	listFields   = "nextPageToken,incompleteSearch,files(" + fileFields + ")"
)

// Manager implements Remote on the Drive v3 API.
type Manager struct {
	client    *api.Client
	chunkSize int
}

var _ Remote = (*Manager)(nil)

// NewManager creates a new file manager. chunkSize <= 0 selects the default.
func NewManager(client *api.Client, chunkSize int) *Manager {
	if chunkSize <= 0 {
		chunkSize = utils.UploadChunkSize
	}
	return &Manager{client: client, chunkSize: chunkSize}
}

// List returns one page of entries matching q.
func (m *Manager) List(ctx context.Context, q Query, pageToken string) (*types.FileListResult, error) {
	reqCtx := api.NewRequestContext(types.RequestTypeListOrSearch)
	if q.ParentID != "" {
		m.client.WithParentIDs(reqCtx, q.ParentID)
	}

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func() (*drive.FileList, error) {
		call := m.client.Service().Files.List().
			Q(q.String()).
			PageSize(listPageSize).
			Fields(googleapi.Field(listFields)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		return call.Do()
	})
	if err != nil {
		return nil, err
	}

	files := make([]*types.DriveFile, len(result.Files))
	for i, f := range result.Files {
		files[i] = convertDriveFile(f)
	}

	return &types.FileListResult{
		Files:            files,
		NextPageToken:    result.NextPageToken,
		IncompleteSearch: result.IncompleteSearch,
	}, nil
}

// Create makes a folder (content nil) or uploads a new file.
func (m *Manager) Create(ctx context.Context, meta Metadata, content io.ReadSeeker) (*types.DriveFile, error) {
	reqType := types.RequestTypeMutation
	if content != nil {
		reqType = types.RequestTypeUpload
	}
	reqCtx := api.NewRequestContext(reqType)

	metadata := &drive.File{Name: meta.Name, MimeType: meta.MimeType}
	if meta.ParentID != "" {
		metadata.Parents = []string{meta.ParentID}
		m.client.WithParentIDs(reqCtx, meta.ParentID)
	}

	logger := m.client.Logger().WithTraceID(reqCtx.TraceID)

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func() (*drive.File, error) {
		call := m.client.Service().Files.Create(metadata).
			Fields(googleapi.Field(fileFields)).
			Context(ctx)
		if content != nil {
			if _, err := content.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewinding %s: %w", meta.Name, err)
			}
			call = call.Media(content, googleapi.ChunkSize(m.chunkSize)).
				ProgressUpdater(progressLogger(logger, meta.Name))
		}
		return call.Do()
	})
	if err != nil {
		return nil, err
	}
	return convertDriveFile(result), nil
}

// Update replaces the content of fileID.
func (m *Manager) Update(ctx context.Context, fileID string, content io.ReadSeeker) (*types.DriveFile, error) {
	reqCtx := m.client.WithFileIDs(api.NewRequestContext(types.RequestTypeUpload), fileID)
	logger := m.client.Logger().WithTraceID(reqCtx.TraceID)

	result, err := api.ExecuteWithRetry(ctx, m.client, reqCtx, func() (*drive.File, error) {
		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewinding %s: %w", fileID, err)
		}
		return m.client.Service().Files.Update(fileID, &drive.File{}).
			Media(content, googleapi.ChunkSize(m.chunkSize)).
			ProgressUpdater(progressLogger(logger, fileID)).
			Fields(googleapi.Field(fileFields)).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, err
	}
	return convertDriveFile(result), nil
}

func progressLogger(logger logging.Logger, name string) googleapi.ProgressUpdater {
	return func(current, total int64) {
		fields := []logging.Field{
			logging.F("name", name),
			logging.F("sent", humanize.IBytes(uint64(current))),
		}
		if total > 0 {
			fields = append(fields, logging.F("total", humanize.IBytes(uint64(total))))
		}
		logger.Debug("Upload progress", fields...)
	}
}

func convertDriveFile(f *drive.File) *types.DriveFile {
	return &types.DriveFile{
		ID:           f.Id,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Size:         f.Size,
		ModifiedTime: f.ModifiedTime,
		Parents:      f.Parents,
		Trashed:      f.Trashed,
	}
}
