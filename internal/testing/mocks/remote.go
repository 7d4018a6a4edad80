package mocks

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dl-alexandre/drivepush/internal/files"
	"github.com/dl-alexandre/drivepush/internal/types"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// Call records one Remote invocation.
type Call struct {
	Op       string // "list", "create" or "update"
	Query    string
	Name     string
	ParentID string
	FileID   string
}

// Entry is a stored remote object.
type Entry struct {
	types.DriveFile
	Content []byte
}

// Remote is an in-memory files.Remote.
type Remote struct {
	// PageSize caps List pages. Zero means unlimited.
	PageSize int
	// Now stamps ModifiedTime on writes.
	Now func() time.Time

	// Hooks run before the operation; a non-nil error is returned as is.
	ListHook   func(q files.Query) error
	CreateHook func(meta files.Metadata) error
	UpdateHook func(fileID string) error

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	next    int
	calls   []Call
}

var _ files.Remote = (*Remote)(nil)

// NewRemote creates an empty Remote.
func NewRemote() *Remote {
	return &Remote{
		Now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// AddFolder seeds a folder and returns its id.
func (r *Remote) AddFolder(name, parentID string) string {
	return r.add(name, parentID, utils.MimeTypeFolder, nil, r.stamp())
}

// AddFile seeds a file with a raw modifiedTime string and returns its id.
func (r *Remote) AddFile(name, parentID, content, modifiedTime string) string {
	return r.add(name, parentID, "text/plain", []byte(content), modifiedTime)
}

func (r *Remote) add(name, parentID, mimeType string, content []byte, modified string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(name, parentID, mimeType, content, modified).ID
}

func (r *Remote) insertLocked(name, parentID, mimeType string, content []byte, modified string) *Entry {
	r.next++
	e := &Entry{
		DriveFile: types.DriveFile{
			ID:           fmt.Sprintf("%s-%d", kindPrefix(mimeType), r.next),
			Name:         name,
			MimeType:     mimeType,
			Size:         int64(len(content)),
			ModifiedTime: modified,
		},
		Content: content,
	}
	if parentID != "" {
		e.Parents = []string{parentID}
	}
	r.entries[e.ID] = e
	r.order = append(r.order, e.ID)
	return e
}

func kindPrefix(mimeType string) string {
	if mimeType == utils.MimeTypeFolder {
		return "folder"
	}
	return "file"
}

func (r *Remote) stamp() string {
	return r.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// Trash marks id as trashed.
func (r *Remote) Trash(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.Trashed = true
	}
}

// Get returns a copy of the entry with id, or nil.
func (r *Remote) Get(id string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

// Children returns copies of the non-trashed entries directly inside
// parentID. An empty parentID selects entries without parents.
func (r *Remote) Children(parentID string) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, id := range r.order {
		e := r.entries[id]
		if e.Trashed {
			continue
		}
		if hasParent(e, parentID) || (parentID == "" && len(e.Parents) == 0) {
			out = append(out, *e)
		}
	}
	return out
}

// Lookup walks slash-separated names from parentID and returns the final entry.
func (r *Remote) Lookup(parentID, path string) *Entry {
	current := parentID
	var found *Entry
	for _, name := range strings.Split(path, "/") {
		found = nil
		for _, e := range r.Children(current) {
			if e.Name == name {
				e := e
				found = &e
				break
			}
		}
		if found == nil {
			return nil
		}
		current = found.ID
	}
	return found
}

// Len returns the number of entries, trashed included.
func (r *Remote) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Calls returns the recorded invocations.
func (r *Remote) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallCount counts recorded invocations of op.
func (r *Remote) CallCount(op string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls forgets recorded invocations.
func (r *Remote) ResetCalls() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func hasParent(e *Entry, parentID string) bool {
	for _, p := range e.Parents {
		if p == parentID {
			return true
		}
	}
	return false
}

func (r *Remote) List(ctx context.Context, q files.Query, pageToken string) (*types.FileListResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: "list", Query: q.String(), Name: q.Name, ParentID: q.ParentID})
	r.mu.Unlock()

	if r.ListHook != nil {
		if err := r.ListHook(q); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*types.DriveFile
	for _, id := range r.order {
		e := r.entries[id]
		if e.Trashed {
			continue
		}
		if q.Name != "" && e.Name != q.Name {
			continue
		}
		if q.ParentID != "" && !hasParent(e, q.ParentID) {
			continue
		}
		isFolder := e.MimeType == utils.MimeTypeFolder
		if (q.Kind == files.KindFolder && !isFolder) || (q.Kind == files.KindFile && isFolder) {
			continue
		}
		f := e.DriveFile
		matched = append(matched, &f)
	}

	offset := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("bad page token %q", pageToken)
		}
		offset = n
	}
	end := len(matched)
	if r.PageSize > 0 && offset+r.PageSize < end {
		end = offset + r.PageSize
	}

	result := &types.FileListResult{Files: matched[offset:end]}
	if end < len(matched) {
		result.NextPageToken = strconv.Itoa(end)
	}
	return result, nil
}

func (r *Remote) Create(ctx context.Context, meta files.Metadata, content io.ReadSeeker) (*types.DriveFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: "create", Name: meta.Name, ParentID: meta.ParentID})
	r.mu.Unlock()

	if r.CreateHook != nil {
		if err := r.CreateHook(meta); err != nil {
			return nil, err
		}
	}

	var data []byte
	if content != nil {
		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		var err error
		if data, err = io.ReadAll(content); err != nil {
			return nil, err
		}
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.insertLocked(meta.Name, meta.ParentID, mimeType, data, r.stamp())
	f := e.DriveFile
	return &f, nil
}

func (r *Remote) Update(ctx context.Context, fileID string, content io.ReadSeeker) (*types.DriveFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.calls = append(r.calls, Call{Op: "update", FileID: fileID})
	r.mu.Unlock()

	if r.UpdateHook != nil {
		if err := r.UpdateHook(fileID); err != nil {
			return nil, err
		}
	}

	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s not found", fileID)
	}
	e.Content = data
	e.Size = int64(len(data))
	e.ModifiedTime = r.stamp()
	f := e.DriveFile
	return &f, nil
}
