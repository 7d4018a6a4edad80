package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// ServerFile is an entry held by DriveServer.
type ServerFile struct {
	ID           string
	Name         string
	MimeType     string
	ModifiedTime string
	Parents      []string
	Trashed      bool
	Content      []byte
}

// DriveServer fakes the subset of Drive v3 used by drivepush: files.list with
// q/pageToken, metadata-only files.create, and multipart or resumable uploads
// for files.create and files.update.
type DriveServer struct {
	*httptest.Server

	// PageSize caps list responses. Zero returns everything in one page.
	PageSize int
	// Now stamps modifiedTime on writes.
	Now func() time.Time

	mu       sync.Mutex
	files    map[string]*ServerFile
	order    []string
	next     int
	sessions map[string]*uploadSession
	requests []string
}

type uploadSession struct {
	fileID string
	meta   fileMeta
	buf    []byte
}

type fileMeta struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType"`
	Parents  []string `json:"parents"`
}

// NewDriveServer starts a fake Drive API that is closed with the test.
func NewDriveServer(t *testing.T) *DriveServer {
	t.Helper()
	s := &DriveServer{
		Now:      time.Now,
		files:    make(map[string]*ServerFile),
		sessions: make(map[string]*uploadSession),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint is the base path to hand to option.WithEndpoint.
func (s *DriveServer) Endpoint() string {
	return s.URL + "/drive/v3/"
}

// Service returns a Drive client bound to the fake.
func (s *DriveServer) Service(t *testing.T) *drive.Service {
	t.Helper()
	svc, err := drive.NewService(context.Background(),
		option.WithEndpoint(s.Endpoint()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("drive.NewService: %v", err)
	}
	return svc
}

// Seed inserts f and returns its id.
func (s *DriveServer) Seed(f ServerFile) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = s.newIDLocked()
	}
	if f.ModifiedTime == "" {
		f.ModifiedTime = s.stampLocked()
	}
	s.files[f.ID] = &f
	s.order = append(s.order, f.ID)
	return f.ID
}

// File returns a copy of the entry with id, or nil.
func (s *DriveServer) File(id string) *ServerFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil
	}
	cp := *f
	return &cp
}

// Named returns copies of all entries called name, in creation order.
func (s *DriveServer) Named(name string) []ServerFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ServerFile
	for _, id := range s.order {
		if f := s.files[id]; f.Name == name {
			out = append(out, *f)
		}
	}
	return out
}

// Len returns the number of stored entries.
func (s *DriveServer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

// Requests returns "METHOD /path uploadType" lines for every request served.
func (s *DriveServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *DriveServer) newIDLocked() string {
	s.next++
	return fmt.Sprintf("id-%04d", s.next)
}

func (s *DriveServer) stampLocked() string {
	return s.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (s *DriveServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, strings.TrimSpace(r.Method+" "+r.URL.Path+" "+r.URL.Query().Get("uploadType")))

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/upload/session/"):
		s.handleChunk(w, r, strings.TrimPrefix(path, "/upload/session/"))
	case strings.Contains(path, "/upload/"):
		s.handleUpload(w, r, fileIDFromPath(path))
	case strings.HasSuffix(path, "/files") && r.Method == http.MethodGet:
		s.handleList(w, r)
	case strings.HasSuffix(path, "/files") && r.Method == http.MethodPost:
		var meta fileMeta
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, s.createLocked(meta, nil))
	default:
		writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+path)
	}
}

func fileIDFromPath(path string) string {
	idx := strings.LastIndex(path, "/files")
	if idx < 0 {
		return ""
	}
	return strings.Trim(path[idx+len("/files"):], "/")
}

func (s *DriveServer) createLocked(meta fileMeta, content []byte) *ServerFile {
	f := &ServerFile{
		ID:           s.newIDLocked(),
		Name:         meta.Name,
		MimeType:     meta.MimeType,
		Parents:      meta.Parents,
		ModifiedTime: s.stampLocked(),
		Content:      content,
	}
	if f.MimeType == "" {
		f.MimeType = "application/octet-stream"
	}
	if len(f.Parents) == 0 {
		f.Parents = []string{"root"}
	}
	s.files[f.ID] = f
	s.order = append(s.order, f.ID)
	return f
}

func (s *DriveServer) updateLocked(id string, content []byte) (*ServerFile, bool) {
	f, ok := s.files[id]
	if !ok {
		return nil, false
	}
	f.Content = content
	f.ModifiedTime = s.stampLocked()
	return f, true
}

func (s *DriveServer) handleList(w http.ResponseWriter, r *http.Request) {
	clauses, err := parseQuery(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var matched []*ServerFile
	for _, id := range s.order {
		f := s.files[id]
		if matches(f, clauses) {
			matched = append(matched, f)
		}
	}

	offset := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		offset, err = strconv.Atoi(strings.TrimPrefix(tok, "page-"))
		if err != nil || offset > len(matched) {
			writeError(w, http.StatusBadRequest, "bad pageToken")
			return
		}
	}

	end := len(matched)
	if s.PageSize > 0 && offset+s.PageSize < end {
		end = offset + s.PageSize
	}

	out := map[string]interface{}{"files": encodeFiles(matched[offset:end])}
	if end < len(matched) {
		out["nextPageToken"] = fmt.Sprintf("page-%d", end)
	}
	writeJSON(w, out)
}

func (s *DriveServer) handleUpload(w http.ResponseWriter, r *http.Request, fileID string) {
	if fileID != "" {
		if _, ok := s.files[fileID]; !ok {
			writeError(w, http.StatusNotFound, "File not found: "+fileID)
			return
		}
	}

	switch r.URL.Query().Get("uploadType") {
	case "multipart":
		meta, content, err := readMultipart(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if fileID != "" {
			f, _ := s.updateLocked(fileID, content)
			writeJSON(w, f)
			return
		}
		writeJSON(w, s.createLocked(meta, content))
	case "resumable":
		var meta fileMeta
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sid := fmt.Sprintf("s%d", len(s.sessions)+1)
		s.sessions[sid] = &uploadSession{fileID: fileID, meta: meta}
		w.Header().Set("Location", s.URL+"/upload/session/"+sid)
		w.WriteHeader(http.StatusOK)
	default:
		writeError(w, http.StatusBadRequest, "unsupported uploadType")
	}
}

func (s *DriveServer) handleChunk(w http.ResponseWriter, r *http.Request, sid string) {
	sess, ok := s.sessions[sid]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown upload session")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess.buf = append(sess.buf, data...)

	total := int64(-1)
	if cr := r.Header.Get("Content-Range"); cr != "" {
		if i := strings.LastIndex(cr, "/"); i >= 0 && cr[i+1:] != "*" {
			total, _ = strconv.ParseInt(cr[i+1:], 10, 64)
		}
	}

	if total < 0 || int64(len(sess.buf)) < total {
		w.Header().Set("X-Http-Status-Code-Override", "308")
		if len(sess.buf) > 0 {
			w.Header().Set("Range", fmt.Sprintf("bytes=0-%d", len(sess.buf)-1))
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	delete(s.sessions, sid)
	if sess.fileID != "" {
		f, ok := s.updateLocked(sess.fileID, sess.buf)
		if !ok {
			writeError(w, http.StatusNotFound, "File not found: "+sess.fileID)
			return
		}
		writeJSON(w, f)
		return
	}
	writeJSON(w, s.createLocked(sess.meta, sess.buf))
}

func readMultipart(r *http.Request) (fileMeta, []byte, error) {
	var meta fileMeta
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return meta, nil, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	part, err := mr.NextPart()
	if err != nil {
		return meta, nil, fmt.Errorf("metadata part: %w", err)
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil && err != io.EOF {
		return meta, nil, fmt.Errorf("metadata json: %w", err)
	}

	part, err = mr.NextPart()
	if err != nil {
		return meta, nil, fmt.Errorf("media part: %w", err)
	}
	content, err := io.ReadAll(part)
	if err != nil {
		return meta, nil, err
	}
	return meta, content, nil
}

func encodeFile(f *ServerFile) map[string]interface{} {
	return map[string]interface{}{
		"id":           f.ID,
		"name":         f.Name,
		"mimeType":     f.MimeType,
		"modifiedTime": f.ModifiedTime,
		"parents":      f.Parents,
		"trashed":      f.Trashed,
		"size":         strconv.Itoa(len(f.Content)),
	}
}

func encodeFiles(fs []*ServerFile) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(fs))
	for _, f := range fs {
		out = append(out, encodeFile(f))
	}
	return out
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if f, ok := v.(*ServerFile); ok {
		v = encodeFile(f)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": code, "message": msg},
	})
}

// queryClause is one "field op value" term of a Drive search expression.
type queryClause struct {
	field string
	op    string
	value string
}

// parseQuery understands the and-joined subset drivepush emits:
// name='x', mimeType='x', mimeType!='x', trashed=false and 'id' in parents.
func parseQuery(q string) ([]queryClause, error) {
	var clauses []queryClause
	p := &queryParser{s: q}
	for {
		p.skipSpace()
		if p.done() {
			return clauses, nil
		}
		c, err := p.clause()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
		p.skipSpace()
		if p.done() {
			return clauses, nil
		}
		if !p.consume("and") {
			return nil, fmt.Errorf("expected 'and' at %d in %q", p.i, q)
		}
	}
}

type queryParser struct {
	s string
	i int
}

func (p *queryParser) done() bool { return p.i >= len(p.s) }

func (p *queryParser) skipSpace() {
	for !p.done() && p.s[p.i] == ' ' {
		p.i++
	}
}

func (p *queryParser) consume(word string) bool {
	if strings.HasPrefix(p.s[p.i:], word) {
		p.i += len(word)
		return true
	}
	return false
}

func (p *queryParser) quoted() (string, error) {
	if p.done() || p.s[p.i] != '\'' {
		return "", fmt.Errorf("expected quote at %d", p.i)
	}
	p.i++
	var sb strings.Builder
	for !p.done() {
		c := p.s[p.i]
		switch c {
		case '\\':
			if p.i+1 >= len(p.s) {
				return "", fmt.Errorf("dangling escape")
			}
			sb.WriteByte(p.s[p.i+1])
			p.i += 2
		case '\'':
			p.i++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			p.i++
		}
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *queryParser) clause() (queryClause, error) {
	if !p.done() && p.s[p.i] == '\'' {
		v, err := p.quoted()
		if err != nil {
			return queryClause{}, err
		}
		p.skipSpace()
		if !p.consume("in parents") {
			return queryClause{}, fmt.Errorf("expected 'in parents' at %d", p.i)
		}
		return queryClause{field: "parents", op: "in", value: v}, nil
	}

	start := p.i
	for !p.done() && p.s[p.i] != '=' && p.s[p.i] != '!' && p.s[p.i] != ' ' {
		p.i++
	}
	field := p.s[start:p.i]
	p.skipSpace()

	var op string
	switch {
	case p.consume("!="):
		op = "!="
	case p.consume("="):
		op = "="
	default:
		return queryClause{}, fmt.Errorf("expected operator after %q", field)
	}
	p.skipSpace()

	if !p.done() && p.s[p.i] == '\'' {
		v, err := p.quoted()
		return queryClause{field: field, op: op, value: v}, err
	}
	start = p.i
	for !p.done() && p.s[p.i] != ' ' {
		p.i++
	}
	return queryClause{field: field, op: op, value: p.s[start:p.i]}, nil
}

func matches(f *ServerFile, clauses []queryClause) bool {
	for _, c := range clauses {
		var ok bool
		switch c.field {
		case "name":
			ok = f.Name == c.value
		case "mimeType":
			ok = f.MimeType == c.value
		case "trashed":
			ok = strconv.FormatBool(f.Trashed) == c.value
		case "parents":
			ok = slices.Contains(f.Parents, c.value)
		}
		if c.op == "!=" {
			ok = !ok
		}
		if !ok {
			return false
		}
	}
	return true
}

// IsFolder reports whether f has the folder MIME type.
func (f ServerFile) IsFolder() bool {
	return f.MimeType == folderMimeType
}
