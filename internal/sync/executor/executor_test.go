package executor

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivepush/internal/sync/diff"
	"github.com/dl-alexandre/drivepush/internal/sync/scanner"
	testhelpers "github.com/dl-alexandre/drivepush/internal/testing"
	"github.com/dl-alexandre/drivepush/internal/testing/mocks"
)

var when = time.Date(2024, 5, 5, 5, 5, 5, 0, time.UTC)

func localFile(t *testing.T, root, name, content string) scanner.LocalEntry {
	t.Helper()
	path := testhelpers.WriteFile(t, root, name, content, when)
	return scanner.LocalEntry{
		RelativePath: name,
		AbsPath:      path,
		Name:         filepath.Base(name),
		Size:         int64(len(content)),
		ModTime:      when.Unix(),
	}
}

func rootDir(root string) scanner.Directory {
	return scanner.Directory{RelativePath: ".", AbsPath: root}
}

func TestApply_CreateUploadsContent(t *testing.T) {
	root := t.TempDir()
	remote := mocks.NewRemote()
	folder := remote.AddFolder("base", "")
	out := &bytes.Buffer{}
	exec := New(remote, Options{Out: out})

	l := localFile(t, root, "hello.txt", "hello")
	summary, err := exec.Apply(context.Background(), rootDir(root), folder, []diff.Action{
		{Decision: diff.DecisionCreate, Local: l},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Uploaded: 1, Bytes: 5}, summary)

	entry := remote.Lookup(folder, "hello.txt")
	require.NotNil(t, entry)
	assert.Equal(t, "hello", string(entry.Content))
	assert.Equal(t, "Uploading new file: 'hello.txt' to '.'...\nUploaded 'hello.txt' with ID: "+entry.ID+"\n", out.String())
}

func TestApply_UpdateKeepsIdentity(t *testing.T) {
	root := t.TempDir()
	remote := mocks.NewRemote()
	folder := remote.AddFolder("base", "")
	id := remote.AddFile("notes.txt", folder, "old", "2020-01-01T00:00:00Z")
	out := &bytes.Buffer{}
	exec := New(remote, Options{Out: out})

	l := localFile(t, root, "notes.txt", "brand new")
	remoteEntry := &scanner.RemoteEntry{Name: "notes.txt", ID: id, ModifiedTime: "2020-01-01T00:00:00Z"}
	summary, err := exec.Apply(context.Background(), rootDir(root), folder, []diff.Action{
		{Decision: diff.DecisionUpdate, Local: l, Remote: remoteEntry},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Updated: 1, Bytes: 9}, summary)

	entry := remote.Get(id)
	assert.Equal(t, "notes.txt", entry.Name)
	assert.Equal(t, "brand new", string(entry.Content))
	assert.Len(t, remote.Children(folder), 1)
	assert.Equal(t, "Updating 'notes.txt' in '.' (local is newer)...\n", out.String())
}

func TestApply_SkipMakesNoCalls(t *testing.T) {
	remote := mocks.NewRemote()
	out := &bytes.Buffer{}
	exec := New(remote, Options{Out: out})

	dir := scanner.Directory{RelativePath: filepath.Join("a", "b")}
	summary, err := exec.Apply(context.Background(), dir, "folder", []diff.Action{
		{Decision: diff.DecisionSkip, Local: scanner.LocalEntry{Name: "x.txt"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 1}, summary)
	assert.Empty(t, remote.Calls())
	assert.Equal(t, "'x.txt' in '"+filepath.Join("a", "b")+"' is up-to-date.\n", out.String())
}

func TestApply_DryRunWritesNothing(t *testing.T) {
	root := t.TempDir()
	remote := mocks.NewRemote()
	out := &bytes.Buffer{}
	exec := New(remote, Options{Out: out, DryRun: true})

	a := localFile(t, root, "a.txt", "aaa")
	b := localFile(t, root, "b.txt", "bb")
	summary, err := exec.Apply(context.Background(), rootDir(root), "folder", []diff.Action{
		{Decision: diff.DecisionCreate, Local: a},
		{Decision: diff.DecisionUpdate, Local: b, Remote: &scanner.RemoteEntry{ID: "r"}},
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Uploaded: 1, Updated: 1, Bytes: 5}, summary)
	assert.Empty(t, remote.Calls())
	assert.Contains(t, out.String(), "Would upload new file: 'a.txt' to '.'")
	assert.Contains(t, out.String(), "Would update 'b.txt' in '.' (local is newer)")
}

func TestApply_StopsAtFirstError(t *testing.T) {
	root := t.TempDir()
	remote := mocks.NewRemote()
	boom := errors.New("quota")
	calls := 0
	remote.UpdateHook = func(string) error {
		calls++
		return boom
	}
	exec := New(remote, Options{})

	first := localFile(t, root, "first.txt", "1")
	second := localFile(t, root, "second.txt", "2")
	third := localFile(t, root, "third.txt", "3")
	summary, err := exec.Apply(context.Background(), rootDir(root), "folder", []diff.Action{
		{Decision: diff.DecisionCreate, Local: first},
		{Decision: diff.DecisionUpdate, Local: second, Remote: &scanner.RemoteEntry{ID: "r"}},
		{Decision: diff.DecisionCreate, Local: third},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "second.txt")
	assert.Equal(t, 1, summary.Uploaded)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, remote.CallCount("create"))
}

func TestApply_MissingLocalFile(t *testing.T) {
	remote := mocks.NewRemote()
	exec := New(remote, Options{})

	_, err := exec.Apply(context.Background(), rootDir(t.TempDir()), "folder", []diff.Action{
		{Decision: diff.DecisionCreate, Local: scanner.LocalEntry{Name: "gone", RelativePath: "gone", AbsPath: filepath.Join(t.TempDir(), "gone")}},
	})
	require.Error(t, err)
	assert.Empty(t, remote.Calls())
}

func TestApply_Cancelled(t *testing.T) {
	remote := mocks.NewRemote()
	exec := New(remote, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Apply(ctx, rootDir(t.TempDir()), "folder", []diff.Action{
		{Decision: diff.DecisionSkip, Local: scanner.LocalEntry{Name: "x"}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummaryAdd(t *testing.T) {
	s := Summary{Uploaded: 1, Bytes: 10}
	s.Add(Summary{Updated: 2, Skipped: 3, Bytes: 5})
	assert.Equal(t, Summary{Uploaded: 1, Updated: 2, Skipped: 3, Bytes: 15}, s)
}
