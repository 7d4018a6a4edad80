package scanner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivepush/internal/files"
	"github.com/dl-alexandre/drivepush/internal/testing/mocks"
)

func TestListFolderFiles_FollowsPagesAndSkipsFolders(t *testing.T) {
	remote := mocks.NewRemote()
	remote.PageSize = 2
	parent := remote.AddFolder("p", "")
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		remote.AddFile(name+".txt", parent, name, "2024-01-01T00:00:00.000Z")
	}
	remote.AddFolder("sub", parent)
	trashed := remote.AddFile("old.txt", parent, "x", "2024-01-01T00:00:00Z")
	remote.Trash(trashed)
	remote.AddFile("other.txt", "elsewhere", "x", "2024-01-01T00:00:00Z")

	entries, err := ListFolderFiles(context.Background(), remote, parent)
	require.NoError(t, err)

	assert.Len(t, entries, 5)
	assert.Contains(t, entries, "e.txt")
	assert.NotContains(t, entries, "sub")
	assert.NotContains(t, entries, "old.txt")
	assert.Equal(t, "2024-01-01T00:00:00.000Z", entries["a.txt"].ModifiedTime)
	assert.Equal(t, 3, remote.CallCount("list"))
}

func TestListFolderFiles_NormalizesNames(t *testing.T) {
	remote := mocks.NewRemote()
	id := remote.AddFile("cafe\u0301.txt", "p", "x", "2024-01-01T00:00:00Z")

	entries, err := ListFolderFiles(context.Background(), remote, "p")
	require.NoError(t, err)
	require.Contains(t, entries, "caf\u00e9.txt")
	assert.Equal(t, id, entries["caf\u00e9.txt"].ID)
}

func TestListFolderFiles_DuplicateNamesLastWins(t *testing.T) {
	remote := mocks.NewRemote()
	remote.AddFile("dup.txt", "p", "1", "2024-01-01T00:00:00Z")
	second := remote.AddFile("dup.txt", "p", "2", "2024-01-02T00:00:00Z")

	entries, err := ListFolderFiles(context.Background(), remote, "p")
	require.NoError(t, err)
	assert.Equal(t, second, entries["dup.txt"].ID)
}

func TestListFolderFiles_Error(t *testing.T) {
	remote := mocks.NewRemote()
	boom := errors.New("boom")
	remote.ListHook = func(files.Query) error { return boom }

	_, err := ListFolderFiles(context.Background(), remote, "p")
	assert.ErrorIs(t, err, boom)
}
