package scanner

// LocalEntry is a regular file found under the sync root.
type LocalEntry struct {
	// RelativePath uses the OS separator.
	RelativePath string
	AbsPath      string
	// Name is the NFC-normalized base name.
	Name    string
	Size    int64
	ModTime int64
}

// Directory groups the files directly inside one local directory.
type Directory struct {
	// RelativePath is "." for the sync root.
	RelativePath string
	AbsPath      string
	Files        []LocalEntry
}

// Tree is the result of a local scan. Directories are in pre-order:
// every directory precedes its descendants.
type Tree struct {
	Directories []Directory
	Excluded    int
}

// FileCount returns the number of files across all directories.
func (t *Tree) FileCount() int {
	n := 0
	for _, d := range t.Directories {
		n += len(d.Files)
	}
	return n
}

// RemoteEntry is a non-folder entry inside a remote folder.
type RemoteEntry struct {
	Name         string
	ID           string
	ModifiedTime string
	MimeType     string
	Size         int64
}
