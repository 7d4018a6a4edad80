package utils

// Upload chunking (binary units)
const (
	UploadChunkSize    = 8 * 1024 * 1024   // 8 MiB
	UploadMinChunkSize = 256 * 1024        // googleapi rounds to multiples of this
	UploadMaxChunkSize = 256 * 1024 * 1024 // 256 MiB
)

// OAuth scopes
const (
	ScopeFull             = "https://www.googleapis.com/auth/drive"
	ScopeFile             = "https://www.googleapis.com/auth/drive.file"
	ScopeMetadataReadonly = "https://www.googleapis.com/auth/drive.metadata.readonly"
)

// DefaultScopes are requested when the configuration does not name any.
// Full drive scope is needed to find folders the tool did not create itself.
var DefaultScopes = []string{ScopeFull}

// Retry configuration
const (
	DefaultMaxRetries   = 0
	DefaultRetryDelayMs = 1000
	MaxRetryDelayMs     = 32000
)

// Remote timestamps are compared with this much slack on the remote side.
const ModTimeToleranceSeconds = 1

const MimeTypeFolder = "application/vnd.google-apps.folder"

// RootFolderID is the alias Drive accepts for the user's My Drive root.
const RootFolderID = "root"
