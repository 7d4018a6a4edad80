package diff

import "github.com/dl-alexandre/drivepush/internal/sync/scanner"

// Decision is what happens to one local file.
type Decision string

const (
	DecisionCreate Decision = "create"
	DecisionUpdate Decision = "update"
	DecisionSkip   Decision = "skip"
)

// Action pairs a local file with its decision. Remote is nil for creates.
type Action struct {
	Decision Decision
	Local    scanner.LocalEntry
	Remote   *scanner.RemoteEntry
}
