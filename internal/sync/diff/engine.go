package diff

import (
	"github.com/dl-alexandre/drivepush/internal/sync/scanner"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// Decide classifies one local file against the remote entry of the same
// name, if any. A file is updated only when its mtime is strictly later
// than the remote modifiedTime plus the tolerance; otherwise it is
// skipped. Nothing ever maps to a deletion.
func Decide(local scanner.LocalEntry, remote *scanner.RemoteEntry) (Decision, error) {
	if remote == nil {
		return DecisionCreate, nil
	}

	remoteSecs, err := ParseRemoteTime(remote.ModifiedTime)
	if err != nil {
		return "", invalidTimestamp(local.RelativePath, remote.ModifiedTime, err)
	}

	if local.ModTime > remoteSecs+utils.ModTimeToleranceSeconds {
		return DecisionUpdate, nil
	}
	return DecisionSkip, nil
}

// Compute decides every file of one directory against that directory's
// remote listing, keeping the local order. Remote entries without a
// local counterpart are ignored.
func Compute(local []scanner.LocalEntry, remote map[string]scanner.RemoteEntry) ([]Action, error) {
	actions := make([]Action, 0, len(local))
	for _, l := range local {
		var match *scanner.RemoteEntry
		if r, ok := remote[l.Name]; ok {
			match = &r
		}

		decision, err := Decide(l, match)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{Decision: decision, Local: l, Remote: match})
	}
	return actions, nil
}
