package diff

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/drivepush/internal/sync/scanner"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

func TestParseRemoteTime_Shapes(t *testing.T) {
	want := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Unix()

	for _, value := range []string{
		"2024-01-02T03:04:05.123Z",
		"2024-01-02T03:04:05Z",
		"2024-01-02T03:04:05+00:00",
		"2024-01-02T03:04:05.999999999Z",
		"2024-01-02T05:04:05.5+02:00",
		"2024-01-01T22:04:05-05:00",
	} {
		t.Run(value, func(t *testing.T) {
			got, err := ParseRemoteTime(value)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseRemoteTime_Rejects(t *testing.T) {
	for _, value := range []string{
		"",
		"2024-01-02T03:04:05",
		"2024-01-02 03:04:05Z",
		"2024-01-02",
		"yesterday",
		"1704164645",
		"2024-13-02T03:04:05Z",
	} {
		t.Run(value, func(t *testing.T) {
			_, err := ParseRemoteTime(value)
			assert.Error(t, err)
		})
	}
}

func local(name string, mtime int64) scanner.LocalEntry {
	return scanner.LocalEntry{Name: name, RelativePath: name, ModTime: mtime}
}

func remoteAt(name string, t time.Time) *scanner.RemoteEntry {
	return &scanner.RemoteEntry{Name: name, ID: "id-" + name, ModifiedTime: t.Format(time.RFC3339Nano)}
}

func TestDecide(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		local  int64
		remote *scanner.RemoteEntry
		want   Decision
	}{
		{"missing remotely", base.Unix(), nil, DecisionCreate},
		{"equal", base.Unix(), remoteAt("f", base), DecisionSkip},
		{"one second newer is within tolerance", base.Unix() + 1, remoteAt("f", base), DecisionSkip},
		{"two seconds newer", base.Unix() + 2, remoteAt("f", base), DecisionUpdate},
		{"older", base.Unix() - 100, remoteAt("f", base), DecisionSkip},
		{"remote fraction truncated", base.Unix() + 2, remoteAt("f", base.Add(900*time.Millisecond)), DecisionUpdate},
		{"much newer", base.Add(24 * time.Hour).Unix(), remoteAt("f", base), DecisionUpdate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(local("f", tt.local), tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_InvalidTimestamp(t *testing.T) {
	_, err := Decide(local("report.pdf", 100), &scanner.RemoteEntry{Name: "report.pdf", ModifiedTime: "01/02/2024"})
	require.Error(t, err)

	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, utils.ErrCodeInvalidTimestamp, appErr.CLIError.Code)
	assert.Contains(t, appErr.Error(), "report.pdf")
	assert.Contains(t, appErr.Error(), "01/02/2024")
	assert.Equal(t, utils.ExitInvalidTimestamp, utils.ExitCodeFor(err))
}

func TestCompute(t *testing.T) {
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	locals := []scanner.LocalEntry{
		local("new.txt", base.Unix()),
		local("stale.txt", base.Unix()+10),
		local("same.txt", base.Unix()),
	}
	remote := map[string]scanner.RemoteEntry{
		"stale.txt":  *remoteAt("stale.txt", base),
		"same.txt":   *remoteAt("same.txt", base),
		"orphan.txt": *remoteAt("orphan.txt", base),
	}

	actions, err := Compute(locals, remote)
	require.NoError(t, err)
	require.Len(t, actions, 3)

	assert.Equal(t, DecisionCreate, actions[0].Decision)
	assert.Nil(t, actions[0].Remote)
	assert.Equal(t, DecisionUpdate, actions[1].Decision)
	assert.Equal(t, "id-stale.txt", actions[1].Remote.ID)
	assert.Equal(t, DecisionSkip, actions[2].Decision)
	for _, a := range actions {
		assert.NotEqual(t, "orphan.txt", a.Local.Name)
	}
}

func TestCompute_StopsOnBadTimestamp(t *testing.T) {
	locals := []scanner.LocalEntry{local("a", 1), local("b", 1)}
	remote := map[string]scanner.RemoteEntry{"b": {Name: "b", ModifiedTime: "garbage"}}

	actions, err := Compute(locals, remote)
	assert.Error(t, err)
	assert.Nil(t, actions)
}
