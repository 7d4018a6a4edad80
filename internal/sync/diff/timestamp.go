package diff

import (
	"fmt"
	"time"

	"github.com/dl-alexandre/drivepush/internal/utils"
)

// ParseRemoteTime parses an RFC 3339 timestamp with optional fractional
// seconds and a mandatory Z or numeric offset, returning Unix seconds
// with the fraction truncated. Equivalent instants in different shapes
// yield the same value.
func ParseRemoteTime(value string) (int64, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func invalidTimestamp(name, value string, cause error) error {
	return utils.WrapAppError(
		utils.NewCLIError(utils.ErrCodeInvalidTimestamp,
			fmt.Sprintf("cannot parse modifiedTime %q of remote file %q", value, name)).
			WithContext("file", name).
			WithContext("modifiedTime", value).
			Build(),
		cause,
	)
}
