package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/types"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

func classify(t *testing.T, err error) *utils.AppError {
	t.Helper()
	reqCtx := &types.RequestContext{TraceID: "trace-1", RequestType: types.RequestTypeMutation}
	out := ClassifyGoogleAPIError("drive", err, reqCtx, logging.NewNoOpLogger())
	var appErr *utils.AppError
	require.True(t, errors.As(out, &appErr), "expected *AppError, got %T", out)
	return appErr
}

func TestClassifyGoogleAPIError_StatusCodes(t *testing.T) {
	tests := []struct {
		name      string
		err       *googleapi.Error
		code      string
		retryable bool
	}{
		{"bad request", &googleapi.Error{Code: 400, Message: "bad"}, utils.ErrCodeInvalidArgument, false},
		{"unauthorized", &googleapi.Error{Code: 401}, utils.ErrCodeAuthExpired, false},
		{"forbidden", &googleapi.Error{Code: 403}, utils.ErrCodePermissionDenied, false},
		{"quota", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "storageQuotaExceeded"}}}, utils.ErrCodeQuotaExceeded, false},
		{"user rate", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, utils.ErrCodeRateLimited, true},
		{"scopes", &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "insufficientScopes"}}}, utils.ErrCodeScopeInsufficient, false},
		{"not found", &googleapi.Error{Code: 404}, utils.ErrCodeFileNotFound, false},
		{"too many", &googleapi.Error{Code: 429}, utils.ErrCodeRateLimited, true},
		{"server", &googleapi.Error{Code: 503}, utils.ErrCodeNetworkError, true},
		{"teapot", &googleapi.Error{Code: 418}, utils.ErrCodeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := classify(t, tt.err)
			assert.Equal(t, tt.code, appErr.CLIError.Code)
			assert.Equal(t, tt.retryable, appErr.CLIError.Retryable)
			assert.Equal(t, tt.err.Code, appErr.CLIError.HTTPStatus)
			assert.Equal(t, "trace-1", appErr.CLIError.Context["traceId"])
		})
	}
}

func TestClassifyGoogleAPIError_KeepsCause(t *testing.T) {
	apiErr := &googleapi.Error{Code: http.StatusNotFound, Message: "File not found: abc"}
	appErr := classify(t, fmt.Errorf("files.create: %w", apiErr))

	assert.Equal(t, utils.ErrCodeFileNotFound, appErr.CLIError.Code)
	var unwrapped *googleapi.Error
	assert.True(t, errors.As(appErr, &unwrapped))
}

func TestClassifyGoogleAPIError_AuthSuggestsLogin(t *testing.T) {
	appErr := classify(t, &googleapi.Error{Code: 401, Message: "Invalid Credentials"})
	assert.Contains(t, appErr.CLIError.Context["suggestedAction"], "drivepush auth login")
	assert.Equal(t, utils.ExitAuthExpired, utils.ExitCodeFor(appErr))
}

func TestClassifyGoogleAPIError_NonAPIError(t *testing.T) {
	appErr := classify(t, errors.New("connection reset by peer"))
	assert.Equal(t, utils.ErrCodeNetworkError, appErr.CLIError.Code)
	assert.True(t, appErr.CLIError.Retryable)
}

func TestClassifyGoogleAPIError_Context(t *testing.T) {
	appErr := classify(t, context.Canceled)
	assert.Equal(t, utils.ErrCodeCancelled, appErr.CLIError.Code)
	assert.True(t, errors.Is(appErr, context.Canceled))

	appErr = classify(t, fmt.Errorf("upload: %w", context.DeadlineExceeded))
	assert.Equal(t, utils.ErrCodeTimeout, appErr.CLIError.Code)
}
