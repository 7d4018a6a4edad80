package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/dl-alexandre/drivepush/internal/utils"
)

// LoadClientSecret reads a Google "installed application" client secret file.
func LoadClientSecret(path string, scopes []string) (*oauth2.Config, error) {
	if path == "" {
		return nil, clientMissing(path)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, clientMissing(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading client secret %s: %w", path, err)
	}

	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuthClientInvalid,
			fmt.Sprintf("Client secret file %s is not a valid OAuth client: %v", path, err)).
			WithContext("path", path).
			Build(), err)
	}
	return cfg, nil
}

func clientMissing(path string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
		fmt.Sprintf("No valid stored credential and client secret file %q not found. "+
			"Download an OAuth client (Desktop app) JSON from the Google Cloud console and pass it with --client-secret.", path)).
		WithContext("path", path).
		Build())
}
