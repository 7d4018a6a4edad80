package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/dl-alexandre/drivepush/pkg/version"
)

// ServiceOptions shapes the Drive client built by NewDriveService.
type ServiceOptions struct {
	// RequestTimeout bounds each HTTP request. Zero means no limit.
	RequestTimeout time.Duration
	// Endpoint overrides the Drive base URL.
	Endpoint string
}

type credentialTokenSource struct {
	ctx context.Context
	src CredentialSource
}

func (s credentialTokenSource) Token() (*oauth2.Token, error) {
	return s.src.Token(s.ctx)
}

// NewHTTPClient returns an HTTP client that authorizes every request with src.
func NewHTTPClient(ctx context.Context, src CredentialSource, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: credentialTokenSource{ctx: ctx, src: src},
			Base:   http.DefaultTransport,
		},
		Timeout: timeout,
	}
}

// NewDriveService creates a Drive v3 service authorized by src.
func NewDriveService(ctx context.Context, src CredentialSource, opts ServiceOptions) (*drive.Service, error) {
	clientOpts := []option.ClientOption{
		option.WithHTTPClient(NewHTTPClient(ctx, src, opts.RequestTimeout)),
		option.WithUserAgent(version.Get().UserAgent()),
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}
	return drive.NewService(ctx, clientOpts...)
}
