package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/dl-alexandre/drivepush/internal/logging"
	"github.com/dl-alexandre/drivepush/internal/utils"
)

// ServiceName is the keyring service credentials are stored under.
const ServiceName = "drivepush"

// CredentialSource yields a currently valid access token.
type CredentialSource interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// TokenKey is the token file path. The keyring backend uses it as the account key.
	TokenKey         string
	ClientSecretFile string
	Scopes           []string
	Storage          StorageBackend
	Logger           logging.Logger

	// OpenBrowser launches the consent page. Nil or NoBrowser forces the paste flow.
	OpenBrowser func(url string) error
	NoBrowser   bool

	In  io.Reader
	Out io.Writer
}

// Manager loads, refreshes, obtains and persists the OAuth credential.
type Manager struct {
	key         string
	secretFile  string
	scopes      []string
	storage     StorageBackend
	logger      logging.Logger
	openBrowser func(string) error
	noBrowser   bool
	in          io.Reader
	out         io.Writer

	mu        sync.Mutex
	source    oauth2.TokenSource
	persisted string
}

// NewManager creates a new auth manager
func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		key:         opts.TokenKey,
		secretFile:  opts.ClientSecretFile,
		scopes:      opts.Scopes,
		storage:     opts.Storage,
		logger:      opts.Logger,
		openBrowser: opts.OpenBrowser,
		noBrowser:   opts.NoBrowser || opts.OpenBrowser == nil,
		in:          opts.In,
		out:         opts.Out,
	}
	if m.storage == nil {
		m.storage = NewFileStorage()
	}
	if m.logger == nil {
		m.logger = logging.NewNoOpLogger()
	}
	if m.in == nil {
		m.in = os.Stdin
	}
	if m.out == nil {
		m.out = os.Stdout
	}
	if len(m.scopes) == 0 {
		m.scopes = utils.DefaultScopes
	}
	return m
}

// Token returns a valid token, refreshing or running the interactive flow as needed.
// Any new or refreshed token is persisted before it is returned.
func (m *Manager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.source == nil {
		src, err := m.establish(ctx)
		if err != nil {
			return nil, err
		}
		m.source = src
	}

	tok, err := m.source.Token()
	if err != nil {
		m.source = nil
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuthExpired,
			"Token refresh failed. Run 'drivepush auth login' to re-authenticate.").Build(), err)
	}
	if err := m.persistIfChanged(tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Login runs the interactive flow unconditionally and stores the result.
func (m *Manager) Login(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := LoadClientSecret(m.secretFile, m.scopes)
	if err != nil {
		return nil, err
	}
	tok, err := m.authorize(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := m.save(tok); err != nil {
		return nil, err
	}
	m.source = cfg.TokenSource(ctx, tok)
	return tok, nil
}

// Logout deletes the stored credential.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.source = nil
	m.persisted = ""
	if err := m.storage.Delete(m.key); err != nil && !errors.Is(err, ErrCredentialNotFound) {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// Backend names the storage backend in use.
func (m *Manager) Backend() string {
	return m.storage.Name()
}

// Status describes the stored credential.
type Status struct {
	Backend         string
	Key             string
	Present         bool
	Valid           bool
	HasRefreshToken bool
	Expiry          time.Time
}

// Status reports on the stored credential without contacting the network.
func (m *Manager) Status() (Status, error) {
	st := Status{Backend: m.storage.Name(), Key: m.key}
	tok, err := m.load()
	if err != nil {
		return st, err
	}
	if tok == nil {
		return st, nil
	}
	st.Present = true
	st.Valid = tok.Valid()
	st.HasRefreshToken = tok.RefreshToken != ""
	st.Expiry = tok.Expiry
	return st, nil
}

// establish picks the token source for this process: stored token as is,
// refreshed stored token, or a freshly authorized one.
func (m *Manager) establish(ctx context.Context) (oauth2.TokenSource, error) {
	stored, err := m.load()
	if err != nil {
		m.logger.Warn("Ignoring unreadable stored credential", logging.F("error", err.Error()))
		stored = nil
	}
	if stored != nil {
		m.persisted = stored.AccessToken
	}

	cfg, cfgErr := LoadClientSecret(m.secretFile, m.scopes)

	if stored != nil && stored.Valid() {
		m.logger.Debug("Using stored credential", logging.F("expiry", stored.Expiry))
		if cfgErr != nil {
			return oauth2.StaticTokenSource(stored), nil
		}
		return cfg.TokenSource(ctx, stored), nil
	}

	if cfgErr != nil {
		return nil, cfgErr
	}

	if stored != nil && stored.RefreshToken != "" {
		src := cfg.TokenSource(ctx, stored)
		_, err := src.Token()
		if err == nil {
			m.logger.Info("Refreshed stored credential")
			return src, nil
		}
		m.logger.Warn("Credential refresh failed, re-authorizing", logging.F("error", err.Error()))
	}

	tok, err := m.authorize(ctx, cfg)
	if err != nil {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeAuthRequired,
			fmt.Sprintf("Authorization failed: %v", err)).Build(), err)
	}
	if err := m.save(tok); err != nil {
		return nil, err
	}
	return cfg.TokenSource(ctx, tok), nil
}

func (m *Manager) load() (*oauth2.Token, error) {
	data, err := m.storage.Load(m.key)
	if errors.Is(err, ErrCredentialNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeToken(data)
}

func (m *Manager) save(tok *oauth2.Token) error {
	data, err := encodeToken(tok)
	if err != nil {
		return err
	}
	if err := m.storage.Save(m.key, data); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	m.persisted = tok.AccessToken
	m.logger.Debug("Credential saved", logging.F("backend", m.storage.Name()))
	return nil
}

func (m *Manager) persistIfChanged(tok *oauth2.Token) error {
	if tok.AccessToken == m.persisted {
		return nil
	}
	return m.save(tok)
}
