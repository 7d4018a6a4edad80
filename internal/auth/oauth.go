package auth

import (
	"bufio"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/dl-alexandre/drivepush/internal/logging"
)

const authTimeout = 5 * time.Minute

// OAuthFlow runs one authorization-code exchange with PKCE and a state check.
type OAuthFlow struct {
	config       *oauth2.Config
	listener     net.Listener
	redirectURL  string
	state        string
	codeVerifier string
	codeChan     chan string
	errChan      chan error
}

// NewOAuthFlow creates a flow. listener may be nil for the manual paste variant.
func NewOAuthFlow(config *oauth2.Config, listener net.Listener, redirectURL string) (*OAuthFlow, error) {
	if config == nil {
		return nil, errors.New("OAuth config not set")
	}

	state, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	cfg := *config
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("redirect URL not set")
	}

	return &OAuthFlow{
		config:       &cfg,
		listener:     listener,
		redirectURL:  cfg.RedirectURL,
		state:        state,
		codeVerifier: verifier,
		codeChan:     make(chan string, 1),
		errChan:      make(chan error, 1),
	}, nil
}

// AuthURL returns the consent page URL.
func (f *OAuthFlow) AuthURL() string {
	return f.config.AuthCodeURL(
		f.state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("code_challenge", codeChallengeS256(f.codeVerifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// StartCallbackServer serves /callback on the flow's listener until ctx is done.
func (f *OAuthFlow) StartCallbackServer(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", f.handleCallback)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(f.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.sendErr(err)
		}
	}()
	go func() {
		<-ctx.Done()
		server.Close()
	}()
}

func (f *OAuthFlow) sendErr(err error) {
	select {
	case f.errChan <- err:
	default:
	}
}

func (f *OAuthFlow) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("state") != f.state {
		f.sendErr(errors.New("invalid state parameter"))
		http.Error(w, "Invalid state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		f.sendErr(fmt.Errorf("auth error: %s", q.Get("error")))
		http.Error(w, "No code received", http.StatusBadRequest)
		return
	}

	select {
	case f.codeChan <- code:
	default:
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<html><body><h1>drivepush is authorized</h1><p>You can close this window.</p></body></html>`)
}

// WaitForCode blocks until the callback delivers a code, an error occurs, ctx ends or timeout passes.
func (f *OAuthFlow) WaitForCode(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case code := <-f.codeChan:
		return code, nil
	case err := <-f.errChan:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", errors.New("authentication timed out")
	}
}

// ExchangeCode trades the authorization code for a token.
func (f *OAuthFlow) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := f.config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", f.codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// Close releases the listener.
func (f *OAuthFlow) Close() {
	if f.listener != nil {
		f.listener.Close()
	}
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func codeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// parsePastedCode accepts either the bare code or the full redirected URL,
// returning the code and the URL's state parameter if it had one.
func parsePastedCode(input string) (code, state string) {
	input = strings.TrimSpace(input)
	if u, err := url.Parse(input); err == nil && u.Scheme != "" {
		q := u.Query()
		if code := q.Get("code"); code != "" {
			return code, q.Get("state")
		}
	}
	return input, ""
}

// PastedCode extracts the authorization code from manual input. A pasted
// redirect URL must carry this flow's state when it carries one at all.
func (f *OAuthFlow) PastedCode(input string) (string, error) {
	code, state := parsePastedCode(input)
	if code == "" {
		return "", errors.New("no authorization code entered")
	}
	if state != "" && state != f.state {
		return "", errors.New("invalid state parameter")
	}
	return code, nil
}

func newLoopbackFlow(config *oauth2.Config) (*OAuthFlow, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to start local server: %w", err)
	}
	addr := listener.Addr().(*net.TCPAddr)
	flow, err := NewOAuthFlow(config, listener, fmt.Sprintf("http://127.0.0.1:%d/callback", addr.Port))
	if err != nil {
		listener.Close()
		return nil, err
	}
	return flow, nil
}

func newManualFlow(config *oauth2.Config) (*OAuthFlow, error) {
	return NewOAuthFlow(config, nil, fmt.Sprintf("http://127.0.0.1:%d/callback", pickManualPort()))
}

func pickManualPort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err == nil {
		addr := listener.Addr().(*net.TCPAddr)
		_ = listener.Close()
		return addr.Port
	}
	return 8765
}

func isHeadlessEnv() bool {
	if os.Getenv("DRIVEPUSH_NO_BROWSER") != "" {
		return true
	}
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return true
	}
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" &&
		os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return true
	}
	if os.Getenv("SSH_CONNECTION") != "" || os.Getenv("SSH_TTY") != "" {
		return true
	}
	return false
}

// authorize runs the interactive flow: loopback listener plus browser when possible,
// paste-the-code otherwise.
func (m *Manager) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if !m.noBrowser && !isHeadlessEnv() {
		tok, err := m.authorizeLoopback(ctx, cfg)
		if !errors.Is(err, errBrowserUnavailable) {
			return tok, err
		}
		fmt.Fprintln(m.out, "Switching to manual authentication.")
	}
	return m.authorizeManual(ctx, cfg)
}

var errBrowserUnavailable = errors.New("browser unavailable")

func (m *Manager) authorizeLoopback(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	flow, err := newLoopbackFlow(cfg)
	if err != nil {
		m.logger.Warn("Loopback listener unavailable", logging.F("error", err.Error()))
		return nil, errBrowserUnavailable
	}
	defer flow.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	flow.StartCallbackServer(ctx)

	authURL := flow.AuthURL()
	fmt.Fprintln(m.out, "Opening browser for authentication...")
	fmt.Fprintf(m.out, "If the browser doesn't open, visit: %s\n", authURL)

	if err := m.openBrowser(authURL); err != nil {
		fmt.Fprintf(m.out, "Failed to open browser: %v\n", err)
		return nil, errBrowserUnavailable
	}

	code, err := flow.WaitForCode(ctx, authTimeout)
	if err != nil {
		return nil, err
	}
	return flow.ExchangeCode(ctx, code)
}

func (m *Manager) authorizeManual(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	flow, err := newManualFlow(cfg)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(m.out, "Manual authentication required.")
	fmt.Fprintf(m.out, "Open this URL in a browser and approve access:\n%s\n", flow.AuthURL())
	fmt.Fprintln(m.out, "After approval the browser is redirected to a 127.0.0.1 address that will not load.")
	fmt.Fprint(m.out, "Paste that full address (or just its code parameter) here: ")

	line, err := bufio.NewReader(m.in).ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("reading authorization code: %w", err)
	}
	code, err := flow.PastedCode(line)
	if err != nil {
		return nil, err
	}
	return flow.ExchangeCode(ctx, code)
}
