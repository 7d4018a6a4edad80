package auth

import (
	"context"
	"fmt"
	"net"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		Scopes:       []string{"https://www.googleapis.com/auth/drive"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/o/oauth2/auth",
			TokenURL: tokenURL,
		},
	}
}

func TestOAuthFlow_AuthURLCarriesPKCE(t *testing.T) {
	flow, err := newLoopbackFlow(testOAuthConfig("https://oauth2.example.com/token"))
	require.NoError(t, err)
	defer flow.Close()

	u, err := url.Parse(flow.AuthURL())
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, codeChallengeS256(flow.codeVerifier), q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, flow.state, q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, flow.redirectURL, q.Get("redirect_uri"))
	assert.GreaterOrEqual(t, len(flow.codeVerifier), 43)
}

func TestOAuthFlow_LoopbackBindsEphemeralPort(t *testing.T) {
	flow, err := newLoopbackFlow(testOAuthConfig("https://oauth2.example.com/token"))
	require.NoError(t, err)
	defer flow.Close()

	addr := flow.listener.Addr().(*net.TCPAddr)
	assert.True(t, addr.IP.IsLoopback())
	assert.NotZero(t, addr.Port)
	assert.Equal(t, fmt.Sprintf("http://127.0.0.1:%d/callback", addr.Port), flow.redirectURL)
}

func TestOAuthFlow_Callback(t *testing.T) {
	tests := []struct {
		name    string
		state   func(f *OAuthFlow) string
		code    string
		wantErr string
	}{
		{"valid", func(f *OAuthFlow) string { return f.state }, "the-code", ""},
		{"wrong state", func(*OAuthFlow) string { return "forged" }, "the-code", "invalid state"},
		{"missing code", func(f *OAuthFlow) string { return f.state }, "", "auth error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, err := NewOAuthFlow(testOAuthConfig("https://oauth2.example.com/token"), nil, "http://127.0.0.1:1/callback")
			require.NoError(t, err)

			target := fmt.Sprintf("/callback?state=%s&code=%s", url.QueryEscape(tt.state(flow)), url.QueryEscape(tt.code))
			flow.handleCallback(httptest.NewRecorder(), httptest.NewRequest("GET", target, nil))

			code, err := flow.WaitForCode(context.Background(), 100*time.Millisecond)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestOAuthFlow_WaitTimesOut(t *testing.T) {
	flow, err := newLoopbackFlow(testOAuthConfig("https://oauth2.example.com/token"))
	require.NoError(t, err)
	defer flow.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	flow.StartCallbackServer(ctx)

	_, err = flow.WaitForCode(ctx, 50*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestOAuthFlow_ExchangeSendsVerifier(t *testing.T) {
	ts := newTokenServer(t)
	flow, err := newManualFlow(testOAuthConfig(ts.URL + "/token"))
	require.NoError(t, err)
	assert.Nil(t, flow.listener)

	tok, err := flow.ExchangeCode(context.Background(), "c0de")
	require.NoError(t, err)
	assert.Equal(t, "granted-c0de", tok.AccessToken)
	assert.Equal(t, "rt-new", tok.RefreshToken)
}

func TestParsePastedCode(t *testing.T) {
	tests := []struct {
		input, code, state string
	}{
		{"  4/0Abc \n", "4/0Abc", ""},
		{"http://127.0.0.1:5000/callback?state=s&code=xyz", "xyz", "s"},
		{"http://127.0.0.1:5000/callback?code=xyz", "xyz", ""},
		{"\n", "", ""},
	}
	for _, tt := range tests {
		code, state := parsePastedCode(tt.input)
		assert.Equal(t, tt.code, code, tt.input)
		assert.Equal(t, tt.state, state, tt.input)
	}
}

func TestOAuthFlow_PastedCodeChecksState(t *testing.T) {
	flow, err := newManualFlow(testOAuthConfig("https://oauth2.example.com/token"))
	require.NoError(t, err)

	code, err := flow.PastedCode("http://127.0.0.1:5000/callback?state=" + flow.state + "&code=good")
	require.NoError(t, err)
	assert.Equal(t, "good", code)

	code, err = flow.PastedCode("bare-code\n")
	require.NoError(t, err)
	assert.Equal(t, "bare-code", code)

	_, err = flow.PastedCode("http://127.0.0.1:5000/callback?state=forged&code=bad")
	assert.EqualError(t, err, "invalid state parameter")

	_, err = flow.PastedCode("  \n")
	assert.EqualError(t, err, "no authorization code entered")
}

func TestIsHeadlessEnv(t *testing.T) {
	for _, k := range []string{"CI", "GITHUB_ACTIONS", "SSH_CONNECTION", "SSH_TTY", "DRIVEPUSH_NO_BROWSER"} {
		t.Setenv(k, "")
	}
	t.Setenv("DISPLAY", ":0")
	assert.False(t, isHeadlessEnv())

	t.Setenv("DRIVEPUSH_NO_BROWSER", "1")
	assert.True(t, isHeadlessEnv())

	t.Setenv("DRIVEPUSH_NO_BROWSER", "")
	t.Setenv("SSH_TTY", "/dev/pts/0")
	assert.True(t, isHeadlessEnv())
}

func TestCodeChallengeS256(t *testing.T) {
	// RFC 7636 appendix B
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		codeChallengeS256("dBjftJeZ4CKM3deJWKIpvs1vD2h8iLHwXTNhTfbycdc"))
}
