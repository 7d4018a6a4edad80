package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer fakes the Google token endpoint.
type tokenServer struct {
	*httptest.Server
	refreshes   atomic.Int32
	exchanges   atomic.Int32
	failRefresh bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.FormValue("grant_type") {
		case "refresh_token":
			n := ts.refreshes.Add(1)
			if ts.failRefresh {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			fmt.Fprintf(w, `{"access_token":"refreshed-%d","expires_in":3600,"token_type":"Bearer"}`, n)
		case "authorization_code":
			ts.exchanges.Add(1)
			if r.FormValue("code_verifier") == "" {
				http.Error(w, "missing verifier", http.StatusBadRequest)
				return
			}
			fmt.Fprintf(w, `{"access_token":"granted-%s","refresh_token":"rt-new","expires_in":3600,"token_type":"Bearer"}`, r.FormValue("code"))
		default:
			http.Error(w, "unsupported grant", http.StatusBadRequest)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func writeClientSecret(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	doc := map[string]interface{}{
		"installed": map[string]interface{}{
			"client_id":     "client-123.apps.googleusercontent.com",
			"client_secret": "shh",
			"auth_uri":      "https://accounts.example.com/o/oauth2/auth",
			"token_uri":     tokenURL,
			"redirect_uris": []string{"http://localhost"},
		},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func writeToken(t *testing.T, path string, tok *oauth2.Token) {
	t.Helper()
	data, err := encodeToken(tok)
	require.NoError(t, err)
	require.NoError(t, NewFileStorage().Save(path, data))
}

func readToken(t *testing.T, path string) *oauth2.Token {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tok, err := decodeToken(data)
	require.NoError(t, err)
	return tok
}

func expiredToken(refresh string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: refresh,
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}
}
