package sheets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSaveAndLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	require.NoError(t, saveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)
	assert.True(t, loaded.Expiry.Equal(token.Expiry))

	_, err = LoadToken(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRefreshTokenIfNeeded_ValidToken(t *testing.T) {
	token := &oauth2.Token{AccessToken: "still-good", Expiry: time.Now().Add(time.Hour)}

	got, err := RefreshTokenIfNeeded(context.Background(), OAuth2Config{}, token)
	require.NoError(t, err)
	assert.Same(t, token, got)
}

func TestOAuth2Config_RedirectURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/callback", OAuth2Config{}.oauthConfig().RedirectURL)
	assert.Equal(t, "http://localhost:9999/callback", OAuth2Config{CallbackPort: 9999}.oauthConfig().RedirectURL)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantCode   string
		wantStatus int
		wantErr    bool
	}{
		{name: "code received", query: "?state=s1&code=abc", wantStatus: http.StatusOK, wantCode: "abc"},
		{name: "missing code", query: "?state=s1", wantStatus: http.StatusOK, wantErr: true},
		{name: "wrong state", query: "?state=evil&code=abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codes := make(chan string, 1)
			errs := make(chan error, 1)

			rec := httptest.NewRecorder()
			callbackHandler("s1", codes, errs)(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			select {
			case code := <-codes:
				assert.Equal(t, tt.wantCode, code)
			default:
				assert.Empty(t, tt.wantCode)
			}
			select {
			case err := <-errs:
				assert.True(t, tt.wantErr, "unexpected error %v", err)
			default:
				assert.False(t, tt.wantErr)
			}
		})
	}
}
