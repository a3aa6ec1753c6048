package simplefin

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
)

// AuthState is the claimed access URL saved between runs.
type AuthState struct {
	ClaimedAt time.Time `json:"claimed_at"`
	AccessURL string    `json:"access_url"`
	TokenHint string    `json:"token_hint"`
}

// LoadOrClaimAuth returns the saved access URL in stateFile, or claims
// token and saves the result. Setup tokens can be claimed only once.
func LoadOrClaimAuth(ctx context.Context, stateFile, token string, httpClient *http.Client, logger *slog.Logger) (*AuthState, error) {
	if logger == nil {
		logger = slog.Default()
	}

	auth, err := loadAuthState(stateFile)
	if err == nil && auth.AccessURL != "" {
		logger.Info("Using saved SimpleFIN access URL",
			"claimed_at", auth.ClaimedAt.Format(time.DateOnly),
			"state_file", stateFile)
		return auth, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Ignoring unreadable SimpleFIN state file", "state_file", stateFile, "error", err)
	}

	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: a SimpleFIN setup token is required", common.ErrMissingConfig)
	}

	logger.Info("Claiming SimpleFIN setup token")
	accessURL, err := ClaimToken(ctx, httpClient, token)
	if err != nil {
		return nil, err
	}

	auth = &AuthState{
		AccessURL: accessURL,
		ClaimedAt: time.Now(),
		TokenHint: tokenHint(token),
	}
	if err := saveAuthState(stateFile, auth); err != nil {
		return nil, fmt.Errorf("failed to save auth state: %w", err)
	}

	logger.Info("Saved SimpleFIN access URL", "state_file", stateFile)
	return auth, nil
}

// ClaimToken exchanges a base64 setup token for an access URL.
func ClaimToken(ctx context.Context, httpClient *http.Client, token string) (string, error) {
	token = strings.TrimSpace(token)
	decoded, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return "", common.InvalidArgumentf("SimpleFIN setup token is not base64")
		}
	}

	claimURL := string(decoded)
	if !isHTTPURL(claimURL) {
		return "", common.InvalidArgumentf("SimpleFIN setup token does not contain a claim URL")
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, claimURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create claim request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to claim access URL: %w", common.ErrSimpleFINConnection, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read claim response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: claim returned %d: %s",
			common.ErrSimpleFINConnection, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	accessURL := strings.TrimSpace(string(body))
	if !isHTTPURL(accessURL) {
		return "", fmt.Errorf("%w: claim returned an invalid access URL", common.ErrSimpleFINConnection)
	}
	return accessURL, nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func loadAuthState(path string) (*AuthState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var auth AuthState
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

func saveAuthState(path string, auth *AuthState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// tokenHint keeps enough of the token to recognize it later.
func tokenHint(token string) string {
	if len(token) > 16 {
		return token[:8] + "..." + token[len(token)-8:]
	}
	return "short_token"
}
