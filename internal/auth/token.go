// ABOUTME: Bearer token sources for authenticating backend requests
// ABOUTME: Resolves tokens from env or config file with a JWT expiry pre-check

package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors. Both are fatal for the current operation; callers surface
// them directly instead of retrying.
var (
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")
)

// TokenSource yields the bearer token for the current session. It must fail
// distinctly rather than hand back a token it knows to be unusable.
type TokenSource interface {
	Token() (string, error)
}

// StaticTokenSource returns a fixed token. Used in tests and scripts.
type StaticTokenSource string

func (s StaticTokenSource) Token() (string, error) {
	if s == "" {
		return "", ErrNoSession
	}
	return string(s), nil
}

// FileTokenSource reads the session token from the PARLOR_TOKEN environment
// variable, falling back to a token file under the XDG config directory.
type FileTokenSource struct {
	// Path overrides the default token file location when set.
	Path string
}

// Token returns the session bearer token. A missing token yields
// ErrNoSession; a token whose JWT exp claim has elapsed yields
// ErrSessionExpired.
func (f *FileTokenSource) Token() (string, error) {
	token := os.Getenv("PARLOR_TOKEN")
	if token == "" {
		path := f.Path
		if path == "" {
			path = defaultTokenPath()
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", ErrNoSession
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return "", ErrNoSession
	}

	if err := checkExpiry(token); err != nil {
		return "", err
	}
	return token, nil
}

// defaultTokenPath returns XDG_CONFIG_HOME/parlor/token, falling back to
// ~/.config/parlor/token.
func defaultTokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "parlor", "token")
}

// checkExpiry rejects tokens whose JWT exp claim has already elapsed. The
// parse is unverified: the server remains the authority on validity, this
// only avoids sending a request we know will be rejected. Tokens that are
// not JWTs pass through untouched.
func checkExpiry(token string) error {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if time.Now().After(exp.Time) {
		return fmt.Errorf("%w: token expired at %s", ErrSessionExpired, exp.Format(time.RFC3339))
	}
	return nil
}
