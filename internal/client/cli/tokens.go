package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/authapi"
	"github.com/dmitrijs2005/gophauth/internal/filex"
)

var errNoTokens = errors.New("no saved tokens, run signin first")

// TokenFile is the on-disk record of the last issued pair.
type TokenFile struct {
	Server           string    `json:"server"`
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// DefaultTokenPath is ~/.gophauth/tokens.json, or a relative path when the
// home directory is unknown.
func DefaultTokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gophauth", "tokens.json")
	}
	return filepath.Join(home, ".gophauth", "tokens.json")
}

func loadTokens(path string) (*TokenFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, errNoTokens
	}
	if err != nil {
		return nil, err
	}

	tf := &TokenFile{}
	if err := json.Unmarshal(data, tf); err != nil {
		return nil, fmt.Errorf("token file %s: %w", path, err)
	}
	return tf, nil
}

func saveTokens(path string, tf *TokenFile) error {
	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}

func removeTokens(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// merge applies resp to tf. Refresh fields are kept when resp omits them.
func (tf *TokenFile) merge(resp *authapi.TokenResponse) {
	tf.AccessToken = resp.AccessToken
	tf.AccessExpiresAt = resp.AccessExpiresAt
	if resp.RefreshToken != "" {
		tf.RefreshToken = resp.RefreshToken
		tf.RefreshExpiresAt = resp.RefreshExpiresAt
	}
}
