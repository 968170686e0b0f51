package drive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"
)

var (
	DRIVE  = drive.DriveScope
	SHEETS = sheets.SpreadsheetsScope
)

// Authorize returns an HTTP client for the Google APIs. A service account key
// is used as is; OAuth client credentials need a token previously saved by
// the 'authorise' command.
func Authorize(ctx context.Context, credentials, tokens string, scopes ...string) (*http.Client, error) {
	b, err := os.ReadFile(credentials)
	if err != nil {
		return nil, err
	}

	if isServiceAccount(b) {
		config, err := google.JWTConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, err
		}

		return config.Client(ctx), nil
	}

	config, err := google.ConfigFromJSON(b, scopes...)
	if err != nil {
		return nil, err
	}

	file := TokensFile(credentials, tokens)
	token, err := tokenFromFile(file)
	if err != nil {
		return nil, fmt.Errorf("no OAuth token in %v - run 'authorise' first (%v)", file, err)
	}

	return config.Client(ctx, token), nil
}

// OAuthConfig loads OAuth client credentials for the interactive authorisation
// flow.
func OAuthConfig(credentials string, scopes ...string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentials)
	if err != nil {
		return nil, err
	}

	if isServiceAccount(b) {
		return nil, fmt.Errorf("%v is a service account key and does not need to be authorised", credentials)
	}

	return google.ConfigFromJSON(b, scopes...)
}

// TokensFile returns the path of the cached OAuth token for a credentials file,
// e.g. <dir>/credentials.tokens.
func TokensFile(credentials, dir string) string {
	folder, file := filepath.Split(credentials)
	name := strings.TrimSuffix(file, filepath.Ext(file))

	if dir == "" {
		dir = folder
	}

	return filepath.Join(dir, fmt.Sprintf("%s.tokens", name))
}

func SaveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache OAuth token (%v)", err)
	}

	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	token := oauth2.Token{}
	if err := json.NewDecoder(f).Decode(&token); err != nil {
		return nil, err
	}

	return &token, nil
}

func isServiceAccount(b []byte) bool {
	key := struct {
		Type string `json:"type"`
	}{}

	return json.Unmarshal(b, &key) == nil && key.Type == "service_account"
}
