package api

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
)

const (
	credUserKey = "USER"
	credPassKey = "PASS"
)

// Credentials are the operator's login for the remote API. They live in a
// local secret file and are only ever transmitted to the token endpoint.
type Credentials struct {
	Email    string
	Password string
}

// LoadCredentials reads a dotenv-style secret file with USER and PASS
// entries. A missing file or a missing entry is an authentication error;
// callers treat it as fatal.
func LoadCredentials(fs afero.Fs, path string) (Credentials, error) {
	f, err := fs.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("open credentials file %s: %w", path, err)
	}
	defer f.Close()

	entries, err := godotenv.Parse(f)
	if err != nil {
		return Credentials{}, fmt.Errorf("parse credentials file %s: %w", path, err)
	}

	creds := Credentials{Email: entries[credUserKey], Password: entries[credPassKey]}
	if creds.Email == "" || creds.Password == "" {
		return Credentials{}, fmt.Errorf("credentials file %s must contain %s and %s entries", path, credUserKey, credPassKey)
	}
	return creds, nil
}
