package mailer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoClientSecret means no OAuth client secret file could be found.
// The worker loop treats it as unrecoverable without operator action.
var ErrNoClientSecret = errors.New("gmail client secret not found")

// clientSecretName is the preferred, well-known file name.
const clientSecretName = "credentials.json"

// clientSecretPrefix matches files downloaded from the Google Cloud
// console without renaming (client_secret_<id>.json).
const clientSecretPrefix = "client_secret"

// FindClientSecret locates the OAuth client secret: the well-known name
// in any of dirs first, then the most recently modified
// client_secret*.json across them.
func FindClientSecret(dirs ...string) (string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, clientSecretName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	var newest string
	var newestMod int64
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, clientSecretPrefix) || !strings.HasSuffix(name, ".json") {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
				newest = filepath.Join(dir, name)
				newestMod = mod
			}
		}
	}
	if newest != "" {
		return newest, nil
	}
	return "", fmt.Errorf("%w: looked for %s or %s*.json in %s",
		ErrNoClientSecret, clientSecretName, clientSecretPrefix, strings.Join(dirs, ", "))
}
