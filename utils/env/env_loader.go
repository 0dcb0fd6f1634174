// Package env loads environment variables from .env files.
package env

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// maxParentDirs bounds the upward search for a .env file.
const maxParentDirs = 5

var (
	// IsLoaded tracks whether a .env file has been loaded
	IsLoaded bool
)

// LoadEnv loads the first .env file found in dir or one of its parents and
// returns its path. It is safe to call multiple times; only the first
// successful load has an effect. Variables already present in the process
// environment are never overridden.
func LoadEnv(dir string) (string, error) {
	if IsLoaded {
		return "", nil
	}

	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "could not get current directory")
		}
		dir = wd
	}

	for i := 0; i <= maxParentDirs; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := LoadEnvWithPath(envPath); err != nil {
				return "", err
			}
			return envPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}

// LoadEnvWithPath loads environment variables from a specific .env file path
func LoadEnvWithPath(filePath string) error {
	if err := godotenv.Load(filePath); err != nil {
		return errors.Wrapf(err, "error loading .env file at %s", filePath)
	}
	IsLoaded = true
	return nil
}
