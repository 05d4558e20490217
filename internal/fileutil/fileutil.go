// Package fileutil collects the small filesystem helpers the store and
// CLI packages need, adapted from dolly's fileutil package.
package fileutil

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Source prefixes recognized by LoadConfigWithSchema.
const (
	FileSource = "file://"
	EnvSource  = "env://"
)

// LoadConfigWithSchema returns the value referenced by a file:// or
// env:// prefixed string; a value without either prefix is returned
// unchanged.
func LoadConfigWithSchema(value string) (string, error) {
	switch {
	case strings.HasPrefix(value, FileSource):
		fn := strings.TrimPrefix(value, FileSource)
		b, err := os.ReadFile(fn)
		if err != nil {
			return value, errors.WithStack(err)
		}
		return string(b), nil
	case strings.HasPrefix(value, EnvSource):
		name := strings.TrimPrefix(value, EnvSource)
		v := os.Getenv(name)
		if v == "" {
			return "", errors.Errorf("environment variable %q is not set", name)
		}
		return v, nil
	default:
		return value, nil
	}
}

// FolderExists ensures dir exists and is a directory.
func FolderExists(dir string) error {
	if dir == "" {
		return errors.Errorf("invalid parameter")
	}
	stat, err := os.Stat(dir)
	if err != nil {
		return errors.WithStack(err)
	}
	if !stat.IsDir() {
		return errors.Errorf("not a folder: %q", dir)
	}
	return nil
}

// HomeDir returns the current user's home directory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WithStack(err)
	}
	return home, nil
}
