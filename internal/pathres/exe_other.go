//go:build !linux && !darwin && !solaris && !illumos && !maxboot_embedded

package pathres

import (
	"os"
	"path/filepath"
)

const hasFilesystemImage = true

func executablePath() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", &ResolveError{Source: "executable path", Err: err}
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", &ResolveError{Source: p, Err: err}
	}
	return filepath.ToSlash(resolved), nil
}

func SetExecutablePath(string) {}
