//go:build darwin && !maxboot_embedded

package pathres

import (
	"errors"
	"path/filepath"
	"sync/atomic"
)

const hasFilesystemImage = true

var suppliedPath atomic.Pointer[string]

// SetExecutablePath records the executable path handed to the process at
// startup. It must be called before the path is first resolved.
func SetExecutablePath(p string) {
	suppliedPath.Store(&p)
}

func executablePath() (string, error) {
	p := suppliedPath.Load()
	if p == nil || *p == "" {
		return "", &ResolveError{Source: "executable path", Err: errors.New("not supplied")}
	}
	abs, err := filepath.Abs(*p)
	if err != nil {
		return "", &ResolveError{Source: *p, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &ResolveError{Source: *p, Err: err}
	}
	return resolved, nil
}
