//go:build (solaris || illumos) && !maxboot_embedded

package pathres

import "os"

const (
	hasFilesystemImage = true
	selfLink           = "/proc/self/path/a.out"
)

func executablePath() (string, error) {
	p, err := os.Readlink(selfLink)
	if err != nil {
		return "", &ResolveError{Source: selfLink, Err: err}
	}
	return p, nil
}

// SetExecutablePath is a no-op on Solaris, where procfs provides the path.
func SetExecutablePath(string) {}
