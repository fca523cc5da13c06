//go:build linux && !maxboot_embedded

package pathres

import "os"

const (
	hasFilesystemImage = true
	selfLink           = "/proc/self/exe"
)

func executablePath() (string, error) {
	p, err := os.Readlink(selfLink)
	if err != nil {
		return "", &ResolveError{Source: selfLink, Err: err}
	}
	return p, nil
}

// SetExecutablePath is a no-op on Linux, where the kernel provides the path.
func SetExecutablePath(string) {}
