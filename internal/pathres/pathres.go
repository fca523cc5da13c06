// Package pathres locates the running executable and the boot image that
// ships next to it.
package pathres

import (
	"fmt"
	"strings"
	"sync"
)

// ImageFileName is the name of the boot image expected beside the executable.
const ImageFileName = "maxine.vm"

// ResolveError reports that the executable's own path could not be read.
type ResolveError struct {
	Source string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("could not read %s: %v", e.Source, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// DirectoryOf truncates path after its last '/', keeping the separator. A
// path without a separator has no directory component and yields "".
func DirectoryOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i+1]
}

// ImagePath appends the image file name to a directory produced by
// DirectoryOf.
func ImagePath(dir string) string {
	return dir + ImageFileName
}

// ExecutableDirectory returns the directory of the running executable with a
// trailing separator. On embedded builds it returns "".
func ExecutableDirectory() (string, error) {
	if !hasFilesystemImage {
		return "", nil
	}
	exe, err := executablePath()
	if err != nil {
		return "", err
	}
	return DirectoryOf(exe), nil
}

// ImageFilePath returns the full path of the boot image, or "" when the image
// is not sourced from the filesystem.
func ImageFilePath() (string, error) {
	if !hasFilesystemImage {
		return "", nil
	}
	dir, err := ExecutableDirectory()
	if err != nil {
		return "", err
	}
	return ImagePath(dir), nil
}

// HasFilesystemImage reports whether this build loads the image from a file.
func HasFilesystemImage() bool { return hasFilesystemImage }

var cachedDirectory = sync.OnceValues(ExecutableDirectory)

// CachedExecutableDirectory resolves the executable directory on first use and
// returns the same result on every later call.
func CachedExecutableDirectory() (string, error) {
	return cachedDirectory()
}
