//go:build maxboot_embedded

package pathres

// Embedded builds carry the image in memory; there is no executable file to
// locate it by.
const hasFilesystemImage = false

func executablePath() (string, error) { return "", nil }

func SetExecutablePath(string) {}
