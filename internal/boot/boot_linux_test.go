//go:build linux && !maxboot_embedded

package boot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunResolvesImageNextToExecutable(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)
	exe, err = filepath.EvalSymlinks(exe)
	require.NoError(t, err)

	loader := &recordingLoader{}
	opts := baseOptions(t, nil)
	opts.Loader = loader
	opts.ImagePath = ""

	_, err = Run(opts)
	require.Error(t, err)
	assert.Equal(t, ExitImage, ExitCode(err))
	require.Len(t, loader.paths, 1)
	assert.Equal(t, filepath.Dir(exe)+"/maxine.vm", loader.paths[0])
}
