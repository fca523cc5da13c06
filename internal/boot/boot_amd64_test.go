//go:build linux && amd64

package boot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tinyrange/maxboot/internal/entry"
	"github.com/tinyrange/maxboot/internal/image"
)

func TestRunNativeEntry(t *testing.T) {
	// mov eax, r9d ; ret  (returns argc)
	data := buildImageWithCode(t, []byte{0x44, 0x89, 0xc8, 0xc3})

	opts := baseOptions(t, nil)
	opts.Loader = image.MemoryLoader{Data: data, ABIVersion: entry.ABIVersion}
	opts.Bridge = nil
	opts.Args = []string{"maxvm", "a", "b"}

	got, err := Run(opts)
	if ExitCode(err) == ExitImage {
		t.Skipf("executable heap unavailable: %v", err)
	}
	assert.NoError(t, err)
	assert.Equal(t, int32(3), got)
}
