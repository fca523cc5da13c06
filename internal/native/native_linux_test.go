//go:build linux && (amd64 || arm64)

package native

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"strings"
	"testing"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyrange/maxboot/internal/address"
	"github.com/tinyrange/maxboot/internal/diag"
	"github.com/tinyrange/maxboot/internal/dynlink"
)

func TestExecutableDirectoryIdempotent(t *testing.T) {
	first, err := ExecutableDirectory()
	require.NoError(t, err)
	second, err := ExecutableDirectory()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasSuffix(first, "/"))

	c1, c2 := ExecutablePathC(), ExecutablePathC()
	require.False(t, c1.IsZero())
	assert.Equal(t, c1, c2)
	assert.Equal(t, first, address.CString(c1))
}

func TestEnvironment(t *testing.T) {
	env := Environment()
	require.False(t, env.IsZero())

	first := address.Address(binary.NativeEndian.Uint64(unsafeWord(env)))
	if first.IsZero() {
		t.Skip("empty environment")
	}
	assert.Contains(t, address.CString(first), "=")
}

func TestRegisterPublishesCallbacks(t *testing.T) {
	require.NoError(t, Register())
	require.NoError(t, Register(), "Register is idempotent")

	for _, name := range []string{SymbolExecutablePath, SymbolEnvironment, SymbolExit, SymbolTrapExit} {
		assert.NotZero(t, dynlink.Lookup(0, name), name)
	}

	fn := dynlink.Lookup(0, SymbolExecutablePath)
	got, _, _ := purego.SyscallN(fn)
	assert.Equal(t, ExecutablePathC().Uintptr(), got)

	fn = dynlink.Lookup(0, SymbolEnvironment)
	got, _, _ = purego.SyscallN(fn)
	assert.Equal(t, Environment().Uintptr(), got)
}

func TestExitCallback(t *testing.T) {
	require.NoError(t, Register())

	code := 0
	f := func(c int) { code = c }
	exitFunc.Store(&f)
	defer exitFunc.Store(nil)

	fn := dynlink.Lookup(0, SymbolExit)
	purego.SyscallN(fn, uintptr(uint32(0xffffffff)))
	assert.Equal(t, -1, code)
}

func TestTrapExitUsesReporter(t *testing.T) {
	var logs bytes.Buffer
	code := 0
	SetReporter(diag.Reporter{
		Resolver: diag.NewTable([]diag.Module{{Path: "/opt/libvm.so", Base: 0x1000, Start: 0x1000, End: 0x2000,
			Symbols: []diag.Symbol{{Name: "vm_trap", Addr: 0x1800}}}}),
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
		Exit:   func(c int) { code = c },
	})
	defer reporter.Store(nil)

	TrapExit(9, 0x1804)
	assert.Equal(t, 9, code)
	assert.Contains(t, logs.String(), "at vm_trap (0x1800+4)")
}

func unsafeWord(a address.Address) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(a.Uintptr())), 8)
}
