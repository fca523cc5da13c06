package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinyrange/maxboot/internal/entry"
	"github.com/tinyrange/maxboot/internal/image"
	"gopkg.in/yaml.v3"
)

func TestBuildAndInspect(t *testing.T) {
	dir := t.TempDir()
	heapPath := filepath.Join(dir, "heap.bin")
	heap := bytes.Repeat([]byte{0xcc}, 5000)
	require.NoError(t, os.WriteFile(heapPath, heap, 0o644))
	out := filepath.Join(dir, "maxine.vm")

	opts, err := parseBuild([]string{"-heap", heapPath, "-entry", "16", "-locals", "64", "-aux", "8", "-o", out, "-version", "v1.4.0"})
	require.NoError(t, err)
	opts.progress = false
	require.NoError(t, writeImage(opts))

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{out}, &buf))
	var rep report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rep))
	h := rep.Header
	assert.Equal(t, strings.Repeat("cc", entryDumpLen), rep.Entry)
	assert.Equal(t, uint32(entry.ABIVersion), h.ABIVersion)
	assert.Equal(t, uint64(16), h.VMRunMethodOffset)
	assert.Equal(t, uint64(64), h.VMThreadLocalsSize)
	assert.Equal(t, uint64(8), h.AuxiliarySpaceSize)
	assert.Equal(t, uint64(len(heap)), h.HeapSize)
	assert.Equal(t, "v1.4.0", h.Producer)

	img, err := image.FileLoader{ABIVersion: entry.ABIVersion, NoExec: true}.Load(out)
	require.NoError(t, err)
	defer img.Unmap()
	defer img.Close()
	assert.Equal(t, heap, img.Region().Bytes()[:len(heap)])
}

func TestBuildRejects(t *testing.T) {
	dir := t.TempDir()
	heapPath := filepath.Join(dir, "heap.bin")
	require.NoError(t, os.WriteFile(heapPath, make([]byte, 64), 0o644))

	for _, args := range [][]string{
		{"-entry", "0"},
		{"-heap", heapPath, "-version", "1.0"},
	} {
		_, err := parseBuild(args)
		assert.Error(t, err, "%v", args)
	}

	opts, err := parseBuild([]string{"-heap", heapPath, "-entry", "64", "-o", filepath.Join(dir, "x.vm")})
	require.NoError(t, err)
	opts.progress = false
	assert.ErrorIs(t, writeImage(opts), image.ErrEntryOffset)
	_, err = os.Stat(filepath.Join(dir, "x.vm"))
	assert.True(t, os.IsNotExist(err))

	opts, err = parseBuild([]string{"-heap", heapPath, "-version", "v2.0.0"})
	require.NoError(t, err)
	assert.ErrorIs(t, writeImage(opts), image.ErrProducerVersion)
}

func TestInspectShortEntry(t *testing.T) {
	dir := t.TempDir()
	heapPath := filepath.Join(dir, "heap.bin")
	require.NoError(t, os.WriteFile(heapPath, []byte{0x90, 0x90, 0xc3}, 0o644))
	out := filepath.Join(dir, "short.vm")

	opts, err := parseBuild([]string{"-heap", heapPath, "-entry", "1", "-o", out})
	require.NoError(t, err)
	opts.progress = false
	require.NoError(t, writeImage(opts))

	var buf bytes.Buffer
	require.NoError(t, inspect([]string{out}, &buf))
	var rep report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &rep))
	assert.Equal(t, "90c3", rep.Entry)
}

func TestInspectRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.vm")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), image.HeaderSize), 0o644))
	assert.ErrorIs(t, inspect([]string{path}, &bytes.Buffer{}), image.ErrBadMagic)
}

func TestRunUnknownCommand(t *testing.T) {
	assert.Error(t, run(nil))
	assert.Error(t, run([]string{"frobnicate"}))
}
