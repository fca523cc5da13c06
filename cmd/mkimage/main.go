// Command mkimage writes and inspects maxine.vm boot images.
package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/tinyrange/maxboot/internal/entry"
	"github.com/tinyrange/maxboot/internal/image"
	"github.com/tinyrange/maxboot/internal/pathres"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Version is the producer version recorded in written images.
var Version = "v1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, `mkimage - write and inspect boot images

USAGE:
  mkimage build -heap FILE -entry N -locals N [-aux N] [-o FILE]
  mkimage inspect FILE
`)
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
		return errors.New("missing command")
	}
	switch args[0] {
	case "build":
		return build(args[1:])
	case "inspect":
		return inspect(args[1:], os.Stdout)
	case "-h", "-help", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

type buildOptions struct {
	heap     string
	out      string
	progress bool
	header   image.Header
}

func parseBuild(args []string) (buildOptions, error) {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	heap := fs.String("heap", "", "file holding the boot heap")
	out := fs.String("o", pathres.ImageFileName, "output image path")
	entryOffset := fs.Uint64("entry", 0, "offset of the entry function within the heap")
	locals := fs.Uint64("locals", 0, "size of the primordial thread locals")
	aux := fs.Uint64("aux", 0, "size of the auxiliary space")
	version := fs.String("version", Version, "producer version recorded in the image")
	noProgress := fs.Bool("quiet", false, "do not show progress")
	if err := fs.Parse(args); err != nil {
		return buildOptions{}, err
	}
	if *heap == "" {
		return buildOptions{}, errors.New("-heap is required")
	}
	if !semver.IsValid(*version) {
		return buildOptions{}, fmt.Errorf("invalid version %q", *version)
	}
	return buildOptions{
		heap:     *heap,
		out:      *out,
		progress: !*noProgress,
		header: image.Header{
			ABIVersion:         entry.ABIVersion,
			VMRunMethodOffset:  *entryOffset,
			VMThreadLocalsSize: *locals,
			AuxiliarySpaceSize: *aux,
			Producer:           *version,
		},
	}, nil
}

func build(args []string) error {
	opts, err := parseBuild(args)
	if err != nil {
		return err
	}
	return writeImage(opts)
}

func writeImage(opts buildOptions) error {
	in, err := os.Open(opts.heap)
	if err != nil {
		return fmt.Errorf("open heap: %w", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat heap: %w", err)
	}

	h := opts.header
	h.HeapSize = uint64(info.Size())
	h = h.WithDefaults()
	if err := h.Validate(h.Size(), 0, entry.ABIVersion); err != nil {
		return fmt.Errorf("invalid image header: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(opts.out), ".mkimage-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	var writer io.Writer = tmpFile
	if opts.progress {
		bar := progressbar.DefaultBytes(h.Size(), "write "+filepath.Base(opts.out))
		defer bar.Close()
		writer = io.MultiWriter(tmpFile, bar)
	}

	if err := image.Write(writer, h, in); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return fmt.Errorf("close image: %w", err)
	}
	if err := os.Rename(tmpFile.Name(), opts.out); err != nil {
		os.Remove(tmpFile.Name())
		return fmt.Errorf("rename image: %w", err)
	}
	return nil
}

// report is the YAML document printed by inspect.
type report struct {
	Header image.Header `yaml:"header"`
	// Entry is a hex dump of the first bytes of the entry function.
	Entry string `yaml:"entry,omitempty"`
}

const entryDumpLen = 16

func inspect(args []string, w io.Writer) error {
	if len(args) != 1 {
		return errors.New("inspect takes one image path")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, image.HeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	h, err := image.DecodeHeader(buf)
	if err != nil {
		return err
	}

	rep := report{Header: h}
	img, loadErr := image.FileLoader{ABIVersion: entry.ABIVersion, NoExec: true}.Load(args[0])
	if loadErr == nil {
		rep.Entry, loadErr = entryBytes(img)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if loadErr != nil {
		return fmt.Errorf("image does not boot: %w", loadErr)
	}
	return nil
}

// entryBytes dumps the start of the entry function and releases img.
func entryBytes(img *image.Handle) (string, error) {
	defer img.Unmap()
	defer img.Close()

	heap := img.Region()
	fn := entry.Address(img.Heap, img.Header)
	n := min(uint64(entryDumpLen), img.Header.HeapSize-img.Header.VMRunMethodOffset)
	code, err := heap.Window(fn, n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(code), nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mkimage: %v\n", err)
		os.Exit(1)
	}
}
