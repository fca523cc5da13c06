// Package boot runs the launch sequence: resolve and load the image, build
// the primordial memory, publish the linker bridge and call the managed entry
// point.
package boot

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/tinyrange/maxboot/internal/address"
	"github.com/tinyrange/maxboot/internal/dynlink"
	"github.com/tinyrange/maxboot/internal/entry"
	"github.com/tinyrange/maxboot/internal/image"
	"github.com/tinyrange/maxboot/internal/native"
	"github.com/tinyrange/maxboot/internal/pathres"
	"github.com/tinyrange/maxboot/internal/primordial"
)

// Subsystem is initialized after the image is loaded and before control is
// handed to the runtime.
type Subsystem interface {
	Name() string
	Initialize() error
}

// Options configures Run. The zero value boots the image next to the
// executable with the native bridge.
type Options struct {
	// Args are the process arguments including argv[0].
	Args []string
	// ExecutablePath is the path the process was started from; it is only
	// consulted on platforms that cannot query it.
	ExecutablePath string

	LookupEnv func(string) (string, bool)
	// RequiredEnvironment defaults to the platform's requirements.
	RequiredEnvironment []string

	// ImagePath overrides the resolved image location.
	ImagePath string
	Loader    image.Loader

	Allocator           address.Allocator
	ReferenceBufferSize uint64

	// Bridge overrides the native linker bridge.
	Bridge *dynlink.Bridge
	Call   entry.Caller

	Subsystems []Subsystem

	Logger      *slog.Logger
	TraceLoader bool
}

func (o *Options) defaults() {
	if o.LookupEnv == nil {
		o.LookupEnv = os.LookupEnv
	}
	if o.RequiredEnvironment == nil {
		o.RequiredEnvironment = defaultRequiredEnvironment
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Run boots the managed runtime and returns its exit code. A non-nil error is
// always a *FatalError; nothing after a fatal error is attempted.
func Run(opts Options) (int32, error) {
	opts.defaults()
	logger := opts.Logger

	if err := CheckEnvironment(opts.LookupEnv, opts.RequiredEnvironment); err != nil {
		return 0, err
	}
	if opts.TraceLoader {
		traceArguments(logger, opts)
	}

	pathres.SetExecutablePath(opts.ExecutablePath)
	path, loader, err := resolveImage(opts)
	if err != nil {
		return 0, err
	}

	img, err := loader.Load(path)
	if err != nil {
		return 0, Fatal(ExitImage, fmt.Errorf("load image: %w", err))
	}
	if opts.TraceLoader {
		logger.Debug("image loaded", "path", path, "fd", img.FD, "heap", img.Heap, "extent", img.Extent,
			"entryOffset", img.Header.VMRunMethodOffset,
			"threadLocalsSize", img.Header.VMThreadLocalsSize,
			"auxiliarySpaceSize", img.Header.AuxiliarySpaceSize)
	}

	for _, s := range opts.Subsystems {
		if err := s.Initialize(); err != nil {
			return 0, Fatal(ExitSubsystem, fmt.Errorf("initialize %s: %w", s.Name(), err))
		}
	}

	bridge, err := linkerBridge(opts)
	if err != nil {
		return 0, Fatal(ExitBridge, err)
	}

	ctx, aux, err := primordial.Build(img.Header, primordial.Options{
		Allocator:           opts.Allocator,
		ReferenceBufferSize: opts.ReferenceBufferSize,
	})
	if err != nil {
		return 0, Fatal(ExitAuxiliarySpace, err)
	}
	defer ctx.Release()
	if opts.TraceLoader {
		logger.Debug("primordial VM thread locals allocated", "address", ctx.Base(), "size", ctx.Size())
		if !aux.Base().IsZero() {
			logger.Debug("auxiliary space allocated", "address", aux.Base(), "size", aux.Size())
		}
	}

	argv, err := entry.NewArgv(opts.Args)
	if err != nil {
		return 0, Fatal(ExitBridge, err)
	}
	defer argv.Release()

	// The runtime takes this OS thread as its primordial thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	code := entry.Invoker{Call: opts.Call, Logger: logger}.Invoke(img, entry.Args{
		PrimordialContext: ctx.Base(),
		HeapBase:          img.Heap,
		AuxiliarySpace:    aux.Base(),
		OpenLibrary:       bridge.OpenLibrary,
		ResolveSymbol:     bridge.ResolveSymbol,
		Argc:              argv.Argc(),
		Argv:              argv.Base(),
	})
	if opts.TraceLoader {
		logger.Debug("exit code", "code", code)
	}
	return code, nil
}

// RequiredEnvironment returns the variables this platform needs set before
// booting.
func RequiredEnvironment() []string {
	return append([]string(nil), defaultRequiredEnvironment...)
}

// CheckEnvironment reports the first name that lookup does not find as a
// fatal error with ExitMissingEnvironment. Launchers call it before doing any
// other work.
func CheckEnvironment(lookup func(string) (string, bool), names []string) error {
	for _, name := range names {
		if _, ok := lookup(name); !ok {
			return missingEnvironment(name)
		}
	}
	return nil
}

// resolveImage picks the image location and the loader for it. Builds
// without a filesystem image use the embedded image instead.
func resolveImage(opts Options) (string, image.Loader, error) {
	if !pathres.HasFilesystemImage() {
		if opts.Loader != nil {
			return "", opts.Loader, nil
		}
		return "", image.Embedded(entry.ABIVersion), nil
	}

	path := opts.ImagePath
	if path == "" {
		p, err := pathres.ImageFilePath()
		if err != nil {
			return "", nil, Fatal(ExitExecutablePath, err)
		}
		path = p
	}
	if opts.Loader != nil {
		return path, opts.Loader, nil
	}
	return path, image.FileLoader{ABIVersion: entry.ABIVersion}, nil
}

func linkerBridge(opts Options) (dynlink.Bridge, error) {
	if opts.Bridge != nil {
		return *opts.Bridge, nil
	}
	if err := native.Register(); err != nil {
		return dynlink.Bridge{}, fmt.Errorf("register native callbacks: %w", err)
	}
	dynlink.Freeze()
	b, err := dynlink.NewBridge()
	if err != nil {
		return dynlink.Bridge{}, fmt.Errorf("create linker bridge: %w", err)
	}
	return b, nil
}

func traceArguments(logger *slog.Logger, opts Options) {
	if ldpath, ok := opts.LookupEnv("LD_LIBRARY_PATH"); ok {
		logger.Debug("LD_LIBRARY_PATH=" + ldpath)
	} else {
		logger.Debug("LD_LIBRARY_PATH not set")
	}
	logger.Debug("arguments", "argc", len(opts.Args))
	for i, arg := range opts.Args {
		logger.Debug("arg", "index", i, "value", arg)
	}
}
