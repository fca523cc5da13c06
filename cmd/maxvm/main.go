// Command maxvm boots the managed runtime from the maxine.vm image beside the
// executable. All arguments are passed to the runtime.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/tinyrange/maxboot/internal/boot"
	"github.com/tinyrange/maxboot/internal/config"
	"github.com/tinyrange/maxboot/internal/diag"
	"github.com/tinyrange/maxboot/internal/dynlink"
	"github.com/tinyrange/maxboot/internal/native"
	"github.com/tinyrange/maxboot/internal/pathres"
	"github.com/tinyrange/maxboot/internal/primordial"
)

type launcher struct {
	args                []string
	lookupEnv           func(string) (string, bool)
	requiredEnvironment []string
	// configDir returns the directory holding config.FileName.
	configDir func() (string, error)
	boot      func(boot.Options) (int32, error)
}

func (l launcher) run() (int32, error) {
	if err := boot.CheckEnvironment(l.lookupEnv, l.requiredEnvironment); err != nil {
		return 0, err
	}

	executable := l.args[0]
	if p, err := os.Executable(); err == nil {
		executable = p
	}
	pathres.SetExecutablePath(executable)

	// A missing executable directory only skips the config file; the boot
	// sequence reports it when resolving the image.
	dir, _ := l.configDir()
	cfg, err := config.Load(dir, l.lookupEnv)
	if err != nil {
		return 0, boot.Fatal(boot.ExitConfig, err)
	}

	logger := slog.New(cfg.Handler(os.Stderr)).With("boot", uuid.NewString())
	slog.SetDefault(logger)
	if cfg.Trace.Linker {
		dynlink.SetTrace(logger)
	}
	native.SetReporter(diag.Reporter{Resolver: diag.DefaultResolver(), Logger: logger})

	return l.boot(boot.Options{
		Args:                l.args,
		ExecutablePath:      executable,
		LookupEnv:           l.lookupEnv,
		RequiredEnvironment: l.requiredEnvironment,
		ReferenceBufferSize: primordial.DefaultReferenceBufferSize,
		Logger:              logger,
		TraceLoader:         cfg.Trace.Loader,
	})
}

func main() {
	code, err := launcher{
		args:                os.Args,
		lookupEnv:           os.LookupEnv,
		requiredEnvironment: boot.RequiredEnvironment(),
		configDir:           pathres.CachedExecutableDirectory,
		boot:                boot.Run,
	}.run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "maxvm: %v\n", err)
		os.Exit(boot.ExitCode(err))
	}
	os.Exit(int(code))
}
