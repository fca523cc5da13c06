// Package entry transfers control to the managed runtime.
//
// The entry point is machine code inside the image heap built separately from
// this launcher. Its signature is a binary contract, versioned by ABIVersion
// and checked against the image header at load time:
//
//	int32 run(Address primordialContext,
//	          Address heapBase,
//	          Address auxiliarySpace,
//	          void *(*openLibrary)(char *path),
//	          void *(*resolveSymbol)(void *handle, const char *name),
//	          int argc,
//	          char *argv[])
package entry

import (
	"log/slog"

	"github.com/tinyrange/maxboot/internal/address"
	"github.com/tinyrange/maxboot/internal/image"
)

// ABIVersion numbers the entry signature above. Images record the version
// they were built against.
const ABIVersion = 1

// ArgCount is the number of arguments the entry point takes.
const ArgCount = 7

// Args is the argument record passed to the entry point, in ABI order.
type Args struct {
	PrimordialContext address.Address
	HeapBase          address.Address
	AuxiliarySpace    address.Address
	OpenLibrary       uintptr
	ResolveSymbol     uintptr
	Argc              int32
	Argv              address.Address
}

// Words lays the arguments out as machine words in ABI order.
func (a Args) Words() [ArgCount]uintptr {
	return [ArgCount]uintptr{
		a.PrimordialContext.Uintptr(),
		a.HeapBase.Uintptr(),
		a.AuxiliarySpace.Uintptr(),
		a.OpenLibrary,
		a.ResolveSymbol,
		uintptr(a.Argc),
		a.Argv.Uintptr(),
	}
}

// Address returns the entry point of the image loaded at heap.
func Address(heap address.Address, h image.Header) address.Address {
	return heap.Add(h.VMRunMethodOffset)
}

// Caller calls the function at fn with the given words and returns its 32-bit
// result.
type Caller func(fn address.Address, args [ArgCount]uintptr) int32

// Invoker calls the entry point of a loaded image.
type Invoker struct {
	// Call defaults to a native call.
	Call   Caller
	Logger *slog.Logger
}

// Invoke runs the managed runtime to completion and returns its exit code
// unchanged. The image file descriptor is closed afterwards; failing to close
// it is only a warning.
func (inv Invoker) Invoke(img *image.Handle, args Args) int32 {
	logger := inv.Logger
	if logger == nil {
		logger = slog.Default()
	}
	call := inv.Call
	if call == nil {
		call = NativeCall
	}

	fn := Address(img.Heap, img.Header)
	logger.Debug("entering managed runtime",
		"entry", fn,
		"primordialContext", args.PrimordialContext,
		"heap", args.HeapBase,
		"auxiliarySpace", args.AuxiliarySpace,
		"openLibrary", address.Address(args.OpenLibrary),
		"resolveSymbol", address.Address(args.ResolveSymbol),
		"argc", args.Argc,
		"argv", args.Argv,
	)

	code := call(fn, args.Words())
	logger.Debug("start method exited", "code", code)

	if err := img.Close(); err != nil {
		logger.Warn("could not close image file", "error", err)
	}
	return code
}
