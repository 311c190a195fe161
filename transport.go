package cccl

import (
	"reflect"
	"unsafe"
)

// Transport selects how a closure travels into its kernel entry point.
// The choice is fixed per closure type: a type at or below
// ByValueThresholdBytes is copied into the kernel argument area, anything
// larger is staged in device memory and passed by reference.
type Transport int

const (
	// TransportByValue copies the closure into the invocation arguments
	TransportByValue Transport = iota
	// TransportByPointer stages the closure in device memory first
	TransportByPointer
)

// String returns the transport strategy as a string
func (t Transport) String() string {
	switch t {
	case TransportByValue:
		return "by-value"
	case TransportByPointer:
		return "by-pointer"
	default:
		return "unknown"
	}
}

// transportForSize applies the threshold rule. A closure of exactly the
// threshold size still goes by value.
func transportForSize(size int) Transport {
	if size <= ByValueThresholdBytes {
		return TransportByValue
	}
	return TransportByPointer
}

// EntryPoint identifies a compiled kernel entry point. Each closure type
// yields exactly one entry point: the by-value variant or the by-pointer
// variant, determined by the type's size. EntryPoint is the key for the
// function attributes cache, so two launchers over the same closure type
// share one capability snapshot.
type EntryPoint struct {
	closure   reflect.Type
	transport Transport
}

// Name returns a human-readable entry point name for diagnostics
func (e EntryPoint) Name() string {
	return "launch_closure_" + e.transport.String() + "[" + e.closure.String() + "]"
}

// Transport returns the transport strategy this entry point was compiled for
func (e EntryPoint) Transport() Transport {
	return e.transport
}

// ClosureSize returns the byte size of the entry point's closure type
func (e EntryPoint) ClosureSize() int {
	return int(e.closure.Size())
}

// entryPointFor derives the entry point for a closure type.
func entryPointFor[F Closure]() EntryPoint {
	t := reflect.TypeOf((*F)(nil)).Elem()
	return EntryPoint{
		closure:   t,
		transport: transportForSize(int(t.Size())),
	}
}

// The two generated entry points per closure type. Each invokes the closure
// exactly once for the lane it is called on.

func launchClosureByValue[F Closure](f F, tid ThreadID) {
	f.Execute(tid)
}

func launchClosureByPointer[F Closure](f *F, tid ThreadID) {
	// copy to registers
	fReg := *f
	fReg.Execute(tid)
}

// closureBytes exposes a closure's in-memory representation for staging.
// The returned slice aliases f and is only valid while f is live.
func closureBytes[F Closure](f *F) []byte {
	size := unsafe.Sizeof(*f)
	if size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(f)), size)
}
