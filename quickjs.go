package quickjsruntime

import "context"

// RuntimeRef references a QuickJS runtime in guest memory.
type RuntimeRef uint32

// ContextRef references a QuickJS context in guest memory.
type ContextRef uint32

// ValueRef references a heap-boxed JSValue in guest memory. Ref 0
// never references a box; passed as `this` to Call it selects the
// engine's null sentinel, and FreeValue ignores it.
type ValueRef uint32

// IsNil reports whether the ref carries no value box.
func (v ValueRef) IsNil() bool { return v == 0 }

// Tag identifies the kind of an engine value. The numbering is the
// engine's own tag set.
type Tag int32

const (
	TagObject    Tag = -1
	TagString    Tag = -7
	TagSymbol    Tag = -8
	TagInt       Tag = 0
	TagBool      Tag = 1
	TagNull      Tag = 2
	TagUndefined Tag = 3
	TagException Tag = 6
	TagFloat64   Tag = 7
)

// Engine produces isolated engine instances from a single compiled
// QuickJS module. Implementations are safe for concurrent use.
type Engine interface {
	// Instantiate creates a fresh guest instance with its own linear
	// memory and engine heap. Instances are independent of each other.
	Instantiate(ctx context.Context) (Instance, error)
}

// Instance is one isolated QuickJS world. It is the minimum engine
// capability surface the bridge consumes: lifecycle, evaluation,
// property access, calls, reference management, value construction
// and inspection, and the pending-exception slot.
//
// Instance is NOT thread-safe; a single goroutine drives it at a time.
type Instance interface {
	// NewRuntime allocates an engine runtime.
	NewRuntime(ctx context.Context) (RuntimeRef, error)
	// FreeRuntime destroys a runtime. All contexts and values created
	// on it must have been freed first.
	FreeRuntime(ctx context.Context, rt RuntimeRef) error
	// SetMemoryLimit caps the runtime's allocation in bytes.
	// Allocations beyond the cap fail inside the engine.
	SetMemoryLimit(ctx context.Context, rt RuntimeRef, limit int64) error
	// MemoryUsed reports the runtime's currently allocated bytes.
	MemoryUsed(ctx context.Context, rt RuntimeRef) (int64, error)

	// NewContext allocates an engine context on a runtime.
	NewContext(ctx context.Context, rt RuntimeRef) (ContextRef, error)
	// FreeContext destroys a context. Freed before its runtime.
	FreeContext(ctx context.Context, jctx ContextRef) error

	// Eval evaluates source as global-scope script code and returns
	// the completion value, which may be exception-tagged.
	Eval(ctx context.Context, jctx ContextRef, source string) (ValueRef, error)
	// GlobalObject returns a new reference to the global object.
	GlobalObject(ctx context.Context, jctx ContextRef) (ValueRef, error)
	// GetProperty reads obj.name and returns the resulting value,
	// which may be exception-tagged.
	GetProperty(ctx context.Context, jctx ContextRef, obj ValueRef, name string) (ValueRef, error)
	// SetProperty writes obj.name = val. The property write consumes
	// one reference to val.
	SetProperty(ctx context.Context, jctx ContextRef, obj ValueRef, name string, val ValueRef) error
	// Call invokes fn with the given this and arguments. Arguments are
	// borrowed, not consumed; the caller frees them afterward. The
	// result may be exception-tagged.
	Call(ctx context.Context, jctx ContextRef, fn, this ValueRef, args []ValueRef) (ValueRef, error)

	// Tag reports the value's kind.
	Tag(ctx context.Context, jctx ContextRef, val ValueRef) (Tag, error)
	// ToInt32, ToBool and ToFloat64 extract primitive payloads. They
	// do not consume val.
	ToInt32(ctx context.Context, jctx ContextRef, val ValueRef) (int32, error)
	ToBool(ctx context.Context, jctx ContextRef, val ValueRef) (bool, error)
	ToFloat64(ctx context.Context, jctx ContextRef, val ValueRef) (float64, error)
	// ToCString copies the value's UTF-8 text out of guest memory,
	// releasing the engine-side C string before returning. Does not
	// consume val.
	ToCString(ctx context.Context, jctx ContextRef, val ValueRef) (string, error)
	// ToStringValue applies the engine's string conversion and returns
	// a new value: a string, or exception-tagged if conversion threw.
	// Does not consume val.
	ToStringValue(ctx context.Context, jctx ContextRef, val ValueRef) (ValueRef, error)

	// Dup returns a new reference to val.
	Dup(ctx context.Context, jctx ContextRef, val ValueRef) (ValueRef, error)
	// FreeValue releases one reference. Ref 0 is ignored.
	FreeValue(ctx context.Context, jctx ContextRef, val ValueRef) error

	// Value constructors. NewString copies v into guest memory.
	NewNull(ctx context.Context, jctx ContextRef) (ValueRef, error)
	NewBool(ctx context.Context, jctx ContextRef, v bool) (ValueRef, error)
	NewInt64(ctx context.Context, jctx ContextRef, v int64) (ValueRef, error)
	NewFloat64(ctx context.Context, jctx ContextRef, v float64) (ValueRef, error)
	NewString(ctx context.Context, jctx ContextRef, v string) (ValueRef, error)

	// GetException drains the context's pending exception slot and
	// returns the exception value. The slot is clear afterward.
	GetException(ctx context.Context, jctx ContextRef) (ValueRef, error)

	// Close releases the guest instance and everything in it.
	Close(ctx context.Context) error
}

// Memory is read/write access to guest linear memory.
type Memory interface {
	Read(offset, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
}

// Allocator allocates scratch space in guest linear memory.
type Allocator interface {
	Alloc(size uint32) (uint32, error)
	Free(ptr uint32) error
}
