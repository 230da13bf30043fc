package engine

import (
	"context"
	"math"

	"github.com/tetratelabs/wazero/api"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
	"github.com/wippyai/quickjs-runtime/errors"
)

// scratchSize is the guest allocation held for out-parameters, such as
// the string length slot written by qjs_to_cstring.
const scratchSize = 8

// Instance is a running guest instance of the QuickJS bridge binary.
// It is NOT safe for concurrent use from multiple goroutines.
// Each goroutine should have its own Instance, or access must be
// synchronized externally.
type Instance struct {
	module  api.Module
	memory  *GuestMemory
	alloc   *GuestAllocator
	fns     map[string]api.Function
	stack   []uint64
	scratch uint32
	closed  bool
}

func newInstance(ctx context.Context, mod api.Module) (*Instance, error) {
	mem := mod.Memory()
	if mem == nil {
		return nil, errors.New(errors.PhaseInstance, errors.KindMissingExport).
			Detail("module has no exported memory").
			Build()
	}

	inst := &Instance{
		module: mod,
		memory: &GuestMemory{mem: mem},
		fns:    make(map[string]api.Function, len(requiredExports)),
		stack:  make([]uint64, 8), // pre-allocate stack buffer
	}

	for _, name := range requiredExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			return nil, errors.NewMissingExportsError([]string{name})
		}
		inst.fns[name] = fn
	}

	inst.alloc = &GuestAllocator{
		mallocFn: inst.fns[ExportMalloc],
		freeFn:   inst.fns[ExportFree],
		stack:    inst.stack,
	}
	inst.alloc.setContext(ctx)

	scratch, err := inst.alloc.Alloc(scratchSize)
	if err != nil {
		return nil, err
	}
	inst.scratch = scratch

	return inst, nil
}

// call invokes a cached export with the given flat parameters and
// returns stack slot zero when the export produces a result.
func (i *Instance) call(ctx context.Context, name string, results int, params ...uint64) (uint64, error) {
	if i.closed {
		return 0, errors.Closed("instance")
	}
	fn, ok := i.fns[name]
	if !ok {
		return 0, errors.NotFound(errors.PhaseEngine, "export", name)
	}

	n := len(params)
	if results > n {
		n = results
	}
	stack := i.stack[:n]
	copy(stack, params)

	if err := fn.CallWithStack(ctx, stack); err != nil {
		return 0, errors.Trap(name, err)
	}
	if results == 0 {
		return 0, nil
	}
	return stack[0], nil
}

// callRef invokes a box-producing export. The shim returns a null
// pointer only when the guest heap cannot box the result.
func (i *Instance) callRef(ctx context.Context, name string, params ...uint64) (quickjsruntime.ValueRef, error) {
	v, err := i.call(ctx, name, 1, params...)
	if err != nil {
		return 0, err
	}
	if uint32(v) == 0 {
		return 0, errors.New(errors.PhaseEngine, errors.KindAllocation).
			Detail("%s returned a null reference", name).
			Build()
	}
	return quickjsruntime.ValueRef(uint32(v)), nil
}

// writeBytes copies data into a fresh guest allocation. The caller
// releases the returned pointer with freeGuest.
func (i *Instance) writeBytes(data []byte) (uint32, error) {
	size := uint32(len(data))
	if size == 0 {
		size = 1 // malloc(0) may legally return 0
	}
	ptr, err := i.alloc.Alloc(size)
	if err != nil {
		return 0, err
	}
	if len(data) > 0 {
		if err := i.memory.Write(ptr, data); err != nil {
			i.freeGuest(ptr)
			return 0, err
		}
	}
	return ptr, nil
}

// writeCString writes s plus a terminating NUL for exports that take
// C string pointers.
func (i *Instance) writeCString(s string) (uint32, error) {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return i.writeBytes(buf)
}

func (i *Instance) freeGuest(ptr uint32) {
	if ptr == 0 {
		return
	}
	if err := i.alloc.Free(ptr); err != nil {
		debugf("free guest buffer %d: %v", ptr, err)
	}
}

// NewRuntime allocates a QuickJS runtime on the guest heap.
func (i *Instance) NewRuntime(ctx context.Context) (quickjsruntime.RuntimeRef, error) {
	v, err := i.call(ctx, ExportNewRuntime, 1)
	if err != nil {
		return 0, err
	}
	if uint32(v) == 0 {
		return 0, errors.New(errors.PhaseEngine, errors.KindAllocation).
			Detail("%s returned a null runtime", ExportNewRuntime).
			Build()
	}
	return quickjsruntime.RuntimeRef(uint32(v)), nil
}

func (i *Instance) FreeRuntime(ctx context.Context, rt quickjsruntime.RuntimeRef) error {
	_, err := i.call(ctx, ExportFreeRuntime, 0, uint64(rt))
	return err
}

func (i *Instance) SetMemoryLimit(ctx context.Context, rt quickjsruntime.RuntimeRef, limit int64) error {
	_, err := i.call(ctx, ExportSetMemoryLimit, 0, uint64(rt), uint64(limit))
	return err
}

func (i *Instance) MemoryUsed(ctx context.Context, rt quickjsruntime.RuntimeRef) (int64, error) {
	v, err := i.call(ctx, ExportMemoryUsed, 1, uint64(rt))
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

// NewContext allocates a QuickJS context on a runtime.
func (i *Instance) NewContext(ctx context.Context, rt quickjsruntime.RuntimeRef) (quickjsruntime.ContextRef, error) {
	v, err := i.call(ctx, ExportNewContext, 1, uint64(rt))
	if err != nil {
		return 0, err
	}
	if uint32(v) == 0 {
		return 0, errors.New(errors.PhaseEngine, errors.KindAllocation).
			Detail("%s returned a null context", ExportNewContext).
			Build()
	}
	return quickjsruntime.ContextRef(uint32(v)), nil
}

func (i *Instance) FreeContext(ctx context.Context, jctx quickjsruntime.ContextRef) error {
	_, err := i.call(ctx, ExportFreeContext, 0, uint64(jctx))
	return err
}

// Eval evaluates source as global-scope script code. The completion
// value may be exception-tagged; the caller inspects it with Tag.
func (i *Instance) Eval(ctx context.Context, jctx quickjsruntime.ContextRef, source string) (quickjsruntime.ValueRef, error) {
	i.alloc.setContext(ctx)
	ptr, err := i.writeBytes([]byte(source))
	if err != nil {
		return 0, err
	}
	defer i.freeGuest(ptr)

	return i.callRef(ctx, ExportEval, uint64(jctx), uint64(ptr), uint64(uint32(len(source))))
}

func (i *Instance) GlobalObject(ctx context.Context, jctx quickjsruntime.ContextRef) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportGlobalObject, uint64(jctx))
}

func (i *Instance) GetProperty(ctx context.Context, jctx quickjsruntime.ContextRef, obj quickjsruntime.ValueRef, name string) (quickjsruntime.ValueRef, error) {
	i.alloc.setContext(ctx)
	namePtr, err := i.writeCString(name)
	if err != nil {
		return 0, err
	}
	defer i.freeGuest(namePtr)

	return i.callRef(ctx, ExportGetProperty, uint64(jctx), uint64(obj), uint64(namePtr))
}

// SetProperty writes obj.name = val, consuming one reference to val.
func (i *Instance) SetProperty(ctx context.Context, jctx quickjsruntime.ContextRef, obj quickjsruntime.ValueRef, name string, val quickjsruntime.ValueRef) error {
	i.alloc.setContext(ctx)
	namePtr, err := i.writeCString(name)
	if err != nil {
		return err
	}
	defer i.freeGuest(namePtr)

	v, err := i.call(ctx, ExportSetProperty, 1, uint64(jctx), uint64(obj), uint64(namePtr), uint64(val))
	if err != nil {
		return err
	}
	if int32(uint32(v)) < 0 {
		return errors.New(errors.PhaseEngine, errors.KindInvalidData).
			Detail("property write %q threw", name).
			Build()
	}
	return nil
}

// Call invokes fn with the given this and arguments. Ref 0 as this
// selects the engine's null sentinel. Arguments are borrowed; the
// caller frees them afterward.
func (i *Instance) Call(ctx context.Context, jctx quickjsruntime.ContextRef, fn, this quickjsruntime.ValueRef, args []quickjsruntime.ValueRef) (quickjsruntime.ValueRef, error) {
	i.alloc.setContext(ctx)

	var argvPtr uint32
	if len(args) > 0 {
		ptr, err := i.alloc.Alloc(uint32(4 * len(args)))
		if err != nil {
			return 0, err
		}
		defer i.freeGuest(ptr)
		for n, ref := range args {
			if err := i.memory.WriteU32(ptr+uint32(4*n), uint32(ref)); err != nil {
				return 0, err
			}
		}
		argvPtr = ptr
	}

	return i.callRef(ctx, ExportCall,
		uint64(jctx), uint64(fn), uint64(this), uint64(uint32(len(args))), uint64(argvPtr))
}

func (i *Instance) Tag(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (quickjsruntime.Tag, error) {
	v, err := i.call(ctx, ExportTag, 1, uint64(val))
	if err != nil {
		return 0, err
	}
	return quickjsruntime.Tag(int32(uint32(v))), nil
}

func (i *Instance) ToInt32(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (int32, error) {
	v, err := i.call(ctx, ExportToInt32, 1, uint64(jctx), uint64(val))
	if err != nil {
		return 0, err
	}
	return int32(uint32(v)), nil
}

func (i *Instance) ToBool(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (bool, error) {
	v, err := i.call(ctx, ExportToBool, 1, uint64(jctx), uint64(val))
	if err != nil {
		return false, err
	}
	return int32(uint32(v)) != 0, nil
}

func (i *Instance) ToFloat64(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (float64, error) {
	v, err := i.call(ctx, ExportToFloat64, 1, uint64(jctx), uint64(val))
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ToCString copies the value's UTF-8 text out of guest memory. The
// engine-side C string is released before returning, so the result
// stays valid independently of the instance.
func (i *Instance) ToCString(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (string, error) {
	v, err := i.call(ctx, ExportToCString, 1, uint64(jctx), uint64(val), uint64(i.scratch))
	if err != nil {
		return "", err
	}
	ptr := uint32(v)
	if ptr == 0 {
		return "", errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Detail("string conversion returned no data").
			Build()
	}

	length, err := i.memory.ReadU32(i.scratch)
	if err != nil {
		return "", err
	}
	data, err := i.memory.Read(ptr, length)
	if err != nil {
		return "", err
	}
	s := string(data) // copy before the guest reclaims the buffer

	if _, err := i.call(ctx, ExportFreeCString, 0, uint64(jctx), uint64(ptr)); err != nil {
		return "", err
	}
	return s, nil
}

func (i *Instance) ToStringValue(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportToString, uint64(jctx), uint64(val))
}

func (i *Instance) Dup(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportDup, uint64(jctx), uint64(val))
}

func (i *Instance) FreeValue(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) error {
	if val.IsNil() {
		return nil
	}
	_, err := i.call(ctx, ExportFreeValue, 0, uint64(jctx), uint64(val))
	return err
}

func (i *Instance) NewNull(ctx context.Context, jctx quickjsruntime.ContextRef) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportNewNull)
}

func (i *Instance) NewBool(ctx context.Context, jctx quickjsruntime.ContextRef, v bool) (quickjsruntime.ValueRef, error) {
	var flag uint64
	if v {
		flag = 1
	}
	return i.callRef(ctx, ExportNewBool, uint64(jctx), flag)
}

func (i *Instance) NewInt64(ctx context.Context, jctx quickjsruntime.ContextRef, v int64) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportNewInt64, uint64(jctx), uint64(v))
}

func (i *Instance) NewFloat64(ctx context.Context, jctx quickjsruntime.ContextRef, v float64) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportNewFloat64, uint64(jctx), math.Float64bits(v))
}

// NewString copies v into guest memory and builds an engine string
// from it. The staging buffer is released before returning.
func (i *Instance) NewString(ctx context.Context, jctx quickjsruntime.ContextRef, v string) (quickjsruntime.ValueRef, error) {
	i.alloc.setContext(ctx)
	ptr, err := i.writeBytes([]byte(v))
	if err != nil {
		return 0, err
	}
	defer i.freeGuest(ptr)

	return i.callRef(ctx, ExportNewString, uint64(jctx), uint64(ptr), uint64(uint32(len(v))))
}

// GetException drains the context's pending exception slot.
func (i *Instance) GetException(ctx context.Context, jctx quickjsruntime.ContextRef) (quickjsruntime.ValueRef, error) {
	return i.callRef(ctx, ExportGetException, uint64(jctx))
}

// Close releases the guest instance and its linear memory. Values and
// contexts created on the instance become invalid.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}

	if i.scratch != 0 {
		i.alloc.setContext(ctx)
		i.freeGuest(i.scratch)
		i.scratch = 0
	}
	i.closed = true

	var err error
	if i.module != nil {
		err = i.module.Close(ctx)
		i.module = nil
	}
	// Clear references to help GC
	i.fns = nil
	i.memory = nil
	i.alloc = nil
	i.stack = nil
	return err
}

// Compile-time check that Instance implements quickjsruntime.Instance
var _ quickjsruntime.Instance = (*Instance)(nil)
