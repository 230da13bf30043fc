package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
	"github.com/wippyai/quickjs-runtime/errors"
)

// GuestMemory wraps wazero memory to implement quickjsruntime.Memory.
// Reads return views into the guest's linear memory that are only
// valid until the next guest call; callers copy what they keep.
type GuestMemory struct {
	mem api.Memory
}

func (m *GuestMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, offset, length)
	}
	return data, nil
}

func (m *GuestMemory) Write(offset uint32, data []byte) error {
	if ok := m.mem.Write(offset, data); !ok {
		return errors.OutOfBounds(errors.PhaseEncode, offset, uint32(len(data)))
	}
	return nil
}

func (m *GuestMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseDecode, offset, 4)
	}
	return val, nil
}

func (m *GuestMemory) WriteU32(offset uint32, value uint32) error {
	if ok := m.mem.WriteUint32Le(offset, value); !ok {
		return errors.OutOfBounds(errors.PhaseEncode, offset, 4)
	}
	return nil
}

// GuestAllocator implements quickjsruntime.Allocator using the guest's
// exported malloc and free. It shares the instance's call stack buffer,
// so it follows the same single-goroutine discipline as the instance.
type GuestAllocator struct {
	mallocFn   api.Function
	freeFn     api.Function
	stack      []uint64
	currentCtx context.Context
}

func (a *GuestAllocator) setContext(ctx context.Context) {
	a.currentCtx = ctx
}

func (a *GuestAllocator) context() context.Context {
	if a.currentCtx != nil {
		return a.currentCtx
	}
	return context.Background()
}

func (a *GuestAllocator) Alloc(size uint32) (uint32, error) {
	if a.mallocFn == nil {
		return 0, errors.NotInitialized(errors.PhaseEngine, "allocator")
	}

	a.stack[0] = uint64(size)
	if err := a.mallocFn.CallWithStack(a.context(), a.stack[:1]); err != nil {
		return 0, errors.Trap(ExportMalloc, err)
	}
	ptr := uint32(a.stack[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(size)
	}
	return ptr, nil
}

func (a *GuestAllocator) Free(ptr uint32) error {
	if ptr == 0 || a.freeFn == nil {
		return nil
	}

	a.stack[0] = uint64(ptr)
	if err := a.freeFn.CallWithStack(a.context(), a.stack[:1]); err != nil {
		return errors.Trap(ExportFree, err)
	}
	return nil
}

// Compile-time check that GuestMemory implements quickjsruntime.Memory
var _ quickjsruntime.Memory = (*GuestMemory)(nil)

// Compile-time check that GuestAllocator implements quickjsruntime.Allocator
var _ quickjsruntime.Allocator = (*GuestAllocator)(nil)
