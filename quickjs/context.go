package quickjs

import (
	"context"
	"sync"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
	"github.com/wippyai/quickjs-runtime/errors"
)

// Context is an isolated script execution unit: one QuickJS runtime
// and one context, hosted in a guest instance of their own. A unit
// never shares a runtime with another unit, so distinct Contexts can
// evaluate concurrently on different goroutines.
//
// A single Context and the Objects it returns are driven by one
// goroutine at a time. The internal mutex only keeps the reference
// count and closed flag consistent; it does not make script execution
// concurrent within a unit.
type Context struct {
	inst quickjsruntime.Instance
	rt   quickjsruntime.RuntimeRef
	jctx quickjsruntime.ContextRef

	mu     sync.Mutex
	refs   int
	closed bool
}

// NewContext creates a fresh execution unit on the given engine.
// The unit owns a new guest instance; callers release it with Close.
func NewContext(ctx context.Context, eng quickjsruntime.Engine) (*Context, error) {
	inst, err := eng.Instantiate(ctx)
	if err != nil {
		return nil, err
	}

	rt, err := inst.NewRuntime(ctx)
	if err != nil {
		inst.Close(ctx)
		return nil, err
	}

	jctx, err := inst.NewContext(ctx, rt)
	if err != nil {
		inst.FreeRuntime(ctx, rt)
		inst.Close(ctx)
		return nil, err
	}

	debugf("context unit ready: rt=%d ctx=%d", rt, jctx)
	return &Context{
		inst: inst,
		rt:   rt,
		jctx: jctx,
		refs: 1, // owner reference, released by Close
	}, nil
}

// unlocked runs fn with the unit lock released, so other goroutines
// can release handles while a script runs. The lock is reacquired
// before fn's results are decoded.
func (c *Context) unlocked(fn func()) {
	c.mu.Unlock()
	defer c.mu.Lock()
	fn()
}

// releaseLocked drops one unit reference and, when the last one goes,
// tears down the guest world: context before runtime, then the
// instance itself. Callers hold c.mu.
func (c *Context) releaseLocked(ctx context.Context) error {
	c.refs--
	if c.refs > 0 {
		return nil
	}

	debugf("context unit teardown: rt=%d ctx=%d", c.rt, c.jctx)
	var firstErr error
	if err := c.inst.FreeContext(ctx, c.jctx); err != nil {
		firstErr = err
	}
	if err := c.inst.FreeRuntime(ctx, c.rt); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.inst.Close(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// freeRef releases one engine reference, logging rather than failing:
// the callers that use it are already past the point where a free
// error could change the outcome.
func (c *Context) freeRef(ctx context.Context, val quickjsruntime.ValueRef) {
	if err := c.inst.FreeValue(ctx, c.jctx, val); err != nil {
		debugf("free value %d: %v", val, err)
	}
}

// Eval evaluates source as global-scope script code and returns the
// completion value: int64, float64, bool, string, nil, or *Object for
// objects and functions. Script failures return *errors.ScriptError.
func (c *Context) Eval(ctx context.Context, source string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Closed("context")
	}

	c.refs++ // hold the unit across the unlocked window
	defer c.releaseLocked(ctx)

	var val quickjsruntime.ValueRef
	var evalErr error
	c.unlocked(func() {
		val, evalErr = c.inst.Eval(ctx, c.jctx, source)
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return c.decode(ctx, val)
}

// Get reads a global variable and returns it through the value codec.
func (c *Context) Get(ctx context.Context, name string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.Closed("context")
	}

	c.refs++
	defer c.releaseLocked(ctx)

	global, err := c.inst.GlobalObject(ctx, c.jctx)
	if err != nil {
		return nil, err
	}

	var val quickjsruntime.ValueRef
	var getErr error
	c.unlocked(func() {
		val, getErr = c.inst.GetProperty(ctx, c.jctx, global, name)
	})
	c.freeRef(ctx, global)
	if getErr != nil {
		return nil, getErr
	}
	return c.decode(ctx, val)
}

// Set writes a global variable. The value passes the same validation
// as call arguments: unsupported kinds are rejected with
// *errors.ArgumentTypeError before anything is allocated engine-side.
func (c *Context) Set(ctx context.Context, name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Closed("context")
	}

	if err := c.validateArgs([]any{value}); err != nil {
		return err
	}

	global, err := c.inst.GlobalObject(ctx, c.jctx)
	if err != nil {
		return err
	}
	defer c.freeRef(ctx, global)

	val, err := c.encodeArg(ctx, value)
	if err != nil {
		return err
	}

	// The property write consumes the converted value.
	return c.inst.SetProperty(ctx, c.jctx, global, name, val)
}

// SetMemoryLimit caps the unit's engine heap in bytes. Scripts that
// allocate past the cap fail with an out-of-memory ScriptError.
func (c *Context) SetMemoryLimit(ctx context.Context, limit int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.Closed("context")
	}
	return c.inst.SetMemoryLimit(ctx, c.rt, limit)
}

// MemoryUsed reports the engine heap's currently allocated bytes.
func (c *Context) MemoryUsed(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, errors.Closed("context")
	}
	return c.inst.MemoryUsed(ctx, c.rt)
}

// Close releases the owner reference. The unit stays alive while any
// Object still holds it; the guest world is torn down when the last
// reference goes. Close is idempotent.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.releaseLocked(ctx)
}
