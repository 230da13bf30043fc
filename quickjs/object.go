package quickjs

import (
	"context"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
	"github.com/wippyai/quickjs-runtime/errors"
)

// Object is an opaque handle to a script object or function. It pins
// its Context's execution unit: the guest world stays alive until
// every handle is closed, even after the Context itself is closed.
//
// The zero value is an inert handle attached to nothing. It is NOT
// safe for concurrent use from multiple goroutines.
type Object struct {
	ctx   *Context
	val   quickjsruntime.ValueRef
	freed bool
}

// Call invokes the handle as a function with the global null receiver
// and returns the result through the value codec. Arguments are
// validated before any engine allocation happens; unsupported kinds
// fail with *errors.ArgumentTypeError and leave the unit untouched.
//
// Calling an inert handle returns (nil, nil). Calling a closed handle
// is an error.
func (o *Object) Call(ctx context.Context, args ...any) (any, error) {
	if o.ctx == nil {
		// Nothing attached, nothing to invoke.
		return nil, nil
	}
	if o.freed {
		return nil, errors.Closed("object")
	}

	c := o.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs++ // hold the unit across the unlocked window
	defer c.releaseLocked(ctx)

	if err := c.validateArgs(args); err != nil {
		return nil, err
	}
	refs, err := c.encodeArgs(ctx, args)
	if err != nil {
		return nil, err
	}

	var val quickjsruntime.ValueRef
	var callErr error
	c.unlocked(func() {
		val, callErr = c.inst.Call(ctx, c.jctx, o.val, 0, refs)
	})

	// The call borrowed the arguments; release our copies.
	c.freeRefs(ctx, refs)

	if callErr != nil {
		return nil, callErr
	}
	return c.decode(ctx, val)
}

// AsJSON serializes the handle with the engine's own JSON.stringify,
// invoked with JSON as the receiver. Values JSON cannot represent
// stringify as undefined and come back as ("", nil).
func (o *Object) AsJSON(ctx context.Context) (string, error) {
	if o.ctx == nil || o.freed {
		return "", errors.Closed("object")
	}

	c := o.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs++
	defer c.releaseLocked(ctx)

	global, err := c.inst.GlobalObject(ctx, c.jctx)
	if err != nil {
		return "", err
	}
	defer c.freeRef(ctx, global)

	jsonObj, err := c.inst.GetProperty(ctx, c.jctx, global, "JSON")
	if err != nil {
		return "", err
	}
	defer c.freeRef(ctx, jsonObj)

	stringify, err := c.inst.GetProperty(ctx, c.jctx, jsonObj, "stringify")
	if err != nil {
		return "", err
	}
	defer c.freeRef(ctx, stringify)

	var val quickjsruntime.ValueRef
	var callErr error
	c.unlocked(func() {
		val, callErr = c.inst.Call(ctx, c.jctx, stringify, jsonObj,
			[]quickjsruntime.ValueRef{o.val})
	})
	if callErr != nil {
		return "", callErr
	}

	result, err := c.decode(ctx, val)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case string:
		return v, nil
	case nil:
		return "", nil
	case *Object:
		v.closeLocked(ctx)
		return "", errors.InvalidInput(errors.PhaseDecode, "stringify returned an object")
	default:
		return "", errors.InvalidInput(errors.PhaseDecode,
			"stringify returned a non-string value")
	}
}

// Close releases the handle's engine reference and its hold on the
// unit. Close is idempotent; an inert handle closes as a no-op.
func (o *Object) Close(ctx context.Context) error {
	if o.ctx == nil || o.freed {
		return nil
	}

	c := o.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	o.freed = true
	var firstErr error
	if err := c.inst.FreeValue(ctx, c.jctx, o.val); err != nil {
		firstErr = err
	}
	if err := c.releaseLocked(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// closeLocked releases the handle with the unit lock already held.
func (o *Object) closeLocked(ctx context.Context) {
	if o.freed {
		return
	}
	o.freed = true
	o.ctx.freeRef(ctx, o.val)
	o.ctx.releaseLocked(ctx)
}
