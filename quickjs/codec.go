package quickjs

import (
	"context"
	"fmt"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
	"github.com/wippyai/quickjs-runtime/errors"
)

// validateArgs rejects unsupported argument kinds before any engine
// allocation happens, so a bad argument list leaves the unit exactly
// as it was. Handles must belong to this unit and still be open.
func (c *Context) validateArgs(args []any) error {
	for i, arg := range args {
		switch v := arg.(type) {
		case nil, bool, string,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32,
			float32, float64:
		case *Object:
			if v == nil || v.ctx != c || v.freed {
				return errors.InvalidInput(errors.PhaseEncode,
					fmt.Sprintf("argument %d is not a live handle of this context", i))
			}
		default:
			// uint64 lands here too: it does not fit the engine's
			// signed integer representation.
			return &errors.ArgumentTypeError{Index: i, GoType: fmt.Sprintf("%T", arg)}
		}
	}
	return nil
}

// encodeArg converts one validated argument into an engine value the
// caller owns.
func (c *Context) encodeArg(ctx context.Context, arg any) (quickjsruntime.ValueRef, error) {
	switch v := arg.(type) {
	case nil:
		return c.inst.NewNull(ctx, c.jctx)
	case bool:
		return c.inst.NewBool(ctx, c.jctx, v)
	case int:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case int8:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case int16:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case int32:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case int64:
		return c.inst.NewInt64(ctx, c.jctx, v)
	case uint:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case uint8:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case uint16:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case uint32:
		return c.inst.NewInt64(ctx, c.jctx, int64(v))
	case float32:
		return c.inst.NewFloat64(ctx, c.jctx, float64(v))
	case float64:
		return c.inst.NewFloat64(ctx, c.jctx, v)
	case string:
		return c.inst.NewString(ctx, c.jctx, v)
	case *Object:
		// Duplicate so the call can release every argument uniformly
		// while the handle keeps its own reference.
		return c.inst.Dup(ctx, c.jctx, v.val)
	default:
		// Already rejected by validateArgs.
		return 0, &errors.ArgumentTypeError{Index: 0, GoType: fmt.Sprintf("%T", arg)}
	}
}

// encodeArgs converts a validated argument list. On failure the
// already converted prefix is released.
func (c *Context) encodeArgs(ctx context.Context, args []any) ([]quickjsruntime.ValueRef, error) {
	if len(args) == 0 {
		return nil, nil
	}
	refs := make([]quickjsruntime.ValueRef, 0, len(args))
	for _, arg := range args {
		val, err := c.encodeArg(ctx, arg)
		if err != nil {
			c.freeRefs(ctx, refs)
			return nil, err
		}
		refs = append(refs, val)
	}
	return refs, nil
}

func (c *Context) freeRefs(ctx context.Context, refs []quickjsruntime.ValueRef) {
	for _, val := range refs {
		c.freeRef(ctx, val)
	}
}

// decode converts an engine value to its Go form and releases the
// engine reference. Objects and functions are not converted: they come
// back as handles that keep the unit alive until closed. Exception
// values are drained into a *errors.ScriptError.
func (c *Context) decode(ctx context.Context, val quickjsruntime.ValueRef) (any, error) {
	tag, err := c.inst.Tag(ctx, c.jctx, val)
	if err != nil {
		c.freeRef(ctx, val)
		return nil, err
	}

	switch tag {
	case quickjsruntime.TagInt:
		n, err := c.inst.ToInt32(ctx, c.jctx, val)
		c.freeRef(ctx, val)
		if err != nil {
			return nil, err
		}
		return int64(n), nil

	case quickjsruntime.TagBool:
		b, err := c.inst.ToBool(ctx, c.jctx, val)
		c.freeRef(ctx, val)
		if err != nil {
			return nil, err
		}
		return b, nil

	case quickjsruntime.TagNull, quickjsruntime.TagUndefined:
		c.freeRef(ctx, val)
		return nil, nil

	case quickjsruntime.TagFloat64:
		f, err := c.inst.ToFloat64(ctx, c.jctx, val)
		c.freeRef(ctx, val)
		if err != nil {
			return nil, err
		}
		return f, nil

	case quickjsruntime.TagString:
		s, err := c.inst.ToCString(ctx, c.jctx, val)
		c.freeRef(ctx, val)
		if err != nil {
			return nil, err
		}
		return s, nil

	case quickjsruntime.TagObject:
		// The handle steals the reference and pins the unit.
		c.refs++
		return &Object{ctx: c, val: val}, nil

	case quickjsruntime.TagException:
		scriptErr := c.translateException(ctx)
		c.freeRef(ctx, val)
		return nil, scriptErr

	default:
		c.freeRef(ctx, val)
		return nil, &errors.ProtocolError{Tag: int32(tag)}
	}
}

// translateException drains the unit's pending exception and shapes it
// into a *errors.ScriptError carrying the engine's own message.
func (c *Context) translateException(ctx context.Context) error {
	exc, err := c.inst.GetException(ctx, c.jctx)
	if err != nil {
		return err
	}
	defer c.freeRef(ctx, exc)

	str, err := c.inst.ToStringValue(ctx, c.jctx, exc)
	if err != nil {
		return err
	}
	defer c.freeRef(ctx, str)

	tag, err := c.inst.Tag(ctx, c.jctx, str)
	if err != nil {
		return err
	}
	if tag == quickjsruntime.TagException {
		// Stringifying the exception threw in turn. Drain the
		// secondary exception so the unit stays usable.
		if sec, err := c.inst.GetException(ctx, c.jctx); err == nil {
			c.freeRef(ctx, sec)
		}
		return &errors.ScriptError{Message: "unknown script error"}
	}

	msg, err := c.inst.ToCString(ctx, c.jctx, str)
	if err != nil {
		return err
	}
	return &errors.ScriptError{Message: msg}
}
