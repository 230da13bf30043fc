// Package quickjs is the high-level embedding API: isolated script
// contexts with Go-native value bridging on top of the engine package.
//
// # Contexts
//
// A Context is one execution unit: a private QuickJS runtime and
// context pair inside a guest instance of its own. Units share
// nothing, so any number of Contexts can evaluate in parallel:
//
//	jsctx, err := quickjs.NewContext(ctx, eng)
//	if err != nil {
//	    return err
//	}
//	defer jsctx.Close(ctx)
//
//	v, err := jsctx.Eval(ctx, "21 * 2") // int64(42)
//
// Within a unit, execution is sequential: a Context and the Objects it
// returns belong to one goroutine at a time.
//
// # Values
//
// Eval, Get and Object.Call return int64, float64, bool, string, nil,
// or *Object for objects and functions. Arguments accept the same
// kinds plus the smaller Go integer and float types; uint64 and
// everything else is rejected up front with *errors.ArgumentTypeError
// before the engine sees any of the arguments.
//
// # Handles
//
// An *Object pins its unit. The guest world is torn down when the
// Context AND every handle are closed, in whichever order; a handle
// closed after its Context releases the unit's last reference and
// frees the instance. Handles are only meaningful inside the unit that
// produced them: passing one to another Context is rejected.
//
// # Script errors
//
// Failures inside the script (thrown exceptions, syntax errors, out of
// memory under SetMemoryLimit) come back as *errors.ScriptError
// carrying the engine's own message. The unit remains usable after a
// script error. Failures of the hosting machinery itself surface as
// *errors.Error with phase and kind.
package quickjs
