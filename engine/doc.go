// Package engine hosts the QuickJS WebAssembly build on wazero.
//
// The engine binary is a WASI reactor: QuickJS compiled to wasm32-wasi
// together with a thin C shim that flattens the interpreter API into
// plain wasm exports. No CGo is involved; the interpreter runs inside
// wazero's sandboxed linear memory.
//
// # Architecture
//
// The engine package provides three main types:
//
//	Engine         - Compiles the binary once, creates instances
//	Instance       - A running guest with its own memory and JS heap
//	GuestMemory    - Bounds-checked access to guest linear memory
//
// Engine.Instantiate creates fully isolated instances: each has a
// private linear memory, a private QuickJS heap, and its own malloc
// arena. Two instances never share state, which is what allows
// concurrent script execution across contexts.
//
// # Guest ABI
//
// Values cross the boundary as references: a reference is the guest
// address of a heap-boxed JSValue allocated by the shim. Reference 0 is
// never a box; passed as `this` it selects the engine's null sentinel,
// and freeing it is a no-op.
//
//	Export                 Signature                         Wraps
//	──────────────────────────────────────────────────────────────────────
//	qjs_new_runtime        () -> rt                          JS_NewRuntime
//	qjs_free_runtime       (rt)                              JS_FreeRuntime
//	qjs_set_memory_limit   (rt, i64)                         JS_SetMemoryLimit
//	qjs_memory_used        (rt) -> i64                       JS_ComputeMemoryUsage
//	qjs_new_context        (rt) -> ctx                       JS_NewContext
//	qjs_free_context       (ctx)                             JS_FreeContext
//	qjs_eval               (ctx, ptr, len) -> ref            JS_Eval
//	qjs_get_global_object  (ctx) -> ref                      JS_GetGlobalObject
//	qjs_get_property       (ctx, ref, cstr) -> ref           JS_GetPropertyStr
//	qjs_set_property       (ctx, ref, cstr, ref) -> i32      JS_SetPropertyStr
//	qjs_call               (ctx, fn, this, argc, argv) -> ref JS_Call
//	qjs_tag                (ref) -> i32                      JS_VALUE_GET_TAG
//	qjs_to_int32           (ctx, ref) -> i32                 JS_ToInt32
//	qjs_to_bool            (ctx, ref) -> i32                 JS_ToBool
//	qjs_to_float64         (ctx, ref) -> f64                 JS_ToFloat64
//	qjs_to_cstring         (ctx, ref, lenptr) -> ptr         JS_ToCStringLen
//	qjs_free_cstring       (ctx, ptr)                        JS_FreeCString
//	qjs_to_string          (ctx, ref) -> ref                 JS_ToString
//	qjs_dup                (ctx, ref) -> ref                 JS_DupValue
//	qjs_free_value         (ctx, ref)                        JS_FreeValue
//	qjs_new_null           () -> ref                         JS_NULL
//	qjs_new_bool           (ctx, i32) -> ref                 JS_NewBool
//	qjs_new_int64          (ctx, i64) -> ref                 JS_NewInt64
//	qjs_new_float64        (ctx, f64) -> ref                 JS_NewFloat64
//	qjs_new_string         (ctx, ptr, len) -> ref            JS_NewStringLen
//	qjs_get_exception      (ctx) -> ref                      JS_GetException
//
// The binary additionally exports malloc, free and memory, and may
// export _initialize, which runs at instantiation. qjs_eval evaluates
// its source as global-scope script code under the file name "<input>".
//
// Strings and argument arrays are staged through the guest's malloc:
// the host allocates, writes, calls, then frees. A box-producing export
// returning 0 means the guest heap could not box the result.
//
// # Exceptions
//
// Engine-level failures (a missing export, a wasm trap, an exhausted
// guest heap) surface as Go errors. Script-level failures do not: an
// evaluation or call that throws returns an exception-tagged reference,
// and the pending exception stays in the context until drained with
// qjs_get_exception. Translating that into a Go error is the quickjs
// package's job.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Instance is NOT thread-safe and
// should be used by a single goroutine.
//
// Most users should use the quickjs package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
