package engine

// Export names of the QuickJS bridge binary. The binary is a WASI
// reactor build of QuickJS plus a thin C shim that boxes JSValues on
// the guest heap and exposes the engine API as flat wasm functions.
const (
	// Runtime and context lifecycle.
	ExportNewRuntime     = "qjs_new_runtime"
	ExportFreeRuntime    = "qjs_free_runtime"
	ExportSetMemoryLimit = "qjs_set_memory_limit"
	ExportMemoryUsed     = "qjs_memory_used"
	ExportNewContext     = "qjs_new_context"
	ExportFreeContext    = "qjs_free_context"

	// Evaluation, property access and calls.
	ExportEval         = "qjs_eval"
	ExportGlobalObject = "qjs_get_global_object"
	ExportGetProperty  = "qjs_get_property"
	ExportSetProperty  = "qjs_set_property"
	ExportCall         = "qjs_call"

	// Value inspection.
	ExportTag         = "qjs_tag"
	ExportToInt32     = "qjs_to_int32"
	ExportToBool      = "qjs_to_bool"
	ExportToFloat64   = "qjs_to_float64"
	ExportToCString   = "qjs_to_cstring"
	ExportFreeCString = "qjs_free_cstring"
	ExportToString    = "qjs_to_string"

	// Reference management.
	ExportDup       = "qjs_dup"
	ExportFreeValue = "qjs_free_value"

	// Value constructors.
	ExportNewNull    = "qjs_new_null"
	ExportNewBool    = "qjs_new_bool"
	ExportNewInt64   = "qjs_new_int64"
	ExportNewFloat64 = "qjs_new_float64"
	ExportNewString  = "qjs_new_string"

	// Pending exception slot.
	ExportGetException = "qjs_get_exception"

	// Guest heap allocator, used for passing strings and argv arrays.
	ExportMalloc = "malloc"
	ExportFree   = "free"

	memoryExport     = "memory"
	initializeExport = "_initialize"
)

// requiredExports lists every function the bridge binds at load time.
// New rejects a binary that is missing any of them.
var requiredExports = []string{
	ExportNewRuntime,
	ExportFreeRuntime,
	ExportSetMemoryLimit,
	ExportMemoryUsed,
	ExportNewContext,
	ExportFreeContext,
	ExportEval,
	ExportGlobalObject,
	ExportGetProperty,
	ExportSetProperty,
	ExportCall,
	ExportTag,
	ExportToInt32,
	ExportToBool,
	ExportToFloat64,
	ExportToCString,
	ExportFreeCString,
	ExportToString,
	ExportDup,
	ExportFreeValue,
	ExportNewNull,
	ExportNewBool,
	ExportNewInt64,
	ExportNewFloat64,
	ExportNewString,
	ExportGetException,
	ExportMalloc,
	ExportFree,
}
