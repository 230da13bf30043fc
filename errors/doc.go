// Package errors provides structured error types for the quickjs-runtime library.
//
// Infrastructure errors are categorized by Phase (where the error occurred)
// and Kind (error category) and carry a cause chain. Use the Builder for
// structured construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindUnsupported).
//		GoType("chan int").
//		Detail("cannot cross the engine boundary").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Load("compile module", cause)
//	err := errors.Trap("qjs_eval", cause)
//
// Three dedicated types carry the host-facing taxonomy of the bridge:
// ScriptError (an exception raised by script code, message taken verbatim
// from the engine), ArgumentTypeError (an unsupported host kind passed as
// a call argument, rejected before any engine allocation) and
// ProtocolError (an engine value tag the codec does not recognize).
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
