// Package quickjsruntime provides a pure Go embedding of the QuickJS
// JavaScript engine.
//
// The engine is a QuickJS build compiled to a WASI reactor module and
// executed in-process through wazero, so no CGo is involved. Each
// context owns a private guest instance with its own linear memory and
// engine heap; contexts share nothing and may run in parallel on
// separate goroutines.
//
// # Architecture Overview
//
// The library is organized into a small set of packages:
//
//	quickjsruntime/      Root package with shared references and the engine capability interfaces
//	├── quickjs/         High-level API: contexts, value bridging, foreign object handles
//	├── engine/          Low-level wazero hosting of the QuickJS WASM build
//	└── errors/          Structured error types shared by all packages
//
// # Quick Start
//
// Load the engine once, then create as many isolated contexts as needed:
//
//	wasm, err := os.ReadFile("quickjs.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := engine.New(ctx, wasm)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	jsctx, err := quickjs.NewContext(ctx, eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer jsctx.Close(ctx)
//
//	result, err := jsctx.Eval(ctx, "1+1")
//	fmt.Println(result) // int64(2)
//
// # Value Bridging
//
// Results cross the boundary as a small set of Go kinds:
//
//	Engine value        Go value
//	──────────────────────────────────
//	int                 int64
//	float               float64
//	bool                bool
//	null, undefined     nil
//	string              string (copied)
//	object, function    *quickjs.Object
//
// An Object keeps both an engine-level reference on the wrapped value
// and a strengthening reference on its owning context, so the context
// is torn down only after the last handle is closed.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Context, Object and Instance are
// NOT thread-safe and must be used by a single goroutine, or access
// must be synchronized externally. Distinct contexts are fully
// isolated and run in parallel.
//
// # Memory Model
//
// WASM linear memory only grows. Memory freed by the engine remains
// allocated to the guest instance and is reused there. Closing a
// context releases its entire instance, which is the way to return
// memory to the host.
package quickjsruntime
