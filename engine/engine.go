package engine

import (
	"context"
	"io"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
	"github.com/wippyai/quickjs-runtime/errors"
)

// Engine compiles a QuickJS bridge binary once and instantiates
// isolated guest instances from it. Engine is safe for concurrent use;
// the instances it produces are not.
type Engine struct {
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	cfg      Config
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// Stdout and Stderr receive the guest's standard streams.
	// nil discards the stream.
	Stdout io.Writer
	Stderr io.Writer
}

// New creates an engine from a compiled QuickJS bridge binary.
func New(ctx context.Context, wasmBytes []byte) (*Engine, error) {
	return NewWithConfig(ctx, wasmBytes, nil)
}

// NewWithConfig creates an engine with custom configuration.
// It compiles the binary and verifies that every export the bridge
// binds is present, so a mismatched binary fails here rather than on
// first use.
func NewWithConfig(ctx context.Context, wasmBytes []byte, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	// The reactor build imports WASI preview1 for clock and stdio.
	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)

	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Load("compile engine binary", err)
	}

	if missing := missingExports(compiled); len(missing) > 0 {
		runtime.Close(ctx)
		return nil, errors.NewMissingExportsError(missing)
	}

	e := &Engine{runtime: runtime, compiled: compiled}
	if cfg != nil {
		e.cfg = *cfg
	}
	return e, nil
}

// missingExports returns the required export names absent from the
// compiled module, in declaration order.
func missingExports(compiled wazero.CompiledModule) []string {
	var missing []string
	fns := compiled.ExportedFunctions()
	for _, name := range requiredExports {
		if _, ok := fns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if _, ok := compiled.ExportedMemories()[memoryExport]; !ok {
		missing = append(missing, memoryExport)
	}
	return missing
}

// Instantiate creates a fresh guest instance with its own linear
// memory and QuickJS heap. Instances share the compiled code but
// nothing else, so they may run on different goroutines concurrently.
func (e *Engine) Instantiate(ctx context.Context) (quickjsruntime.Instance, error) {
	modConfig := wazero.NewModuleConfig().
		WithName(""). // anonymous for parallel instantiation
		WithStartFunctions()
	if e.cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(e.cfg.Stdout)
	}
	if e.cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(e.cfg.Stderr)
	}

	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, modConfig)
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	// Reactor builds run their C constructors in _initialize. It must
	// complete before malloc or any qjs_* export is usable.
	if initFn := mod.ExportedFunction(initializeExport); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			mod.Close(ctx)
			return nil, errors.Instantiation(err)
		}
	}

	inst, err := newInstance(ctx, mod)
	if err != nil {
		mod.Close(ctx)
		return nil, err
	}

	debugf("guest instance ready: memory=%d bytes", mod.Memory().Size())
	return inst, nil
}

// Close releases the compiled module and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	if e.runtime == nil {
		return nil
	}
	err := e.runtime.Close(ctx)
	e.runtime = nil
	e.compiled = nil
	if err != nil {
		Logger().Warn("close engine runtime", zap.Error(err))
	}
	return err
}

// Compile-time check that Engine implements quickjsruntime.Engine
var _ quickjsruntime.Engine = (*Engine)(nil)
