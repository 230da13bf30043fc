package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/wippyai/quickjs-runtime/engine"
	"github.com/wippyai/quickjs-runtime/quickjs"
)

func main() {
	var (
		enginePath  = flag.String("engine", "", "Path to quickjs.wasm (default $QUICKJS_WASM or quickjs.wasm)")
		source      = flag.String("e", "", "Evaluate source and print the result")
		memLimit    = flag.Int64("limit", 0, "Engine heap limit in megabytes (0 = unlimited)")
		interactive = flag.Bool("i", false, "Interactive REPL")
	)
	flag.Parse()

	path := *enginePath
	if path == "" {
		path = os.Getenv("QUICKJS_WASM")
	}
	if path == "" {
		path = "quickjs.wasm"
	}

	// With no script to run and a terminal on stdin, drop into the REPL.
	if *interactive ||
		(flag.NArg() == 0 && *source == "" && term.IsTerminal(int(os.Stdin.Fd()))) {
		if err := runREPL(path, *memLimit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(path, *source, flag.Args(), *memLimit); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(enginePath, source string, files []string, limitMB int64) error {
	ctx := context.Background()

	wasm, err := os.ReadFile(enginePath)
	if err != nil {
		return fmt.Errorf("read engine: %w", err)
	}

	eng, err := engine.New(ctx, wasm)
	if err != nil {
		return fmt.Errorf("load engine: %w", err)
	}
	defer eng.Close(ctx)

	jsctx, err := quickjs.NewContext(ctx, eng)
	if err != nil {
		return fmt.Errorf("create context: %w", err)
	}
	defer jsctx.Close(ctx)

	if limitMB > 0 {
		if err := jsctx.SetMemoryLimit(ctx, limitMB<<20); err != nil {
			return fmt.Errorf("set memory limit: %w", err)
		}
	}

	if source != "" {
		return evalAndPrint(ctx, jsctx, source)
	}

	if len(files) == 0 {
		// Piped input: evaluate stdin as one script.
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		return evalAndPrint(ctx, jsctx, string(data))
	}

	// Files share one context, in order, like a script sequence.
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		if err := evalAndPrint(ctx, jsctx, string(data)); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
	}
	return nil
}

func evalAndPrint(ctx context.Context, jsctx *quickjs.Context, source string) error {
	v, err := jsctx.Eval(ctx, source)
	if err != nil {
		return err
	}
	out, err := formatValue(ctx, v)
	if err != nil {
		return err
	}
	if out != "" {
		fmt.Println(out)
	}
	return nil
}

// formatValue renders a bridged value for display. Handles are
// serialized through the engine's own JSON and closed afterward.
func formatValue(ctx context.Context, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case *quickjs.Object:
		defer val.Close(ctx)
		s, err := val.AsJSON(ctx)
		if err != nil {
			return "", err
		}
		if s == "" {
			// Functions serialize as undefined.
			return "[function]", nil
		}
		return s, nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}
