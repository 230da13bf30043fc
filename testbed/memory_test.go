package testbed

import (
	"context"
	"strings"
	"testing"

	"github.com/wippyai/quickjs-runtime/errors"
)

const allocHeavy = `
	var big = [];
	for (var i = 0; i < 100000; i++) {
		big.push("chunk " + i);
	}
	big.length
`

func TestMemoryLimit_Enforced(t *testing.T) {
	jsctx := newContext(t)
	ctx := context.Background()

	if err := jsctx.SetMemoryLimit(ctx, 1<<20); err != nil {
		t.Fatalf("set memory limit: %v", err)
	}

	_, err := jsctx.Eval(ctx, allocHeavy)
	scriptErr, ok := err.(*errors.ScriptError)
	if !ok {
		t.Fatalf("eval error = %T (%v), want *errors.ScriptError", err, err)
	}
	if !strings.Contains(scriptErr.Message, "out of memory") {
		t.Errorf("message = %q, want out of memory", scriptErr.Message)
	}

	// The unit survives running out of memory.
	got, err := jsctx.Eval(ctx, "1 + 1")
	if err != nil || got != int64(2) {
		t.Errorf("eval after oom = %v, %v", got, err)
	}
}

func TestMemoryLimit_GenerousAllows(t *testing.T) {
	jsctx := newContext(t)
	ctx := context.Background()

	if err := jsctx.SetMemoryLimit(ctx, 256<<20); err != nil {
		t.Fatalf("set memory limit: %v", err)
	}

	got, err := jsctx.Eval(ctx, allocHeavy)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != int64(100000) {
		t.Errorf("eval = %v, want int64(100000)", got)
	}
}

func TestMemoryUsed_Grows(t *testing.T) {
	jsctx := newContext(t)
	ctx := context.Background()

	before, err := jsctx.MemoryUsed(ctx)
	if err != nil {
		t.Fatalf("memory used: %v", err)
	}
	if before <= 0 {
		t.Fatalf("memory used = %d, want > 0 for a live unit", before)
	}

	if _, err := jsctx.Eval(ctx, `var keep = new Array(10000).fill("mem")`); err != nil {
		t.Fatalf("eval: %v", err)
	}

	after, err := jsctx.MemoryUsed(ctx)
	if err != nil {
		t.Fatalf("memory used: %v", err)
	}
	if after <= before {
		t.Errorf("memory used = %d after allocating, was %d", after, before)
	}
}
