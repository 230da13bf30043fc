package quickjs

import (
	"context"
	"fmt"
	"testing"

	quickjsruntime "github.com/wippyai/quickjs-runtime"
)

// fakeValue is the value inside a box. Objects carry an identity that
// survives Dup, so property tables can be keyed by object rather than
// by box.
type fakeValue struct {
	tag quickjsruntime.Tag
	i   int64
	f   float64
	b   bool
	s   string
	id  int

	// throwOnString makes ToStringValue fail the way a throwing
	// toString does: it queues a secondary exception and returns an
	// exception-tagged box.
	throwOnString bool
}

// fakeInstance is a scripted stand-in for the wasm engine. It models
// the reference discipline of the real ABI: every ValueRef is one box,
// Dup mints a new box, FreeValue retires one. Using or retiring an
// unknown ref fails the test, so leaks and double frees are loud.
type fakeInstance struct {
	t *testing.T

	values  map[quickjsruntime.ValueRef]fakeValue
	nextRef quickjsruntime.ValueRef

	// props holds property templates by object identity; reads box a
	// fresh copy, mirroring the engine's fresh strong references.
	props map[int]map[string]fakeValue

	// pending is the exception slot as a queue so a throwing
	// stringification can leave a secondary exception behind.
	pending []fakeValue

	evalFn func(source string) fakeValue
	callFn func(fn, this fakeValue, args []fakeValue) fakeValue

	evalErr      error
	newStringErr error

	memLimit    int64
	memUsed     int64
	constructed int
	calls       int
	log         []string
}

var _ quickjsruntime.Instance = (*fakeInstance)(nil)

type fakeEngine struct {
	inst *fakeInstance
}

func (e *fakeEngine) Instantiate(ctx context.Context) (quickjsruntime.Instance, error) {
	return e.inst, nil
}

func newFakeInstance(t *testing.T) *fakeInstance {
	return &fakeInstance{
		t:       t,
		values:  make(map[quickjsruntime.ValueRef]fakeValue),
		nextRef: 100,
		props:   map[int]map[string]fakeValue{1: {}},
	}
}

func newTestContext(t *testing.T) (*Context, *fakeInstance) {
	t.Helper()
	fake := newFakeInstance(t)
	c, err := NewContext(context.Background(), &fakeEngine{inst: fake})
	if err != nil {
		t.Fatalf("new context: %v", err)
	}
	return c, fake
}

func (f *fakeInstance) box(v fakeValue) quickjsruntime.ValueRef {
	f.nextRef++
	f.values[f.nextRef] = v
	return f.nextRef
}

func (f *fakeInstance) resolve(ref quickjsruntime.ValueRef) fakeValue {
	v, ok := f.values[ref]
	if !ok {
		f.t.Errorf("use of unknown ref %d", ref)
	}
	return v
}

// setGlobal seeds a global property template. Identity 1 is the
// global object.
func (f *fakeInstance) setGlobal(name string, v fakeValue) {
	f.props[1][name] = v
}

// throw queues a pending exception whose string form is msg.
func (f *fakeInstance) throw(msg string) {
	f.pending = append(f.pending, fakeValue{tag: quickjsruntime.TagObject, id: 90, s: msg})
}

func (f *fakeInstance) assertNoLeaks(t *testing.T) {
	t.Helper()
	if n := len(f.values); n != 0 {
		t.Errorf("leaked %d value boxes: %v", n, f.values)
	}
}

func (f *fakeInstance) NewRuntime(ctx context.Context) (quickjsruntime.RuntimeRef, error) {
	return 1, nil
}

func (f *fakeInstance) FreeRuntime(ctx context.Context, rt quickjsruntime.RuntimeRef) error {
	f.log = append(f.log, "free_runtime")
	return nil
}

func (f *fakeInstance) SetMemoryLimit(ctx context.Context, rt quickjsruntime.RuntimeRef, limit int64) error {
	f.memLimit = limit
	return nil
}

func (f *fakeInstance) MemoryUsed(ctx context.Context, rt quickjsruntime.RuntimeRef) (int64, error) {
	return f.memUsed, nil
}

func (f *fakeInstance) NewContext(ctx context.Context, rt quickjsruntime.RuntimeRef) (quickjsruntime.ContextRef, error) {
	return 1, nil
}

func (f *fakeInstance) FreeContext(ctx context.Context, jctx quickjsruntime.ContextRef) error {
	f.log = append(f.log, "free_context")
	return nil
}

func (f *fakeInstance) Eval(ctx context.Context, jctx quickjsruntime.ContextRef, source string) (quickjsruntime.ValueRef, error) {
	if f.evalErr != nil {
		return 0, f.evalErr
	}
	if f.evalFn != nil {
		return f.box(f.evalFn(source)), nil
	}
	return f.box(fakeValue{tag: quickjsruntime.TagUndefined}), nil
}

func (f *fakeInstance) GlobalObject(ctx context.Context, jctx quickjsruntime.ContextRef) (quickjsruntime.ValueRef, error) {
	return f.box(fakeValue{tag: quickjsruntime.TagObject, id: 1}), nil
}

func (f *fakeInstance) GetProperty(ctx context.Context, jctx quickjsruntime.ContextRef, obj quickjsruntime.ValueRef, name string) (quickjsruntime.ValueRef, error) {
	o := f.resolve(obj)
	if v, ok := f.props[o.id][name]; ok {
		return f.box(v), nil
	}
	return f.box(fakeValue{tag: quickjsruntime.TagUndefined}), nil
}

func (f *fakeInstance) SetProperty(ctx context.Context, jctx quickjsruntime.ContextRef, obj quickjsruntime.ValueRef, name string, val quickjsruntime.ValueRef) error {
	o := f.resolve(obj)
	v := f.resolve(val)
	delete(f.values, val) // the write consumes the value box
	if f.props[o.id] == nil {
		f.props[o.id] = make(map[string]fakeValue)
	}
	f.props[o.id][name] = v
	return nil
}

func (f *fakeInstance) Call(ctx context.Context, jctx quickjsruntime.ContextRef, fn, this quickjsruntime.ValueRef, args []quickjsruntime.ValueRef) (quickjsruntime.ValueRef, error) {
	f.calls++
	fnVal := f.resolve(fn)
	thisVal := fakeValue{tag: quickjsruntime.TagNull}
	if this != 0 {
		thisVal = f.resolve(this)
	}
	argVals := make([]fakeValue, len(args))
	for i, a := range args {
		argVals[i] = f.resolve(a)
	}
	if f.callFn != nil {
		return f.box(f.callFn(fnVal, thisVal, argVals)), nil
	}
	return f.box(fakeValue{tag: quickjsruntime.TagUndefined}), nil
}

func (f *fakeInstance) Tag(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (quickjsruntime.Tag, error) {
	return f.resolve(val).tag, nil
}

func (f *fakeInstance) ToInt32(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (int32, error) {
	return int32(f.resolve(val).i), nil
}

func (f *fakeInstance) ToBool(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (bool, error) {
	return f.resolve(val).b, nil
}

func (f *fakeInstance) ToFloat64(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (float64, error) {
	return f.resolve(val).f, nil
}

func (f *fakeInstance) ToCString(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (string, error) {
	return f.resolve(val).s, nil
}

func (f *fakeInstance) ToStringValue(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (quickjsruntime.ValueRef, error) {
	v := f.resolve(val)
	if v.throwOnString {
		f.pending = append(f.pending, fakeValue{tag: quickjsruntime.TagObject, id: 91, s: "secondary"})
		return f.box(fakeValue{tag: quickjsruntime.TagException}), nil
	}
	return f.box(fakeValue{tag: quickjsruntime.TagString, s: v.s}), nil
}

func (f *fakeInstance) Dup(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) (quickjsruntime.ValueRef, error) {
	return f.box(f.resolve(val)), nil
}

func (f *fakeInstance) FreeValue(ctx context.Context, jctx quickjsruntime.ContextRef, val quickjsruntime.ValueRef) error {
	if val.IsNil() {
		return nil
	}
	if _, ok := f.values[val]; !ok {
		f.t.Errorf("double free of ref %d", val)
		return fmt.Errorf("fake: double free of ref %d", val)
	}
	delete(f.values, val)
	return nil
}

func (f *fakeInstance) NewNull(ctx context.Context, jctx quickjsruntime.ContextRef) (quickjsruntime.ValueRef, error) {
	f.constructed++
	return f.box(fakeValue{tag: quickjsruntime.TagNull}), nil
}

func (f *fakeInstance) NewBool(ctx context.Context, jctx quickjsruntime.ContextRef, v bool) (quickjsruntime.ValueRef, error) {
	f.constructed++
	return f.box(fakeValue{tag: quickjsruntime.TagBool, b: v}), nil
}

func (f *fakeInstance) NewInt64(ctx context.Context, jctx quickjsruntime.ContextRef, v int64) (quickjsruntime.ValueRef, error) {
	f.constructed++
	return f.box(fakeValue{tag: quickjsruntime.TagInt, i: v}), nil
}

func (f *fakeInstance) NewFloat64(ctx context.Context, jctx quickjsruntime.ContextRef, v float64) (quickjsruntime.ValueRef, error) {
	f.constructed++
	return f.box(fakeValue{tag: quickjsruntime.TagFloat64, f: v}), nil
}

func (f *fakeInstance) NewString(ctx context.Context, jctx quickjsruntime.ContextRef, v string) (quickjsruntime.ValueRef, error) {
	if f.newStringErr != nil {
		return 0, f.newStringErr
	}
	f.constructed++
	return f.box(fakeValue{tag: quickjsruntime.TagString, s: v}), nil
}

func (f *fakeInstance) GetException(ctx context.Context, jctx quickjsruntime.ContextRef) (quickjsruntime.ValueRef, error) {
	if len(f.pending) == 0 {
		return f.box(fakeValue{tag: quickjsruntime.TagNull}), nil
	}
	v := f.pending[0]
	f.pending = f.pending[1:]
	return f.box(v), nil
}

func (f *fakeInstance) Close(ctx context.Context) error {
	f.log = append(f.log, "close_instance")
	return nil
}
