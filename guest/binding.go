package guest

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/errors"
)

// Allocator export names, in lookup order.
var (
	allocNames   = []string{"allocate", "alloc"}
	deallocNames = []string{"deallocate", "dealloc"}
)

var (
	i32      = api.ValueTypeI32
	sigAlloc = signature{params: []api.ValueType{i32}, results: []api.ValueType{i32}}
	sigCall  = signature{params: []api.ValueType{i32}, results: []api.ValueType{i32}}
	sigFree  = signature{params: []api.ValueType{i32}}
)

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

func (s signature) matches(fn api.Function) bool {
	def := fn.Definition()
	return slices.Equal(def.ParamTypes(), s.params) && slices.Equal(def.ResultTypes(), s.results)
}

// Binding is the typed classify/free pair resolved from one module, plus the
// guest allocator used to pass arguments in.
type Binding struct {
	mod      *Module
	mem      api.Memory
	classify api.Function
	free     api.Function
	alloc    api.Function
	dealloc  api.Function
	symbols  sheetprobe.Symbols
	// deallocSized is set when the guest deallocator takes (ptr, size).
	deallocSized bool
}

var _ sheetprobe.Classifier = (*Binding)(nil)

// Bind resolves the classifier, the deallocator, the allocator pair and the
// exported memory, checking each signature. The module is not closed on
// failure.
func Bind(m *Module, symbols sheetprobe.Symbols) (*Binding, error) {
	symbols = symbols.WithDefaults()
	b := &Binding{mod: m, symbols: symbols}

	var err error
	if b.classify, err = lookupTyped(m, symbols.Classify, sigCall); err != nil {
		return nil, err
	}
	if b.free, err = lookupTyped(m, symbols.Free, sigFree); err != nil {
		return nil, err
	}
	if b.alloc, err = lookupFirst(m, allocNames, func(fn api.Function) bool { return sigAlloc.matches(fn) }); err != nil {
		return nil, err
	}
	if b.dealloc, err = lookupFirst(m, deallocNames, func(fn api.Function) bool {
		return len(fn.Definition().ResultTypes()) == 0 &&
			(slices.Equal(fn.Definition().ParamTypes(), []api.ValueType{i32}) ||
				slices.Equal(fn.Definition().ParamTypes(), []api.ValueType{i32, i32}))
	}); err != nil {
		return nil, err
	}
	b.deallocSized = len(b.dealloc.Definition().ParamTypes()) == 2

	if b.mem, err = m.Memory(); err != nil {
		return nil, err
	}

	Logger().Debug("symbols bound",
		zap.String("path", m.Path()),
		zap.String("classify", symbols.Classify),
		zap.String("free", symbols.Free),
		zap.String("alloc", b.alloc.Definition().ExportNames()[0]),
	)
	return b, nil
}

func lookupTyped(m *Module, name string, sig signature) (api.Function, error) {
	fn, err := m.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !sig.matches(fn) {
		return nil, errors.New(errors.PhaseResolve, errors.KindInvalidData).
			Library(m.Path()).
			Symbol(name).
			Detail("unexpected signature %v -> %v", fn.Definition().ParamTypes(), fn.Definition().ResultTypes()).
			Build()
	}
	return fn, nil
}

func lookupFirst(m *Module, names []string, ok func(api.Function) bool) (api.Function, error) {
	for _, name := range names {
		if fn, err := m.Lookup(name); err == nil && ok(fn) {
			return fn, nil
		}
	}
	want := strings.Join(names, " or ")
	return nil, errors.SymbolNotFound(m.Path(), want, errors.UndefinedSymbol(want))
}

// Load instantiates the module at path and binds symbols, closing the module
// again if binding fails.
func Load(ctx context.Context, path string, symbols sheetprobe.Symbols, opts ...Option) (*Binding, error) {
	m, err := Instantiate(ctx, path, opts...)
	if err != nil {
		return nil, err
	}

	b, err := Bind(m, symbols)
	if err != nil {
		if cerr := m.Close(ctx); cerr != nil {
			Logger().Warn("close after failed bind", zap.String("path", path), zap.Error(cerr))
		}
		return nil, err
	}
	return b, nil
}

// Classify copies path into guest memory, calls the classifier and frees the
// argument. A zero result pointer yields a nil ForeignString.
func (b *Binding) Classify(ctx context.Context, path string) (*sheetprobe.ForeignString, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err, "classify not started")
	}
	if b.mod.closed {
		return nil, errors.NotInitialized(errors.PhaseCall, "module "+b.mod.path)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return nil, errors.InvalidInput(errors.PhaseCall, "path contains a NUL byte")
	}

	arg := append([]byte(path), 0)
	argPtr, err := b.write(ctx, arg)
	if err != nil {
		return nil, err
	}
	defer b.release(ctx, argPtr, uint32(len(arg)))

	out, err := b.classify.Call(ctx, uint64(argPtr))
	if err != nil {
		return nil, errors.Trap(errors.PhaseCall, b.symbols.Classify, err)
	}

	ptr := uint32(out[0])
	if ptr == 0 {
		Logger().Debug("classifier returned NULL", zap.String("input", path))
		return nil, nil
	}

	// The result outlives the call's context.
	freeCtx := context.WithoutCancel(ctx)
	return sheetprobe.NewForeignString(
		func() (string, error) {
			if b.mod.closed {
				return "", errors.NotInitialized(errors.PhaseDecode, "module "+b.mod.path)
			}
			raw, err := readCString(b.mem, ptr)
			if err != nil {
				return "", err
			}
			if !utf8.Valid(raw) {
				return string(raw), errors.InvalidUTF8(errors.PhaseDecode, raw)
			}
			return string(raw), nil
		},
		func() error {
			if b.mod.closed {
				return errors.NotInitialized(errors.PhaseRelease, "module "+b.mod.path)
			}
			if _, err := b.free.Call(freeCtx, uint64(ptr)); err != nil {
				return errors.Trap(errors.PhaseRelease, b.symbols.Free, err)
			}
			return nil
		},
	), nil
}

func (b *Binding) write(ctx context.Context, data []byte) (uint32, error) {
	size := uint32(len(data))
	out, err := b.alloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseCall, size, err)
	}
	ptr := uint32(out[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseCall, size, nil)
	}
	if !b.mem.Write(ptr, data) {
		return 0, errors.OutOfBounds(errors.PhaseCall, ptr, b.mem.Size())
	}
	return ptr, nil
}

func (b *Binding) release(ctx context.Context, ptr, size uint32) {
	params := []uint64{uint64(ptr)}
	if b.deallocSized {
		params = append(params, uint64(size))
	}
	if _, err := b.dealloc.Call(context.WithoutCancel(ctx), params...); err != nil {
		Logger().Warn("argument deallocation failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}

// Close releases the module.
func (b *Binding) Close(ctx context.Context) error {
	return b.mod.Close(ctx)
}

// Module returns the underlying module.
func (b *Binding) Module() *Module {
	return b.mod
}

// readCString copies the NUL-terminated string at ptr out of guest memory.
func readCString(mem api.Memory, ptr uint32) ([]byte, error) {
	size := mem.Size()
	if ptr >= size {
		return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, size)
	}
	buf, ok := mem.Read(ptr, size-ptr)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseDecode, ptr, size)
	}
	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		return nil, errors.InvalidData(errors.PhaseDecode, "string is not NUL-terminated within guest memory")
	}
	return bytes.Clone(buf[:n]), nil
}
