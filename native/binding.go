package native

import (
	"context"
	"strings"
	"unicode/utf8"
	"unsafe"

	"go.uber.org/zap"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/errors"
)

// Binding is the typed classify/free pair resolved from one library.
type Binding struct {
	lib      *Library
	classify func(path string) *byte
	free     func(s *byte)
	symbols  sheetprobe.Symbols
}

var _ sheetprobe.Classifier = (*Binding)(nil)

// Bind resolves both symbols before registering either, so a missing
// deallocator is reported before the classifier can ever be called. The
// library is not closed on failure.
func Bind(lib *Library, symbols sheetprobe.Symbols) (*Binding, error) {
	symbols = symbols.WithDefaults()

	classifyAddr, err := lib.Lookup(symbols.Classify)
	if err != nil {
		return nil, err
	}
	freeAddr, err := lib.Lookup(symbols.Free)
	if err != nil {
		return nil, err
	}

	b := &Binding{lib: lib, symbols: symbols}
	registerFunc(&b.classify, classifyAddr)
	registerFunc(&b.free, freeAddr)

	Logger().Debug("symbols bound",
		zap.String("path", lib.Path()),
		zap.String("classify", symbols.Classify),
		zap.String("free", symbols.Free),
	)
	return b, nil
}

// Load opens the library at path and binds symbols, closing the library
// again if binding fails.
func Load(path string, symbols sheetprobe.Symbols, opts ...Option) (*Binding, error) {
	lib, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}

	b, err := Bind(lib, symbols)
	if err != nil {
		if cerr := lib.Close(); cerr != nil {
			Logger().Warn("close after failed bind", zap.String("path", path), zap.Error(cerr))
		}
		return nil, err
	}
	return b, nil
}

// Classify calls the classifier with path. A NULL return yields a nil
// ForeignString.
func (b *Binding) Classify(ctx context.Context, path string) (*sheetprobe.ForeignString, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.PhaseCall, errors.KindInvalidInput, err, "classify not started")
	}
	if b.lib.closed {
		return nil, errors.NotInitialized(errors.PhaseCall, "library "+b.lib.path)
	}
	if strings.IndexByte(path, 0) >= 0 {
		return nil, errors.InvalidInput(errors.PhaseCall, "path contains a NUL byte")
	}

	ptr := b.classify(path)
	if ptr == nil {
		Logger().Debug("classifier returned NULL", zap.String("input", path))
		return nil, nil
	}

	return sheetprobe.NewForeignString(
		func() (string, error) {
			if b.lib.closed {
				return "", errors.NotInitialized(errors.PhaseDecode, "library "+b.lib.path)
			}
			raw := cstringBytes(ptr)
			if !utf8.Valid(raw) {
				return string(raw), errors.InvalidUTF8(errors.PhaseDecode, raw)
			}
			return string(raw), nil
		},
		func() error {
			// free_c_string lives in the library; it is gone after dlclose.
			if b.lib.closed {
				return errors.NotInitialized(errors.PhaseRelease, "library "+b.lib.path)
			}
			b.free(ptr)
			return nil
		},
	), nil
}

// Close unloads the library.
func (b *Binding) Close(context.Context) error {
	return b.lib.Close()
}

// cstringBytes returns a view of the NUL-terminated string at p, without the
// terminator. The view is only valid until the string is freed.
func cstringBytes(p *byte) []byte {
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return unsafe.Slice(p, n)
}
