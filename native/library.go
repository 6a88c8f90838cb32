package native

import (
	"go.uber.org/zap"

	"github.com/wippyai/sheet-probe/errors"
)

// Library is an open handle to a dynamically loaded shared object.
type Library struct {
	path   string
	handle uintptr
	closed bool
}

type openConfig struct {
	now    bool
	global bool
}

// Option configures how a library is opened.
type Option func(*openConfig)

// WithNow resolves all undefined symbols when the library is opened
// (RTLD_NOW) instead of on first use (RTLD_LAZY).
func WithNow() Option {
	return func(c *openConfig) {
		c.now = true
	}
}

// WithGlobal makes the library's symbols available to libraries loaded
// afterwards (RTLD_GLOBAL).
func WithGlobal() Option {
	return func(c *openConfig) {
		c.global = true
	}
}

// Open loads the shared object at path. Failures are load errors carrying the
// loader's own message as cause.
func Open(path string, opts ...Option) (*Library, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	handle, err := dlopen(path, cfg)
	if err != nil {
		Logger().Debug("library open failed", append(hostFields(), zap.String("path", path), zap.Error(err))...)
		return nil, errors.Load(path, err)
	}
	if handle == 0 {
		return nil, errors.New(errors.PhaseLoad, errors.KindNilPointer).
			Library(path).
			Detail("loader returned a null handle").
			Build()
	}

	Logger().Debug("library opened", zap.String("path", path), zap.Bool("now", cfg.now))
	return &Library{path: path, handle: handle}, nil
}

// Path returns the path the library was opened from.
func (l *Library) Path() string { return l.path }

// Lookup resolves an exported symbol to its address. A symbol that resolves
// to address zero without a loader error is reported as a nil_pointer
// resolution error.
func (l *Library) Lookup(name string) (uintptr, error) {
	if l.closed {
		return 0, errors.NotInitialized(errors.PhaseResolve, "library "+l.path)
	}

	addr, err := dlsym(l.handle, name)
	if err != nil {
		return 0, errors.SymbolNotFound(l.path, name, err)
	}
	if addr == 0 {
		return 0, errors.NilSymbol(l.path, name)
	}
	return addr, nil
}

// Close unloads the library. Subsequent calls return nil.
func (l *Library) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true

	if err := dlclose(l.handle); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "close "+l.path)
	}
	Logger().Debug("library closed", zap.String("path", l.path))
	return nil
}
