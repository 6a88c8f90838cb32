package guest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/sheet-probe/errors"
)

// Config holds configuration for module instantiation
type Config struct {
	Stdout io.Writer
	Stderr io.Writer

	// Mounts maps host directories to guest paths. Nil mounts the working
	// directory at "/".
	Mounts map[string]string

	// MemoryLimitPages sets the maximum memory in pages (64KB each).
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Option configures module instantiation.
type Option func(*Config)

// WithMount exposes hostDir to the guest at guestPath.
func WithMount(hostDir, guestPath string) Option {
	return func(c *Config) {
		if c.Mounts == nil {
			c.Mounts = make(map[string]string)
		}
		c.Mounts[hostDir] = guestPath
	}
}

// WithOutput routes the guest's stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(c *Config) {
		c.Stdout = stdout
		c.Stderr = stderr
	}
}

// WithMemoryLimitPages caps guest memory.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *Config) {
		c.MemoryLimitPages = pages
	}
}

// Module is an instantiated provider module.
type Module struct {
	runtime wazero.Runtime
	mod     api.Module
	path    string
	closed  bool
}

// Instantiate reads and instantiates the module at path.
func Instantiate(ctx context.Context, path string, opts ...Option) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load(path, err)
	}
	return InstantiateBytes(ctx, path, data, opts...)
}

// InstantiateBytes instantiates an in-memory module. name is used for
// diagnostics and as the wazero module name.
func InstantiateBytes(ctx context.Context, name string, wasm []byte, opts ...Option) (*Module, error) {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	runtimeCfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, errors.Load(name, err)
	}

	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Load(name, err)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, moduleConfig(name, cfg))
	if err != nil {
		rt.Close(ctx)
		return nil, errors.Load(name, err)
	}

	// Reactor modules initialize explicitly; _start is never run.
	if init := mod.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			rt.Close(ctx)
			return nil, errors.Load(name, err)
		}
	}

	Logger().Debug("module instantiated", zap.String("path", name), zap.Int("bytes", len(wasm)))
	return &Module{runtime: rt, mod: mod, path: name}, nil
}

func moduleConfig(name string, cfg Config) wazero.ModuleConfig {
	mc := wazero.NewModuleConfig().
		WithName(filepath.Base(name)).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime()

	if cfg.Stdout != nil {
		mc = mc.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		mc = mc.WithStderr(cfg.Stderr)
	}

	fs := wazero.NewFSConfig()
	if cfg.Mounts == nil {
		fs = fs.WithDirMount(".", "/")
	}
	for host, guestPath := range cfg.Mounts {
		if !strings.HasPrefix(guestPath, "/") {
			guestPath = "/" + guestPath
		}
		fs = fs.WithDirMount(host, guestPath)
	}
	return mc.WithFSConfig(fs)
}

// Path returns the name the module was instantiated with.
func (m *Module) Path() string { return m.path }

// Lookup resolves an exported function.
func (m *Module) Lookup(name string) (api.Function, error) {
	if m.closed {
		return nil, errors.NotInitialized(errors.PhaseResolve, "module "+m.path)
	}
	fn := m.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.SymbolNotFound(m.path, name, errors.UndefinedSymbol(name))
	}
	return fn, nil
}

// Memory returns the module's exported memory.
func (m *Module) Memory() (api.Memory, error) {
	mem := m.mod.ExportedMemory("memory")
	if mem == nil {
		return nil, errors.SymbolNotFound(m.path, "memory", errors.UndefinedSymbol("memory"))
	}
	return mem, nil
}

// Global returns the current value of an exported global, for diagnostics.
func (m *Module) Global(name string) (uint64, bool) {
	g := m.mod.ExportedGlobal(name)
	if g == nil {
		return 0, false
	}
	return g.Get(), true
}

// Close releases the module and its runtime. Subsequent calls return nil.
func (m *Module) Close(ctx context.Context) error {
	if m.closed {
		return nil
	}
	m.closed = true

	if err := m.runtime.Close(ctx); err != nil {
		return errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "close "+m.path)
	}
	Logger().Debug("module closed", zap.String("path", m.path))
	return nil
}
