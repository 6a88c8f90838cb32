package probe

import (
	"context"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/config"
	"github.com/wippyai/sheet-probe/guest"
	"github.com/wippyai/sheet-probe/native"
)

// openBackend is the default Opener: shared libraries go through the
// platform loader, .wasm providers through the WebAssembly runtime.
func (p *Probe) openBackend(ctx context.Context, cfg *config.Config) (sheetprobe.Classifier, error) {
	if cfg.ResolveBackend() == config.BackendWasm {
		opts := []guest.Option{guest.WithOutput(p.stdout, p.stderr)}
		for host, guestPath := range cfg.Mounts {
			opts = append(opts, guest.WithMount(host, guestPath))
		}
		if cfg.MemoryLimitPages > 0 {
			opts = append(opts, guest.WithMemoryLimitPages(cfg.MemoryLimitPages))
		}
		b, err := guest.Load(ctx, cfg.Library, cfg.Symbols, opts...)
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	var opts []native.Option
	if cfg.Now {
		opts = append(opts, native.WithNow())
	}
	if cfg.Global {
		opts = append(opts, native.WithGlobal())
	}
	b, err := native.Load(cfg.Library, cfg.Symbols, opts...)
	if err != nil {
		return nil, err
	}
	return b, nil
}
