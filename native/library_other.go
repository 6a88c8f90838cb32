//go:build !(darwin || freebsd || linux)

package native

import (
	"runtime"

	"github.com/wippyai/sheet-probe/errors"
)

func dlopen(string, openConfig) (uintptr, error) {
	return 0, errors.Unsupported(errors.PhaseLoad, "no dynamic loader on "+runtime.GOOS)
}

func dlsym(uintptr, string) (uintptr, error) {
	return 0, errors.Unsupported(errors.PhaseResolve, "no dynamic loader on "+runtime.GOOS)
}

func dlclose(uintptr) error {
	return nil
}

// Unreachable: Open never succeeds here.
func registerFunc(any, uintptr) {
	panic("native: no dynamic loader on " + runtime.GOOS)
}
