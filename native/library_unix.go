//go:build darwin || freebsd || linux

package native

import "github.com/ebitengine/purego"

func dlopen(path string, cfg openConfig) (uintptr, error) {
	mode := purego.RTLD_LAZY
	if cfg.now {
		mode = purego.RTLD_NOW
	}
	if cfg.global {
		mode |= purego.RTLD_GLOBAL
	} else {
		mode |= purego.RTLD_LOCAL
	}
	return purego.Dlopen(path, mode)
}

func dlsym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

func dlclose(handle uintptr) error {
	return purego.Dlclose(handle)
}

func registerFunc(fptr any, addr uintptr) {
	purego.RegisterFunc(fptr, addr)
}
