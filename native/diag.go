package native

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
	"go.uber.org/zap"
)

// hostFields describes the host for load failure diagnostics.
func hostFields() []zap.Field {
	return []zap.Field{
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
		zap.String("cpu", cpuid.CPU.BrandName),
		zap.String("vendor", cpuid.CPU.VendorString),
		zap.Int("x86_level", cpuid.CPU.X64Level()),
	}
}
