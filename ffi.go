package sheetprobe

import (
	"context"

	"github.com/wippyai/sheet-probe/errors"
)

// Exported symbol names of a classification provider.
const (
	ClassifySymbol = "classify_excel_sheets_c"
	FreeSymbol     = "free_c_string"
)

// Symbols names the two entry points resolved from a provider.
type Symbols struct {
	Classify string `yaml:"classify" json:"classify"`
	Free     string `yaml:"free" json:"free"`
}

// DefaultSymbols returns the names exported by liblayout_view.
func DefaultSymbols() Symbols {
	return Symbols{Classify: ClassifySymbol, Free: FreeSymbol}
}

// WithDefaults fills empty names from DefaultSymbols.
func (s Symbols) WithDefaults() Symbols {
	if s.Classify == "" {
		s.Classify = ClassifySymbol
	}
	if s.Free == "" {
		s.Free = FreeSymbol
	}
	return s
}

// Classifier is a typed binding to a loaded provider.
type Classifier interface {
	// Classify invokes the provider with path. A nil ForeignString and nil
	// error means the provider returned NULL.
	Classify(ctx context.Context, path string) (*ForeignString, error)

	// Close unloads the provider. It is safe to call more than once.
	Close(ctx context.Context) error
}

// ForeignString is a NUL-terminated string allocated by a provider and owned
// by the caller until Release.
type ForeignString struct {
	read     func() (string, error)
	free     func() error
	released bool
}

// NewForeignString wraps a provider allocation. read copies the current
// contents out of foreign memory; free hands the allocation back to the
// provider's deallocator.
func NewForeignString(read func() (string, error), free func() error) *ForeignString {
	return &ForeignString{read: read, free: free}
}

// Text copies the string out of foreign memory. Text that is not valid
// UTF-8 is returned as raw bytes together with an invalid_utf8 error.
func (s *ForeignString) Text() (string, error) {
	if s == nil {
		return "", errors.NotInitialized(errors.PhaseDecode, "foreign string")
	}
	if s.released {
		return "", errors.Released(errors.PhaseDecode)
	}
	return s.read()
}

// Release frees the string through the provider. A second call returns an
// already_released error without calling the deallocator. Releasing a nil
// ForeignString is a no-op.
func (s *ForeignString) Release() error {
	if s == nil {
		return nil
	}
	if s.released {
		return errors.Released(errors.PhaseRelease)
	}
	s.released = true
	return s.free()
}

// Released reports whether Release has been called.
func (s *ForeignString) Released() bool {
	return s != nil && s.released
}
