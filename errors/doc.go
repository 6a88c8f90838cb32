// Package errors provides structured error types for the sheet probe.
//
// Errors are categorized by Phase (where in the probe sequence the error
// occurred) and Kind (error category). The two fatal classes of the probe are
// load failures (PhaseLoad) and symbol resolution failures (PhaseResolve).
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindNotFound).
//		Library("./liblayout_view.so").
//		Symbol("free_c_string").
//		Cause(loaderErr).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Load(path, loaderErr)
//	err := errors.SymbolNotFound(path, "classify_excel_sheets_c", loaderErr)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
