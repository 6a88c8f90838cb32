// Package native binds a classification provider built as a shared library.
//
// The library is opened with the platform loader (dlopen) through purego, so
// no cgo toolchain is needed. Symbols are resolved once by Bind into typed Go
// functions; every later call goes straight through those functions.
//
//	lib, err := native.Open("./target/release/liblayout_view.so")
//	if err != nil {
//	    return err // errors.IsLoad(err)
//	}
//	b, err := native.Bind(lib, sheetprobe.DefaultSymbols())
//	if err != nil {
//	    lib.Close()
//	    return err // errors.IsResolve(err)
//	}
//	defer b.Close(ctx)
//
// Load combines both steps and closes the library when binding fails.
//
// Libraries are opened with lazy binding by default, like RTLD_LAZY in the
// original C harness. WithNow resolves every undefined symbol at open time.
package native
