// Package sheetprobe drives the C ABI of a sheet classification provider.
//
// A provider is either a native shared library or a core WebAssembly module
// exporting two symbols:
//
//	char *classify_excel_sheets_c(const char *path); // owned result or NULL
//	void  free_c_string(char *s);                    // releases a result
//
// The probe opens the provider, resolves both symbols once into a typed
// binding, invokes the classifier with a file path, prints the result and
// hands it back to the provider's own deallocator.
//
// # Architecture Overview
//
//	sheetprobe/          Root package with Classifier, Symbols and ForeignString
//	├── native/          Shared library provider (dlopen via purego)
//	├── guest/           WebAssembly provider (wazero + WASI preview1)
//	├── probe/           The load, resolve, call, release, close sequence
//	├── report/          Decoding and rendering of the provider's JSON result
//	├── config/          Defaults, YAML config file and validation
//	├── errors/          Structured error types for diagnostics
//	└── cmd/probe/       CLI, watch mode and interactive TUI
//
// # Quick Start
//
//	c, err := native.Load("./target/release/liblayout_view.so", sheetprobe.DefaultSymbols())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	res, err := c.Classify(ctx, "./files/test_data.xlsx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if res == nil {
//	    fmt.Println("Function returned NULL")
//	    return
//	}
//	defer res.Release()
//
//	text, _ := res.Text()
//	fmt.Println("Result:", text)
//
// # Ownership
//
// A non-nil ForeignString is owned by the caller and must be released exactly
// once. Release hands the pointer to the provider's free_c_string; reads and
// releases after that return an already_released error without touching
// foreign memory. A nil result was never allocated and needs no release.
//
// # Thread Safety
//
// Classifiers and ForeignStrings are not safe for concurrent use. The probe
// runs the whole sequence on one goroutine.
package sheetprobe
