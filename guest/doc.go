// Package guest binds a classification provider compiled to a core
// WebAssembly module.
//
// The module runs under wazero with WASI preview1 and must export:
//
//	memory
//	classify_excel_sheets_c(ptr i32) -> i32   NUL-terminated in, owned out
//	free_c_string(ptr i32)
//	allocate(size i32) -> i32                 or alloc
//	deallocate(ptr i32, size i32)             or dealloc, size optional
//
// The host copies the input path into guest memory through the allocator,
// calls the classifier and frees the argument again. A non-zero result is
// returned as a ForeignString whose Release calls free_c_string, so the
// string goes back to the allocator that produced it.
//
// The working directory is mounted at "/" by default so relative paths
// resolve the same way for the guest as for the host.
package guest
