// Package probe drives one classification provider through a complete
// round trip and reports what happened on the console.
//
// A run follows the sequence of the C harness the probe replaces:
//
//	open      load the provider (dlopen, RTLD_LAZY by default)
//	resolve   classify_excel_sheets_c and free_c_string
//	invoke    print "Classifying file: <path>", call the classifier
//	print     "Result: <text>" or "Function returned NULL"
//	release   free_c_string, only for a non-NULL result
//	close     unload the provider
//
// Load and resolve failures end the run with an error whose Reason is the
// loader's message. Every handle acquired by a run is released before Run
// returns, on all paths. ExitCode maps the returned error to the process
// exit status: 0 for a completed run, NULL result included, 1 otherwise.
//
// Watch repeats the run whenever the input file or the provider changes.
package probe
