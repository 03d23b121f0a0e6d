//go:build cgo && (linux || freebsd || netbsd || openbsd || dragonfly)

package image

// ELF linkers synthesize __start_<section> / __stop_<section> boundary
// symbols for every section whose name is a valid C identifier. The
// instrumentation sections qualify, so the weak references below resolve to
// the table boundaries in an instrumented build and to null otherwise.

/*
extern char __start___llvm_prf_data[] __attribute__((weak, visibility("hidden")));
extern char __stop___llvm_prf_data[] __attribute__((weak, visibility("hidden")));
extern char __start___llvm_prf_names[] __attribute__((weak, visibility("hidden")));
extern char __stop___llvm_prf_names[] __attribute__((weak, visibility("hidden")));
extern char __start___llvm_prf_cnts[] __attribute__((weak, visibility("hidden")));
extern char __stop___llvm_prf_cnts[] __attribute__((weak, visibility("hidden")));

static char *barecov_data_start(void)  { return __start___llvm_prf_data; }
static char *barecov_data_stop(void)   { return __stop___llvm_prf_data; }
static char *barecov_names_start(void) { return __start___llvm_prf_names; }
static char *barecov_names_stop(void)  { return __stop___llvm_prf_names; }
static char *barecov_cnts_start(void)  { return __start___llvm_prf_cnts; }
static char *barecov_cnts_stop(void)   { return __stop___llvm_prf_cnts; }
*/
import "C"

import "unsafe"

type linked struct{}

func (linked) Regions() Regions {
	return Regions{
		Records:  span(unsafe.Pointer(C.barecov_data_start()), unsafe.Pointer(C.barecov_data_stop())),
		Names:    span(unsafe.Pointer(C.barecov_names_start()), unsafe.Pointer(C.barecov_names_stop())),
		Counters: span(unsafe.Pointer(C.barecov_cnts_start()), unsafe.Pointer(C.barecov_cnts_stop())),
	}
}

// Linked returns the Source for the running binary's own instrumentation
// tables, discovered through the ELF start/stop boundary symbols.
func Linked() Source {
	return linked{}
}
