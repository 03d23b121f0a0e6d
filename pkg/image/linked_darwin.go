//go:build cgo && darwin

package image

// Mach-O has no start/stop boundary symbols; section bounds come from the
// executable header via getsectiondata.

/*
#include <stdlib.h>
#include <mach-o/getsect.h>
#include <mach-o/ldsyms.h>

static unsigned char *barecov_sect(const char *name, unsigned long *size) {
	return getsectiondata(&_mh_execute_header, "__DATA", name, size);
}
*/
import "C"

import "unsafe"

type linked struct{}

func (linked) Regions() Regions {
	return Regions{
		Records:  sect("__llvm_prf_data"),
		Names:    sect("__llvm_prf_names"),
		Counters: sect("__llvm_prf_cnts"),
	}
}

func sect(name string) []byte {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	var size C.ulong
	p := C.barecov_sect(cname, &size)
	if p == nil || size == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), uintptr(size))
}

// Linked returns the Source for the running binary's own instrumentation
// tables, discovered through the Mach-O section headers.
func Linked() Source {
	return linked{}
}
