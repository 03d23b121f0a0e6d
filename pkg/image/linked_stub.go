//go:build !cgo || !(linux || freebsd || netbsd || openbsd || dragonfly || darwin)

package image

// Linked returns the Source for the running binary's own instrumentation
// tables. This target has no symbol-based discovery convention, so the
// source reports empty regions; freestanding and WASM programs should hand
// their linker-script or aggregation boundaries to FromPointers or
// FromRanges instead.
func Linked() Source {
	return static{}
}
