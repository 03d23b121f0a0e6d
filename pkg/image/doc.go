// Package image locates the instrumentation tables the compiler embedded in
// the running program's binary image.
//
// An instrumented build carries three contiguous tables: function records,
// a names blob, and the live counter array. Where they live depends on the
// object format and linker. This package hides that behind the Source
// capability: each implementation knows one discovery convention and yields
// the same Regions value.
//
//	regions := image.Linked().Regions()
//	if !regions.Instrumented() {
//	    return // built without instrumentation
//	}
//
// Discovery conventions:
//
//   - Linked() reads the tables of the current binary through linker-provided
//     boundary symbols (ELF start/stop symbols, Mach-O section bounds). On
//     targets without a discovery convention it returns empty regions.
//   - FromPointers() accepts explicit boundary pointers, for freestanding
//     targets whose linker script defines the boundaries by hand.
//   - FromRanges() accepts ready-made byte ranges, for environments that
//     aggregate per-module tables at link time (WASM) and for tests.
//
// Absent instrumentation is never an error: every Source yields possibly
// empty regions and Regions.Instrumented reports emptiness of the record
// table. No implementation allocates.
package image
