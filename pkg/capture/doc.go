// Package capture is the embeddable surface for dumping a program's own
// instrumentation counters as a raw profile.
//
// A program built with coverage or PGO instrumentation carries counter
// tables that external analysis tools cannot see until they are written
// out. This package reads those tables in-process and serializes them, and
// is designed to work where almost nothing else does: no files, no heap and
// no threads are required on the fixed-buffer path.
//
// Hosted usage:
//
//	if capture.IsInstrumented() {
//	    if err := capture.WriteFile("program.profraw"); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// Freestanding usage, with a preallocated buffer and explicit table
// boundaries from the linker script:
//
//	c := capture.New(capture.Options{Source: image.FromPointers(...)})
//	n, err := c.RequiredSize()
//	if err != nil {
//	    return err
//	}
//	sink := profraw.NewFixed(buf[:n])
//	if _, err := c.Capture(sink); err != nil {
//	    return err
//	}
//	transmit(sink.Bytes())
//
// Concurrency contract: capture never locks. Instrumented code increments
// the counter table while a capture reads it, so a profile taken from a
// running program is approximately consistent, never atomic. Overlapping
// calls into this package must be serialized by the caller; the mutators
// may be interrupt handlers on targets with no locking primitives at all,
// so internal synchronization would be both useless and unportable.
package capture
