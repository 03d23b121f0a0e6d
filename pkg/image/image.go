package image

import "unsafe"

// Regions holds the three compiler-emitted tables as read-only views into
// the program's own memory. The counter table is live: instrumented code
// increments it concurrently, so callers may only read it, and only expect
// approximate consistency while the program is running.
type Regions struct {
	// Records is the function record table, a sequence of fixed-width
	// entries describing each instrumented function.
	Records []byte
	// Names is the names blob referenced by record name hashes.
	Names []byte
	// Counters is the live counter array, 8 bytes per counter.
	Counters []byte
}

// Instrumented reports whether the binary carries instrumentation, which is
// exactly the question of whether the record table is non-empty. It is
// constant-time, allocation-free and safe to call at any point in program
// lifetime.
func (r Regions) Instrumented() bool {
	return len(r.Records) != 0
}

// Source discovers the instrumentation regions of the running program.
// Implementations never fail: a target without instrumentation (or without a
// discovery convention) yields empty regions.
type Source interface {
	Regions() Regions
}

type static struct {
	regions Regions
}

func (s static) Regions() Regions { return s.regions }

// FromRanges returns a Source over explicit byte ranges. It serves
// environments that aggregate the tables into known ranges at link time, and
// tests that fabricate an image.
func FromRanges(records, names, counters []byte) Source {
	return static{Regions{Records: records, Names: names, Counters: counters}}
}

// FromPointers returns a Source over [start, stop) boundary pointers, the
// shape a custom linker script provides. A nil boundary or a pair with
// stop <= start yields an empty range for that table.
func FromPointers(recordsStart, recordsStop, namesStart, namesStop, countersStart, countersStop unsafe.Pointer) Source {
	return static{Regions{
		Records:  span(recordsStart, recordsStop),
		Names:    span(namesStart, namesStop),
		Counters: span(countersStart, countersStop),
	}}
}

func span(start, stop unsafe.Pointer) []byte {
	if start == nil || stop == nil || uintptr(stop) <= uintptr(start) {
		return nil
	}
	return unsafe.Slice((*byte)(start), uintptr(stop)-uintptr(start))
}
