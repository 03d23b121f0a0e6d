// Package records interprets the compiler-emitted function record table as a
// typed, validated sequence.
//
// A Table is a zero-copy view: it keeps references into the image regions it
// was built from and never mutates them. Building a Table runs every
// consistency check once, so later iteration (the encoder makes two passes,
// one to size and one to write) cannot fail.
package records

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/barecov/barecov/pkg/image"
)

// EntrySize is the width of one function record in the record table.
const EntrySize = 32

// ErrInconsistent reports instrumentation metadata that contradicts itself,
// such as a counter range outside the counter table. It signals mismatched
// build artifacts or memory corruption; nothing is encoded from such an
// image.
var ErrInconsistent = errors.New("inconsistent instrumentation metadata")

// Record is one instrumented function, as laid out by the compiler: four
// little-endian 64-bit words.
type Record struct {
	// NameHash identifies the function's entry in the names blob.
	NameHash uint64
	// FuncHash fingerprints the function's control flow, letting consumers
	// detect counters that predate a source change.
	FuncHash uint64
	// CounterIndex is the index of the function's first counter in the
	// counter table.
	CounterIndex uint64
	// NumCounters is the number of counters the function owns.
	NumCounters uint64
}

// Table is a validated view over the record table of an image. It is
// re-iterable and does not copy: counter reads go straight to the live
// counter table, so two iterations may observe different counter values but
// always the same records.
type Table struct {
	raw       []byte
	counters  []byte
	names     []byte
	nameIndex map[uint64]int
	total     uint64
}

// New builds a Table over the given regions, validating every record:
// the table length must be a whole number of entries, each counter range
// must lie inside the counter table, each record must own at least one
// counter, and each name hash must resolve in the names blob. Any violation
// returns an error wrapping ErrInconsistent. Empty regions yield a valid
// empty table.
func New(regions image.Regions) (*Table, error) {
	if len(regions.Records)%EntrySize != 0 {
		return nil, fmt.Errorf("record table length %d is not a multiple of %d: %w",
			len(regions.Records), EntrySize, ErrInconsistent)
	}
	if len(regions.Counters)%8 != 0 {
		return nil, fmt.Errorf("counter table length %d is not a multiple of 8: %w",
			len(regions.Counters), ErrInconsistent)
	}

	index, err := indexNames(regions.Names)
	if err != nil {
		return nil, err
	}

	t := &Table{
		raw:       regions.Records,
		counters:  regions.Counters,
		names:     regions.Names,
		nameIndex: index,
	}

	numCounters := uint64(len(regions.Counters) / 8)
	for i := 0; i < t.Len(); i++ {
		rec := t.At(i)
		if rec.NumCounters == 0 {
			return nil, fmt.Errorf("record %d owns no counters: %w", i, ErrInconsistent)
		}
		if rec.CounterIndex > numCounters || rec.NumCounters > numCounters-rec.CounterIndex {
			return nil, fmt.Errorf("record %d counter range [%d, +%d) exceeds table of %d: %w",
				i, rec.CounterIndex, rec.NumCounters, numCounters, ErrInconsistent)
		}
		if _, ok := index[rec.NameHash]; !ok {
			return nil, fmt.Errorf("record %d name hash %#x not present in names blob: %w",
				i, rec.NameHash, ErrInconsistent)
		}
		t.total += rec.NumCounters
	}
	return t, nil
}

// Len returns the number of function records.
func (t *Table) Len() int {
	return len(t.raw) / EntrySize
}

// At decodes record i. i must be in [0, Len()).
func (t *Table) At(i int) Record {
	e := t.raw[i*EntrySize : (i+1)*EntrySize]
	return Record{
		NameHash:     binary.LittleEndian.Uint64(e[0:8]),
		FuncHash:     binary.LittleEndian.Uint64(e[8:16]),
		CounterIndex: binary.LittleEndian.Uint64(e[16:24]),
		NumCounters:  binary.LittleEndian.Uint64(e[24:32]),
	}
}

// TotalCounters returns the summed counter count across all records, the
// cardinality an encoded unit advertises.
func (t *Table) TotalCounters() uint64 {
	return t.total
}

// CounterBytes returns the live bytes backing rec's counters. The slice
// aliases the counter table; instrumented code may be incrementing it while
// the caller reads.
func (t *Table) CounterBytes(rec Record) []byte {
	return t.counters[rec.CounterIndex*8 : (rec.CounterIndex+rec.NumCounters)*8]
}

// CounterTable returns the live bytes of the whole counter table.
func (t *Table) CounterTable() []byte {
	return t.counters
}

// Names returns the raw names blob.
func (t *Table) Names() []byte {
	return t.names
}

// NameOffset resolves a name hash to the byte offset of its entry in the
// names blob. It exists for consumers that map records back to function
// names; the walker itself only needs the index once, to reject records
// whose hash resolves nowhere. For every record in a valid table the lookup
// succeeds.
func (t *Table) NameOffset(hash uint64) (int, bool) {
	off, ok := t.nameIndex[hash]
	return off, ok
}

// indexNames walks the names blob and builds the hash to entry-offset map.
// Blob layout is consecutive entries of {name hash u64, name length u32,
// name bytes}; a blob that does not parse to exactly its length is
// inconsistent metadata.
func indexNames(blob []byte) (map[uint64]int, error) {
	index := make(map[uint64]int)
	off := 0
	for off < len(blob) {
		if len(blob)-off < 12 {
			return nil, fmt.Errorf("names blob truncated at offset %d: %w", off, ErrInconsistent)
		}
		hash := binary.LittleEndian.Uint64(blob[off : off+8])
		nameLen := int(binary.LittleEndian.Uint32(blob[off+8 : off+12]))
		if len(blob)-off-12 < nameLen {
			return nil, fmt.Errorf("names blob entry at offset %d overruns blob: %w", off, ErrInconsistent)
		}
		index[hash] = off
		off += 12 + nameLen
	}
	return index, nil
}
