// Package profraw encodes captured instrumentation data into the raw
// profile interchange format and reads it back.
//
// A unit is self-delimited: a fixed header carrying the magic, format
// version, build signature and section cardinalities, followed by the
// record table, the names blob (zero-padded to the counter alignment) and
// the counters concatenated in record order. Units may be concatenated into
// one stream; Split recovers them.
//
// All multi-byte fields are little-endian. The format version is matched
// exactly on read; there is no cross-version compatibility.
package profraw

// Magic identifies the raw profile format family. On disk it reads as the
// bytes 0xFF 'b' 'c' 'v' 'p' 'r' 'f' 0x81.
const Magic uint64 = 0x81667270766362ff

// Version is the pinned format version. Version 9 stores the names blob
// uncompressed; readers reject any other version rather than reinterpret.
const Version uint64 = 9

const (
	// HeaderSize is the encoded size of a unit header: six 64-bit words.
	HeaderSize = 48
	// RecordSize is the encoded size of one function record.
	RecordSize = 32
	// counterAlign is the alignment the counters section starts on; the
	// names blob is zero-padded up to it.
	counterAlign = 8
)

// Header is the leading section of a unit. NumCounters is the summed
// counter count across records, not the length of the in-memory counter
// table. A header with zero cardinalities and signature 0 is the canonical
// output of an uninstrumented build.
type Header struct {
	Magic       uint64
	Version     uint64
	Signature   uint64
	NumRecords  uint64
	NumCounters uint64
	NamesSize   uint64
}

func pad(n int) int {
	if rem := n % counterAlign; rem != 0 {
		return counterAlign - rem
	}
	return 0
}
