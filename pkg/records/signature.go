package records

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Signature derives the build-identifying hash of a table: each record's
// name and structural hashes are folded through xxh3 and the per-record
// values are combined with a wrapping sum, so the result is independent of
// the order records were discovered in. Counter values never enter the
// computation, keeping the signature stable across captures within one run.
// An empty table has signature 0.
func Signature(t *Table) uint64 {
	var sig uint64
	var buf [16]byte
	for i := 0; i < t.Len(); i++ {
		rec := t.At(i)
		binary.LittleEndian.PutUint64(buf[0:8], rec.NameHash)
		binary.LittleEndian.PutUint64(buf[8:16], rec.FuncHash)
		sig += xxh3.Hash(buf[:])
	}
	return sig
}
