package testutil

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"

	"github.com/barecov/barecov/pkg/image"
)

// Func describes one instrumented function of a synthetic image.
type Func struct {
	Name     string
	FuncHash uint64
	Counters []uint64
}

// BuildImage assembles the three compiler-emitted regions a real
// instrumented binary would carry: a record table, a names blob and a
// counter table, laid out the way the section locator would discover them.
// Tests mutate the returned Counters slice to simulate instrumented code
// running.
func BuildImage(funcs ...Func) image.Regions {
	var regions image.Regions
	var counterIndex uint64
	for _, fn := range funcs {
		nameHash := xxh3.HashString(fn.Name)

		var entry [32]byte
		binary.LittleEndian.PutUint64(entry[0:8], nameHash)
		binary.LittleEndian.PutUint64(entry[8:16], fn.FuncHash)
		binary.LittleEndian.PutUint64(entry[16:24], counterIndex)
		binary.LittleEndian.PutUint64(entry[24:32], uint64(len(fn.Counters)))
		regions.Records = append(regions.Records, entry[:]...)

		var head [12]byte
		binary.LittleEndian.PutUint64(head[0:8], nameHash)
		binary.LittleEndian.PutUint32(head[8:12], uint32(len(fn.Name)))
		regions.Names = append(regions.Names, head[:]...)
		regions.Names = append(regions.Names, fn.Name...)

		for _, v := range fn.Counters {
			var c [8]byte
			binary.LittleEndian.PutUint64(c[:], v)
			regions.Counters = append(regions.Counters, c[:]...)
		}
		counterIndex += uint64(len(fn.Counters))
	}
	return regions
}

// NameHash returns the record name hash for a function name, matching what
// BuildImage writes into the names blob.
func NameHash(name string) uint64 {
	return xxh3.HashString(name)
}
