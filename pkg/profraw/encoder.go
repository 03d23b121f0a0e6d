package profraw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/barecov/barecov/pkg/records"
)

// ErrLayout reports an encode whose byte count diverged from the computed
// layout. It cannot happen under the documented single-capture contract and
// signals an implementation bug or a snapshot mutated mid-encode; the
// encoder fails closed rather than finish a misleadingly sized unit.
var ErrLayout = errors.New("encoded byte count diverged from computed layout")

// layout is the single size computation both Size and Encode derive from,
// which is what makes their byte counts equal by construction.
type layout struct {
	numRecords   int
	numCounters  uint64
	namesSize    int
	namesPadding int
}

func layoutFor(t *records.Table) layout {
	return layout{
		numRecords:   t.Len(),
		numCounters:  t.TotalCounters(),
		namesSize:    len(t.Names()),
		namesPadding: pad(len(t.Names())),
	}
}

func (l layout) total() int {
	return HeaderSize + l.numRecords*RecordSize + l.namesSize + l.namesPadding + int(l.numCounters)*8
}

// Size returns the exact number of bytes Encode will produce for t. A table
// with zero records sizes to HeaderSize.
func Size(t *records.Table) int {
	return layoutFor(t).total()
}

// Encode writes one unit for t to w and returns the bytes written, always
// equal to Size(t) on success. Counter values are read from the live
// counter table at this moment; everything else was validated when t was
// built. Records are written with counter offsets rewritten to be relative
// to the unit's own counters section, so a unit is position-independent and
// concatenation-safe.
//
// A write refused by the sink aborts the encode with the sink's error; the
// bytes already written are garbage the caller must discard.
func Encode(w io.Writer, t *records.Table) (int, error) {
	l := layoutFor(t)
	written := 0

	hdr := Header{
		Magic:       Magic,
		Version:     Version,
		Signature:   records.Signature(t),
		NumRecords:  uint64(l.numRecords),
		NumCounters: l.numCounters,
		NamesSize:   uint64(l.namesSize),
	}
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], hdr.Magic)
	binary.LittleEndian.PutUint64(buf[8:16], hdr.Version)
	binary.LittleEndian.PutUint64(buf[16:24], hdr.Signature)
	binary.LittleEndian.PutUint64(buf[24:32], hdr.NumRecords)
	binary.LittleEndian.PutUint64(buf[32:40], hdr.NumCounters)
	binary.LittleEndian.PutUint64(buf[40:48], hdr.NamesSize)
	if err := emit(w, buf[:], &written); err != nil {
		return written, err
	}

	// Record table. Counter offsets become running offsets into the
	// counters section written below, which concatenates per-record slices
	// in this same order.
	var outIndex uint64
	for i := 0; i < t.Len(); i++ {
		rec := t.At(i)
		var entry [RecordSize]byte
		binary.LittleEndian.PutUint64(entry[0:8], rec.NameHash)
		binary.LittleEndian.PutUint64(entry[8:16], rec.FuncHash)
		binary.LittleEndian.PutUint64(entry[16:24], outIndex)
		binary.LittleEndian.PutUint64(entry[24:32], rec.NumCounters)
		outIndex += rec.NumCounters
		if err := emit(w, entry[:], &written); err != nil {
			return written, err
		}
	}

	if err := emit(w, t.Names(), &written); err != nil {
		return written, err
	}
	if err := emitZeros(w, l.namesPadding, &written); err != nil {
		return written, err
	}

	for i := 0; i < t.Len(); i++ {
		if err := emit(w, t.CounterBytes(t.At(i)), &written); err != nil {
			return written, err
		}
	}

	if written != l.total() {
		return written, fmt.Errorf("wrote %d bytes, layout computed %d: %w", written, l.total(), ErrLayout)
	}
	return written, nil
}

func emit(w io.Writer, p []byte, written *int) error {
	n, err := w.Write(p)
	*written += n
	if err != nil {
		return fmt.Errorf("writing profile data: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("short write of %d/%d bytes: %w", n, len(p), ErrLayout)
	}
	return nil
}

// emitZeros writes n zero bytes of alignment padding.
func emitZeros(w io.Writer, n int, written *int) error {
	var zero [16]byte
	for n > 0 {
		chunk := n
		if chunk > len(zero) {
			chunk = len(zero)
		}
		if err := emit(w, zero[:chunk], written); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
