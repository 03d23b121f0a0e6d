package profraw

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/barecov/barecov/pkg/records"
)

var (
	// ErrBadMagic reports data that is not a raw profile unit.
	ErrBadMagic = errors.New("bad raw profile magic")
	// ErrVersion reports a unit written by a different format version.
	// Versions are matched exactly; nothing is reinterpreted.
	ErrVersion = errors.New("unsupported raw profile version")
	// ErrTruncated reports a unit shorter than its header promises.
	ErrTruncated = errors.New("truncated raw profile unit")
)

// Unit is one decoded raw profile unit. Record counter indexes are relative
// to the unit's own Counters slice.
type Unit struct {
	Header   Header
	Records  []records.Record
	Names    []byte
	Counters []uint64
}

// ReadUnit decodes the unit at the head of data and returns it along with
// the remaining bytes, which may hold further concatenated units.
func ReadUnit(data []byte) (Unit, []byte, error) {
	if len(data) < HeaderSize {
		return Unit{}, nil, fmt.Errorf("%d bytes is shorter than a header: %w", len(data), ErrTruncated)
	}
	hdr := Header{
		Magic:       binary.LittleEndian.Uint64(data[0:8]),
		Version:     binary.LittleEndian.Uint64(data[8:16]),
		Signature:   binary.LittleEndian.Uint64(data[16:24]),
		NumRecords:  binary.LittleEndian.Uint64(data[24:32]),
		NumCounters: binary.LittleEndian.Uint64(data[32:40]),
		NamesSize:   binary.LittleEndian.Uint64(data[40:48]),
	}
	if hdr.Magic != Magic {
		return Unit{}, nil, fmt.Errorf("%#x: %w", hdr.Magic, ErrBadMagic)
	}
	if hdr.Version != Version {
		return Unit{}, nil, fmt.Errorf("version %d, reader expects %d: %w", hdr.Version, Version, ErrVersion)
	}

	// Cardinalities are attacker-controlled relative to the data we hold;
	// cap them against the stream length before any size arithmetic so a
	// hostile header cannot overflow it.
	avail := uint64(len(data))
	if hdr.NumRecords > avail/RecordSize || hdr.NamesSize > avail || hdr.NumCounters > avail/8 {
		return Unit{}, nil, fmt.Errorf("header cardinalities exceed %d available bytes: %w", avail, ErrTruncated)
	}
	recBytes := int(hdr.NumRecords) * RecordSize
	namesPadded := int(hdr.NamesSize) + pad(int(hdr.NamesSize))
	counterBytes := int(hdr.NumCounters) * 8
	total := HeaderSize + recBytes + namesPadded + counterBytes
	if len(data) < total {
		return Unit{}, nil, fmt.Errorf("unit needs %d bytes, have %d: %w", total, len(data), ErrTruncated)
	}

	u := Unit{Header: hdr}
	off := HeaderSize
	u.Records = make([]records.Record, hdr.NumRecords)
	for i := range u.Records {
		e := data[off : off+RecordSize]
		u.Records[i] = records.Record{
			NameHash:     binary.LittleEndian.Uint64(e[0:8]),
			FuncHash:     binary.LittleEndian.Uint64(e[8:16]),
			CounterIndex: binary.LittleEndian.Uint64(e[16:24]),
			NumCounters:  binary.LittleEndian.Uint64(e[24:32]),
		}
		off += RecordSize
	}
	u.Names = data[off : off+int(hdr.NamesSize)]
	off += namesPadded
	u.Counters = make([]uint64, hdr.NumCounters)
	for i := range u.Counters {
		u.Counters[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}
	return u, data[total:], nil
}

// Split parses a concatenation of units back into its parts. An empty
// stream yields no units.
func Split(data []byte) ([]Unit, error) {
	var units []Unit
	for len(data) > 0 {
		u, rest, err := ReadUnit(data)
		if err != nil {
			return nil, fmt.Errorf("unit %d: %w", len(units), err)
		}
		units = append(units, u)
		data = rest
	}
	return units, nil
}
