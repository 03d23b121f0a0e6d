package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/barecov/barecov/internal/logging"
	"github.com/barecov/barecov/pkg/image"
	"github.com/barecov/barecov/pkg/profraw"
	"github.com/barecov/barecov/pkg/records"
)

// ErrIncompatible reports profile data that was not produced by the current
// build, detected by signature or version mismatch.
var ErrIncompatible = errors.New("incompatible profile data")

// Options configures a Capturer.
type Options struct {
	// Source discovers the instrumentation regions. Nil means the running
	// binary's own tables via image.Linked().
	Source image.Source
	// Logger receives debug diagnostics. Nil disables logging entirely,
	// which is the right choice on freestanding targets.
	Logger *zerolog.Logger
}

// Capturer captures raw profiles from one metadata source. The zero-cost
// queries (IsInstrumented) and the capture operations share the source, so
// everything observes the same tables.
type Capturer struct {
	src image.Source
	log zerolog.Logger
}

// New returns a Capturer for the given options.
func New(opts Options) *Capturer {
	src := opts.Source
	if src == nil {
		src = image.Linked()
	}
	log := logging.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Capturer{src: src, log: log}
}

// IsInstrumented reports whether the source's binary was built with
// instrumentation. It has no side effects, performs no allocation and may
// be called before anything else.
func (c *Capturer) IsInstrumented() bool {
	return c.src.Regions().Instrumented()
}

// RequiredSize returns the exact byte length the next Capture over an
// unchanged snapshot will produce. Callers on the allocation-free path size
// their fixed buffer with it.
func (c *Capturer) RequiredSize() (int, error) {
	t, err := c.table()
	if err != nil {
		return 0, err
	}
	return profraw.Size(t), nil
}

// Signature returns the build-identifying hash of the discovered metadata.
// It is stable across captures within a run and independent of counter
// values; two binaries instrumenting different function sets disagree on it
// with overwhelming probability.
func (c *Capturer) Signature() (uint64, error) {
	t, err := c.table()
	if err != nil {
		return 0, err
	}
	return records.Signature(t), nil
}

// Capture validates the instrumentation metadata and writes one raw profile
// unit to w, returning the bytes written. An uninstrumented binary encodes
// to the minimal zero-record unit, which is not an error. Metadata that
// fails validation aborts before any byte is written; a write refused by
// the sink (profraw.ErrSinkFull for a fixed sink) leaves a partial prefix
// the caller must discard.
func (c *Capturer) Capture(w io.Writer) (int, error) {
	t, err := c.table()
	if err != nil {
		return 0, err
	}
	c.log.Debug().
		Int("records", t.Len()).
		Uint64("counters", t.TotalCounters()).
		Int("names_bytes", len(t.Names())).
		Msg("capturing raw profile")
	return profraw.Encode(w, t)
}

// CaptureBytes captures into a growable in-memory sink and returns the
// encoded unit. Hosted-target convenience; allocates.
func (c *Capturer) CaptureBytes() ([]byte, error) {
	var sink profraw.Buffer
	if _, err := c.Capture(&sink); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// ResetCounters zeroes the live counter table so a later capture records
// only execution from this point on. Call it after dumping, or after a
// fork, when the dumped and the future profile should not overlap. The
// external serialization contract of Capture applies here too.
func (c *Capturer) ResetCounters() {
	counters := c.src.Regions().Counters
	for i := range counters {
		counters[i] = 0
	}
}

// CheckCompatible verifies that data — one unit or a concatenation — was
// produced by the current build: every unit must carry the pinned format
// version and this build's signature. A mismatch returns an error wrapping
// ErrIncompatible. Use it before treating previously dumped data as
// mergeable with a fresh capture.
func (c *Capturer) CheckCompatible(data []byte) error {
	_, err := c.compatibleUnits(data)
	return err
}

// MergeCounters folds previously dumped profile data back into the live
// counter table, adding each unit record's counter values onto the matching
// function's counters. Call it before a fresh capture when data from an
// earlier run (or the parent of a fork) should accumulate instead of being
// overwritten. The data must pass CheckCompatible and every unit record
// must match a live record exactly; any mismatch returns an error wrapping
// ErrIncompatible with nothing merged. The external serialization contract
// of Capture and ResetCounters applies here too.
func (c *Capturer) MergeCounters(data []byte) error {
	t, err := c.table()
	if err != nil {
		return err
	}
	units, err := c.compatibleUnits(data)
	if err != nil {
		return err
	}

	// Index the live records by identity. The signature check above makes
	// a lookup miss all but impossible, but merging must be all-or-nothing
	// so every unit record is resolved and bounds-checked before any
	// counter is touched.
	type identity struct{ nameHash, funcHash uint64 }
	live := make(map[identity]records.Record, t.Len())
	for i := 0; i < t.Len(); i++ {
		rec := t.At(i)
		live[identity{rec.NameHash, rec.FuncHash}] = rec
	}
	for i, u := range units {
		for j, ur := range u.Records {
			rec, ok := live[identity{ur.NameHash, ur.FuncHash}]
			if !ok {
				return fmt.Errorf("unit %d record %d has no matching function in this build: %w",
					i, j, ErrIncompatible)
			}
			if rec.NumCounters != ur.NumCounters {
				return fmt.Errorf("unit %d record %d carries %d counters, this build has %d: %w",
					i, j, ur.NumCounters, rec.NumCounters, ErrIncompatible)
			}
			n := uint64(len(u.Counters))
			if ur.CounterIndex > n || ur.NumCounters > n-ur.CounterIndex {
				return fmt.Errorf("unit %d record %d counter range [%d, +%d) exceeds unit's %d counters: %w",
					i, j, ur.CounterIndex, ur.NumCounters, n, ErrIncompatible)
			}
		}
	}

	for _, u := range units {
		for _, ur := range u.Records {
			rec := live[identity{ur.NameHash, ur.FuncHash}]
			dst := t.CounterBytes(rec)
			for k := uint64(0); k < ur.NumCounters; k++ {
				sum := binary.LittleEndian.Uint64(dst[k*8:]) + u.Counters[ur.CounterIndex+k]
				binary.LittleEndian.PutUint64(dst[k*8:], sum)
			}
		}
	}
	return nil
}

// compatibleUnits splits data and verifies every unit against this build's
// format version and signature.
func (c *Capturer) compatibleUnits(data []byte) ([]profraw.Unit, error) {
	sig, err := c.Signature()
	if err != nil {
		return nil, err
	}
	units, err := profraw.Split(data)
	if err != nil {
		if errors.Is(err, profraw.ErrVersion) || errors.Is(err, profraw.ErrBadMagic) {
			return nil, fmt.Errorf("%v: %w", err, ErrIncompatible)
		}
		return nil, err
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("no profile units present: %w", ErrIncompatible)
	}
	for i, u := range units {
		if u.Header.Signature != sig {
			return nil, fmt.Errorf("unit %d has signature %#x, this build is %#x: %w",
				i, u.Header.Signature, sig, ErrIncompatible)
		}
	}
	return units, nil
}

// table builds the validated record view over the current regions. Regions
// are fixed for the process lifetime, so a rebuild per operation costs one
// validation pass and keeps the Capturer stateless.
func (c *Capturer) table() (*records.Table, error) {
	return records.New(c.src.Regions())
}

// std is the default Capturer over the running binary's own tables, backing
// the package-level functions.
var std = New(Options{})

// IsInstrumented reports whether this binary was built with
// instrumentation. See Capturer.IsInstrumented.
func IsInstrumented() bool {
	return std.IsInstrumented()
}

// RequiredSize returns the byte length the next Capture will produce for
// this binary. See Capturer.RequiredSize.
func RequiredSize() (int, error) {
	return std.RequiredSize()
}

// Signature returns this build's metadata signature. See
// Capturer.Signature.
func Signature() (uint64, error) {
	return std.Signature()
}

// Capture writes this binary's raw profile to w. See Capturer.Capture.
func Capture(w io.Writer) (int, error) {
	return std.Capture(w)
}

// CaptureBytes returns this binary's raw profile. See
// Capturer.CaptureBytes.
func CaptureBytes() ([]byte, error) {
	return std.CaptureBytes()
}

// ResetCounters zeroes this binary's counter table. See
// Capturer.ResetCounters.
func ResetCounters() {
	std.ResetCounters()
}

// CheckCompatible verifies previously dumped data against this build. See
// Capturer.CheckCompatible.
func CheckCompatible(data []byte) error {
	return std.CheckCompatible(data)
}

// MergeCounters folds previously dumped data into this binary's counter
// table. See Capturer.MergeCounters.
func MergeCounters(data []byte) error {
	return std.MergeCounters(data)
}
