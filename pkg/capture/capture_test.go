package capture

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barecov/barecov/internal/testutil"
	"github.com/barecov/barecov/pkg/image"
	"github.com/barecov/barecov/pkg/profraw"
	"github.com/barecov/barecov/pkg/records"
)

func instrumentedCapturer(t *testing.T) (*Capturer, image.Regions) {
	t.Helper()
	regions := testutil.BuildImage(
		testutil.Func{Name: "main", FuncHash: 0x11, Counters: []uint64{0, 0}},
		testutil.Func{Name: "handler", FuncHash: 0x22, Counters: []uint64{0}},
	)
	return New(Options{Source: image.FromRanges(regions.Records, regions.Names, regions.Counters)}), regions
}

func TestIsInstrumented(t *testing.T) {
	c, _ := instrumentedCapturer(t)
	assert.True(t, c.IsInstrumented())

	empty := New(Options{Source: image.FromRanges(nil, nil, nil)})
	assert.False(t, empty.IsInstrumented())
}

func TestPackageLevelProbeIsAlwaysCallable(t *testing.T) {
	// The test binary is not instrumented; the probe must answer rather
	// than fail, before any capture has run.
	assert.False(t, IsInstrumented())

	n, err := RequiredSize()
	require.NoError(t, err)
	assert.Equal(t, profraw.HeaderSize, n)
}

func TestRequiredSizeMatchesCapture(t *testing.T) {
	c, _ := instrumentedCapturer(t)

	want, err := c.RequiredSize()
	require.NoError(t, err)

	data, err := c.CaptureBytes()
	require.NoError(t, err)
	assert.Equal(t, want, len(data))
}

func TestCaptureIntoFixedBuffer(t *testing.T) {
	c, _ := instrumentedCapturer(t)

	n, err := c.RequiredSize()
	require.NoError(t, err)

	sink := profraw.NewFixed(make([]byte, n))
	written, err := c.Capture(sink)
	require.NoError(t, err)
	assert.Equal(t, n, written)

	grown, err := c.CaptureBytes()
	require.NoError(t, err)
	assert.Equal(t, grown, sink.Bytes())
}

func TestCaptureFixedBufferTooSmall(t *testing.T) {
	c, _ := instrumentedCapturer(t)

	n, err := c.RequiredSize()
	require.NoError(t, err)

	sink := profraw.NewFixed(make([]byte, n-8))
	_, err = c.Capture(sink)
	require.ErrorIs(t, err, profraw.ErrSinkFull)
}

func TestCaptureRejectsInconsistentMetadata(t *testing.T) {
	regions := testutil.BuildImage(
		testutil.Func{Name: "main", FuncHash: 0x11, Counters: []uint64{0}},
	)
	// Point the record past the counter table.
	binary.LittleEndian.PutUint64(regions.Records[16:24], 50)
	c := New(Options{Source: image.FromRanges(regions.Records, regions.Names, regions.Counters)})

	var sink profraw.Buffer
	_, err := c.Capture(&sink)
	require.ErrorIs(t, err, records.ErrInconsistent)
	assert.Equal(t, 0, sink.Len(), "nothing may be written for a corrupt image")

	_, err = c.RequiredSize()
	assert.ErrorIs(t, err, records.ErrInconsistent)
}

func TestSignatureStableAcrossCaptures(t *testing.T) {
	c, regions := instrumentedCapturer(t)

	sig1, err := c.Signature()
	require.NoError(t, err)

	_, err = c.CaptureBytes()
	require.NoError(t, err)
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 7)

	sig2, err := c.Signature()
	require.NoError(t, err)
	assert.Equal(t, sig1, sig2)

	data, err := c.CaptureBytes()
	require.NoError(t, err)
	unit, _, err := profraw.ReadUnit(data)
	require.NoError(t, err)
	assert.Equal(t, sig1, unit.Header.Signature)
}

func TestResetCounters(t *testing.T) {
	c, regions := instrumentedCapturer(t)
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 41)
	binary.LittleEndian.PutUint64(regions.Counters[16:24], 3)

	c.ResetCounters()

	data, err := c.CaptureBytes()
	require.NoError(t, err)
	unit, _, err := profraw.ReadUnit(data)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 0, 0}, unit.Counters)
}

func TestCheckCompatible(t *testing.T) {
	c, regions := instrumentedCapturer(t)

	first, err := c.CaptureBytes()
	require.NoError(t, err)
	require.NoError(t, c.CheckCompatible(first))

	// Counter churn between dumps must not break compatibility.
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 100)
	second, err := c.CaptureBytes()
	require.NoError(t, err)
	require.NoError(t, c.CheckCompatible(append(append([]byte{}, first...), second...)))
}

func TestCheckCompatibleRejectsOtherBuild(t *testing.T) {
	c, _ := instrumentedCapturer(t)

	other := testutil.BuildImage(
		testutil.Func{Name: "main", FuncHash: 0x11, Counters: []uint64{0, 0}},
		testutil.Func{Name: "handler", FuncHash: 0x22, Counters: []uint64{0}},
		testutil.Func{Name: "added", FuncHash: 0x33, Counters: []uint64{0}},
	)
	otherCapturer := New(Options{Source: image.FromRanges(other.Records, other.Names, other.Counters)})
	data, err := otherCapturer.CaptureBytes()
	require.NoError(t, err)

	err = c.CheckCompatible(data)
	require.ErrorIs(t, err, ErrIncompatible)
}

func TestCheckCompatibleRejectsGarbage(t *testing.T) {
	c, _ := instrumentedCapturer(t)

	assert.ErrorIs(t, c.CheckCompatible(nil), ErrIncompatible)
	assert.ErrorIs(t, c.CheckCompatible([]byte("not a profile at all, definitely not one....")), ErrIncompatible)

	data, err := c.CaptureBytes()
	require.NoError(t, err)
	data[8]++ // future format version
	assert.ErrorIs(t, c.CheckCompatible(data), ErrIncompatible)
}

func liveCounters(t *testing.T, c *Capturer) []uint64 {
	t.Helper()
	data, err := c.CaptureBytes()
	require.NoError(t, err)
	unit, _, err := profraw.ReadUnit(data)
	require.NoError(t, err)
	return unit.Counters
}

func TestMergeCountersAccumulates(t *testing.T) {
	c, regions := instrumentedCapturer(t)

	// First run: dump with some execution recorded, then reset as a
	// continuing program would.
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 5)
	binary.LittleEndian.PutUint64(regions.Counters[8:16], 7)
	binary.LittleEndian.PutUint64(regions.Counters[16:24], 3)
	dump, err := c.CaptureBytes()
	require.NoError(t, err)
	c.ResetCounters()

	// Second run records fresh execution; folding the old dump back in
	// must sum the two runs.
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 1)
	binary.LittleEndian.PutUint64(regions.Counters[16:24], 2)
	require.NoError(t, c.MergeCounters(dump))
	assert.Equal(t, []uint64{6, 7, 5}, liveCounters(t, c))
}

func TestMergeCountersConcatenatedDumps(t *testing.T) {
	c, regions := instrumentedCapturer(t)

	binary.LittleEndian.PutUint64(regions.Counters[0:8], 10)
	first, err := c.CaptureBytes()
	require.NoError(t, err)

	binary.LittleEndian.PutUint64(regions.Counters[0:8], 4)
	second, err := c.CaptureBytes()
	require.NoError(t, err)

	c.ResetCounters()
	require.NoError(t, c.MergeCounters(append(append([]byte{}, first...), second...)))
	assert.Equal(t, []uint64{14, 0, 0}, liveCounters(t, c))
}

func TestMergeCountersRejectsOtherBuild(t *testing.T) {
	c, regions := instrumentedCapturer(t)
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 2)

	other := testutil.BuildImage(
		testutil.Func{Name: "main", FuncHash: 0x99, Counters: []uint64{50, 50}},
		testutil.Func{Name: "handler", FuncHash: 0x22, Counters: []uint64{50}},
	)
	otherCapturer := New(Options{Source: image.FromRanges(other.Records, other.Names, other.Counters)})
	data, err := otherCapturer.CaptureBytes()
	require.NoError(t, err)

	require.ErrorIs(t, c.MergeCounters(data), ErrIncompatible)
	assert.Equal(t, []uint64{2, 0, 0}, liveCounters(t, c),
		"a rejected merge must leave the live counters untouched")

	assert.ErrorIs(t, c.MergeCounters(nil), ErrIncompatible)
}

func TestMergeCountersRejectsMismatchedRecord(t *testing.T) {
	c, regions := instrumentedCapturer(t)
	binary.LittleEndian.PutUint64(regions.Counters[0:8], 9)
	dump, err := c.CaptureBytes()
	require.NoError(t, err)

	// Inflate the first unit record's counter count. The signature still
	// matches, so only the per-record validation can catch it — and must,
	// before anything is merged.
	binary.LittleEndian.PutUint64(dump[profraw.HeaderSize+24:profraw.HeaderSize+32], 3)

	require.ErrorIs(t, c.MergeCounters(dump), ErrIncompatible)
	assert.Equal(t, []uint64{9, 0, 0}, liveCounters(t, c))
}

func TestWriteFile(t *testing.T) {
	regions := testutil.BuildImage(
		testutil.Func{Name: "main", FuncHash: 0x11, Counters: []uint64{9}},
	)
	logger := testutil.NewTestLogger(t)
	c := New(Options{
		Source: image.FromRanges(regions.Records, regions.Names, regions.Counters),
		Logger: &logger,
	})

	path := filepath.Join(t.TempDir(), "out.profraw")
	require.NoError(t, c.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	units, err := profraw.Split(data)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, []uint64{9}, units[0].Counters)

	// No temporary files may survive a successful dump.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.profraw", entries[0].Name())
}

func TestWriteFileUninstrumented(t *testing.T) {
	c := New(Options{Source: image.FromRanges(nil, nil, nil)})

	path := filepath.Join(t.TempDir(), "empty.profraw")
	require.NoError(t, c.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data, profraw.HeaderSize)
}
