// Package ring provides a single-producer/single-consumer lock-free ring
// buffer for interleaved stereo float32 PCM, with an optional shared-memory
// backing so a peer process can observe queue state without touching Go
// code.
package ring

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Channels is the fixed channel count this core operates on. Non-goal:
// arbitrary channel layouts.
const Channels = 2

// headerSize is the size in bytes of Header, rounded up to 64 bytes so the
// header sits on its own cache line, apart from the sample data. The write
// and read indices share that line.
const headerSize = 64

// Header is the 64-byte-aligned control block placed immediately before the
// sample data in both the local and shared storage backends. Field order
// and widths match the wire layout in the external interface: u32 LE
// capacity/channels/reserved, then three u64 LE counters.
type Header struct {
	CapacityFrames uint32
	ChannelCount   uint32
	Reserved       uint32
	_              uint32 // padding to the first 8-byte field
	writeIndex     uint64 // atomic, producer-owned
	readIndex      uint64 // atomic, consumer-owned
	lastTimestamp  uint64 // atomic, producer-owned
}

var _ = unsafe.Sizeof(Header{}) // keep unsafe imported for pointer arithmetic below

// Buffer is a lock-free SPSC ring buffer of interleaved stereo float32
// samples. A single designated producer goroutine may call Push; a single
// designated consumer goroutine may call Pop/Discard/AvailableRead. Status readers from any goroutine may call
// AvailableRead and LastTimestampNS.
type Buffer struct {
	header *Header
	data   []float32
	mmap   []byte // non-nil only for shared-memory backed buffers
}

// NewLocal allocates a ring buffer backed by a plain heap slice. This is
// the common case: a source whose ring is never shared outside this
// process.
func NewLocal(capacityFrames int) *Buffer {
	if capacityFrames <= 0 {
		capacityFrames = 1
	}
	return &Buffer{
		header: &Header{CapacityFrames: uint32(capacityFrames), ChannelCount: Channels},
		data:   make([]float32, capacityFrames*Channels),
	}
}

// NewShared allocates an anonymous mmap-backed ring buffer whose header and
// data region follow the external wire layout. The mapping is anonymous and
// MAP_SHARED: no file descriptor is created, so only processes that inherit
// the mapping can see it, and they can read queue state without linking
// against this package.
func NewShared(capacityFrames int) (*Buffer, error) {
	if capacityFrames <= 0 {
		capacityFrames = 1
	}
	dataBytes := capacityFrames * Channels * 4
	totalBytes := headerSize + dataBytes

	region, err := unix.Mmap(-1, 0, totalBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("ring: mmap shared region: %w", err)
	}

	binary.LittleEndian.PutUint32(region[0:4], uint32(capacityFrames))
	binary.LittleEndian.PutUint32(region[4:8], Channels)
	binary.LittleEndian.PutUint32(region[8:12], 0)

	header := (*Header)(unsafe.Pointer(&region[0]))
	header.CapacityFrames = uint32(capacityFrames)
	header.ChannelCount = Channels

	dataPtr := unsafe.Pointer(&region[headerSize])
	data := unsafe.Slice((*float32)(dataPtr), capacityFrames*Channels)

	return &Buffer{header: header, data: data, mmap: region}, nil
}

// Close releases the shared-memory mapping, if any. Local buffers are
// reclaimed by the garbage collector and Close is a no-op for them.
func (b *Buffer) Close() error {
	if b.mmap == nil {
		return nil
	}
	region := b.mmap
	b.mmap = nil
	return unix.Munmap(region)
}

// CapacityFrames returns the fixed frame capacity of the buffer.
func (b *Buffer) CapacityFrames() int {
	return int(b.header.CapacityFrames)
}

// RawHeaderPointer exposes the header's address for a peer reader or a C
// bridge. Callers outside this package must treat the memory as read-only
// except via the accessors in this file.
func (b *Buffer) RawHeaderPointer() unsafe.Pointer {
	return unsafe.Pointer(b.header)
}

// RawDataPointer exposes the interleaved sample region's address.
func (b *Buffer) RawDataPointer() unsafe.Pointer {
	return unsafe.Pointer(&b.data[0])
}

func (h *Header) loadWrite() uint64 {
	return atomic.LoadUint64(&h.writeIndex)
}

func (h *Header) storeWrite(v uint64) {
	atomic.StoreUint64(&h.writeIndex, v)
}

func (h *Header) loadRead() uint64 {
	return atomic.LoadUint64(&h.readIndex)
}

func (h *Header) storeRead(v uint64) {
	atomic.StoreUint64(&h.readIndex, v)
}

// Push copies up to len(frames)/Channels frames from frames into the ring,
// advancing write_index with release semantics after the data copy and
// storing the timestamp (explicit or current monotonic time) with release
// semantics. Never blocks, never allocates, returns the number of frames
// actually written — fewer than requested when the ring is full.
//
// Single-producer only: concurrent calls from more than one goroutine are
// not safe, matching the real-time contract.
func (b *Buffer) Push(frames []float32, timestampNS ...uint64) int {
	framesIn := len(frames) / Channels
	if framesIn == 0 {
		return 0
	}

	capacity := uint64(b.header.CapacityFrames)
	write := b.header.loadWrite() // relaxed would suffice; acquire is safe and simpler
	read := b.header.loadRead()   // acquire: must see the consumer's latest progress
	used := write - read
	if used > capacity {
		used = capacity
	}
	free := capacity - used
	if free == 0 {
		return 0
	}

	toWrite := uint64(framesIn)
	if toWrite > free {
		toWrite = free
	}

	start := write % capacity
	firstChunk := capacity - start
	if firstChunk > toWrite {
		firstChunk = toWrite
	}
	copy(b.data[start*Channels:(start+firstChunk)*Channels], frames[:firstChunk*Channels])

	if toWrite > firstChunk {
		remaining := toWrite - firstChunk
		copy(b.data[0:remaining*Channels], frames[firstChunk*Channels:toWrite*Channels])
	}

	b.header.storeWrite(write + toWrite) // release: publishes the copy above
	ts := timestamp(timestampNS)
	atomic.StoreUint64(&b.header.lastTimestamp, ts)
	return int(toWrite)
}

// Pop copies up to len(out)/Channels frames from the ring into out,
// advancing read_index with release semantics after the copy. Never
// blocks, never allocates. Returns frames actually read.
func (b *Buffer) Pop(out []float32) int {
	requested := len(out) / Channels
	if requested == 0 {
		return 0
	}

	capacity := uint64(b.header.CapacityFrames)
	write := b.header.loadWrite() // acquire: must see producer's latest data
	read := b.header.loadRead()
	available := write - read
	if available > capacity {
		available = capacity
	}
	if available == 0 {
		return 0
	}

	toRead := uint64(requested)
	if toRead > available {
		toRead = available
	}

	start := read % capacity
	firstChunk := capacity - start
	if firstChunk > toRead {
		firstChunk = toRead
	}
	copy(out[:firstChunk*Channels], b.data[start*Channels:(start+firstChunk)*Channels])

	if toRead > firstChunk {
		remaining := toRead - firstChunk
		copy(out[firstChunk*Channels:toRead*Channels], b.data[0:remaining*Channels])
	}

	b.header.storeRead(read + toRead)
	return int(toRead)
}

// Discard advances read_index by up to n frames without copying them,
// returning the number actually discarded.
func (b *Buffer) Discard(n int) int {
	if n <= 0 {
		return 0
	}
	capacity := uint64(b.header.CapacityFrames)
	write := b.header.loadWrite()
	read := b.header.loadRead()
	available := write - read
	if available > capacity {
		available = capacity
	}
	drop := uint64(n)
	if drop > available {
		drop = available
	}
	if drop == 0 {
		return 0
	}
	b.header.storeRead(read + drop)
	return int(drop)
}

// AvailableRead returns a snapshot of the number of frames ready for
// reading. May underestimate but never overestimate relative to a
// concurrent producer.
func (b *Buffer) AvailableRead() int {
	capacity := uint64(b.header.CapacityFrames)
	write := b.header.loadWrite()
	read := b.header.loadRead()
	available := write - read
	if available > capacity {
		available = capacity
	}
	return int(available)
}

// LastTimestampNS returns the timestamp attached to the most recent
// successful Push, acquire-loaded.
func (b *Buffer) LastTimestampNS() uint64 {
	return atomic.LoadUint64(&b.header.lastTimestamp)
}

func timestamp(explicit []uint64) uint64 {
	if len(explicit) > 0 {
		return explicit[0]
	}
	return MonotonicTimestampNS()
}

var processStart = time.Now()

// MonotonicTimestampNS returns a nanosecond timestamp from the host's
// monotonic clock, used to stamp producer writes and to derive drift
// estimates. On platforms without a cheaper primitive this is simply
// time.Since of a fixed reference point, which is monotonic by
// construction in Go's runtime.
func MonotonicTimestampNS() uint64 {
	elapsed := time.Since(processStart)
	if elapsed < 0 {
		return 0
	}
	ns := elapsed.Nanoseconds()
	if ns < 0 || uint64(ns) > math.MaxUint64 {
		return 0
	}
	return uint64(ns)
}
