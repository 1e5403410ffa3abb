// SPDX-License-Identifier: MIT
/*
Package buffer provides the lock-free sample store shared between the audio
callback (single producer) and the analysis tick (single consumer).

Every slot is an atomic 32-bit cell holding the sample's IEEE-754 bits, and
every channel keeps an atomic count of samples written since creation. The
write cursor is derived from that count, so it can never leave
[0, capacity) no matter how reads and writes interleave. A reader racing a
writer may see a few samples from the newer pass (a torn window); it never
sees corrupted bookkeeping.
*/
package buffer

import (
	"fmt"
	"math"
	"sync/atomic"
)

// RingBuffer is a fixed-capacity, multi-channel circular store of float32
// samples. Writes wrap and overwrite the oldest data; reads never block.
type RingBuffer struct {
	capacity int
	data     [][]atomic.Uint32 // [channel][slot], float32 bits
	written  []atomic.Uint64   // samples written per channel since creation
}

// New allocates a RingBuffer. Capacity is fixed for its lifetime.
func New(channels, capacity int) (*RingBuffer, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("ring buffer channels must be positive, got %d", channels)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("ring buffer capacity must be positive, got %d", capacity)
	}

	data := make([][]atomic.Uint32, channels)
	for ch := range data {
		data[ch] = make([]atomic.Uint32, capacity)
	}

	return &RingBuffer{
		capacity: capacity,
		data:     data,
		written:  make([]atomic.Uint64, channels),
	}, nil
}

// Capacity returns the number of slots per channel.
func (rb *RingBuffer) Capacity() int { return rb.capacity }

// Channels returns the number of channels.
func (rb *RingBuffer) Channels() int { return len(rb.data) }

// Written returns how many samples were ever written to channel.
func (rb *RingBuffer) Written(channel int) uint64 {
	if channel < 0 || channel >= len(rb.data) {
		return 0
	}
	return rb.written[channel].Load()
}

// Cursor returns the slot the next write to channel lands in.
func (rb *RingBuffer) Cursor(channel int) int {
	return int(rb.Written(channel) % uint64(rb.capacity))
}

// Write appends samples to channel starting at its cursor, wrapping
// circularly. It never fails: an out-of-range channel is ignored and unread
// data is silently overwritten when the producer outruns the consumer.
// Only the newest capacity samples of an oversized write are stored.
func (rb *RingBuffer) Write(channel int, samples []float32) {
	if channel < 0 || channel >= len(rb.data) || len(samples) == 0 {
		return
	}

	slots := rb.data[channel]
	total := rb.written[channel].Load()

	src := samples
	start := total
	if len(src) > rb.capacity {
		skip := len(src) - rb.capacity
		src = src[skip:]
		start += uint64(skip)
	}

	pos := int(start % uint64(rb.capacity))
	for _, s := range src {
		slots[pos].Store(math.Float32bits(s))
		pos++
		if pos == rb.capacity {
			pos = 0
		}
	}

	// Publish after the data so a reader never trusts slots it cannot see yet.
	rb.written[channel].Store(total + uint64(len(samples)))
}

// WriteInterleaved splits a frame-interleaved callback buffer across the
// channels. A trailing partial frame is dropped.
func (rb *RingBuffer) WriteInterleaved(samples []float32) {
	channels := len(rb.data)
	frames := len(samples) / channels
	if frames == 0 {
		return
	}
	if channels == 1 {
		rb.Write(0, samples[:frames])
		return
	}

	for ch := range channels {
		slots := rb.data[ch]
		total := rb.written[ch].Load()

		first := 0
		start := total
		if frames > rb.capacity {
			first = frames - rb.capacity
			start += uint64(first)
		}

		pos := int(start % uint64(rb.capacity))
		for f := first; f < frames; f++ {
			slots[pos].Store(math.Float32bits(samples[f*channels+ch]))
			pos++
			if pos == rb.capacity {
				pos = 0
			}
		}
		rb.written[ch].Store(total + uint64(frames))
	}
}

// ReadFresh copies the most recent len(dst) samples of channel into dst,
// oldest first, and returns how many were copied. The count is clamped to
// the capacity; dst beyond the clamped count is left untouched. Slots that
// were never written read as zero.
func (rb *RingBuffer) ReadFresh(channel int, dst []float32) int {
	if channel < 0 || channel >= len(rb.data) {
		return 0
	}

	count := min(len(dst), rb.capacity)
	if count == 0 {
		return 0
	}

	slots := rb.data[channel]
	total := rb.written[channel].Load()
	end := int(total % uint64(rb.capacity))

	pos := end - count
	if pos < 0 {
		pos += rb.capacity
	}
	for i := range count {
		dst[i] = math.Float32frombits(slots[pos].Load())
		pos++
		if pos == rb.capacity {
			pos = 0
		}
	}

	return count
}

// Reset zeroes every slot and write count. It must not race a producer.
func (rb *RingBuffer) Reset() {
	for ch := range rb.data {
		for i := range rb.data[ch] {
			rb.data[ch][i].Store(0)
		}
		rb.written[ch].Store(0)
	}
}
