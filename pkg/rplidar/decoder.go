// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

// Decoder converts the raw scan stream into samples.
//
// The stream has no delimiters. Alignment is recovered from two invariants of
// the 5-byte sample: in byte 0 the inverse start flag (bit 1) must be the
// negation of the start flag (bit 0), and in byte 1 the check bit (bit 0) must
// be set. A byte that breaks either rule is dropped and the decoder starts
// over at byte 0, so a corrupt byte costs at most one sample.
type Decoder struct {
	pos       int
	buf       [SampleSize]byte
	discarded uint64
	stats     *Statistics
}

// NewDecoder creates a new sample decoder. stats may be nil.
func NewDecoder(stats *Statistics) *Decoder {
	return &Decoder{stats: stats}
}

// Reset drops any partial sample
func (d *Decoder) Reset() {
	d.pos = 0
}

// Discarded returns the number of bytes dropped while resynchronizing
func (d *Decoder) Discarded() uint64 {
	return d.discarded
}

// DecodeByte feeds one byte to the decoder.
// Returns the completed sample and true once 5 valid bytes have been seen.
func (d *Decoder) DecodeByte(b byte) (Sample, bool) {
	switch d.pos {
	case 0:
		if !validStartByte(b) {
			d.discard(1)
			return Sample{}, false
		}
	case 1:
		if !validCheckByte(b) {
			// Drop the buffered byte 0 as well as this one
			d.discard(2)
			d.pos = 0
			return Sample{}, false
		}
	}

	d.buf[d.pos] = b
	d.pos++
	if d.pos < SampleSize {
		return Sample{}, false
	}

	d.pos = 0
	if d.stats != nil {
		d.stats.SamplesDecoded.Inc()
	}
	return DecodeSample(d.buf), true
}

// Decode feeds a buffer to the decoder and appends completed samples to out.
// The buffer may start or end in the middle of a sample.
func (d *Decoder) Decode(data []byte, out []Sample) []Sample {
	for _, b := range data {
		if s, ok := d.DecodeByte(b); ok {
			out = append(out, s)
		}
	}
	return out
}

func (d *Decoder) discard(n uint64) {
	d.discarded += n
	if d.stats != nil {
		d.stats.FramingDiscards.Add(n)
	}
}
