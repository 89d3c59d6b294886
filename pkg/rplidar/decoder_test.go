// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import "testing"

// encodeSamples concatenates the wire bytes of samples
func encodeSamples(samples ...Sample) []byte {
	out := make([]byte, 0, len(samples)*SampleSize)
	for _, s := range samples {
		b := EncodeSample(s)
		out = append(out, b[:]...)
	}
	return out
}

// ============================================================
// Sample Tests
// ============================================================

func TestDecodeSample_Golden(t *testing.T) {
	s := DecodeSample([SampleSize]byte{0x01, 0x02, 0x03, 0x04, 0x05})

	if s.Quality != 0 {
		t.Errorf("Quality: expected 0, got %d", s.Quality)
	}
	if !s.Start {
		t.Error("Start flag should be set")
	}
	if s.Angle() != 6.015625 {
		t.Errorf("Angle: expected 6.015625, got %v", s.Angle())
	}
	if s.Distance() != 321.0 {
		t.Errorf("Distance: expected 321.0, got %v", s.Distance())
	}
}

func TestDecodeSample_Fields(t *testing.T) {
	tests := []struct {
		name     string
		raw      [SampleSize]byte
		expected Sample
	}{
		{
			name:     "max quality, no start",
			raw:      [SampleSize]byte{0xFE, 0x01, 0x00, 0x00, 0x00},
			expected: Sample{Quality: 63, AngleQ6: 0},
		},
		{
			name:     "high distance byte",
			raw:      [SampleSize]byte{0x3E, 0xFF, 0xFF, 0xFF, 0xFF},
			expected: Sample{Quality: 15, AngleQ6: 0x7FFF, DistanceQ2: 0xFFFF},
		},
		{
			name:     "distance low byte is unsigned",
			raw:      [SampleSize]byte{0x02, 0x01, 0x00, 0x80, 0x00},
			expected: Sample{DistanceQ2: 0x80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if s := DecodeSample(tt.raw); s != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, s)
			}
		})
	}
}

func TestEncodeSample_RoundTrip(t *testing.T) {
	s := Sample{Quality: 47, Start: true, AngleQ6: 359 * 64, DistanceQ2: 4000}
	if got := DecodeSample(EncodeSample(s)); got != s {
		t.Errorf("expected %+v, got %+v", s, got)
	}

	b := EncodeSample(Sample{AngleQ6: 100})
	if !validStartByte(b[0]) || !validCheckByte(b[1]) {
		t.Errorf("encoded sample should satisfy framing bits: % X", b)
	}
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_CleanStream(t *testing.T) {
	input := []Sample{
		{Quality: 10, Start: true, AngleQ6: 0, DistanceQ2: 400},
		{Quality: 11, AngleQ6: 64, DistanceQ2: 800},
		{Quality: 12, AngleQ6: 128, DistanceQ2: 0},
	}

	d := NewDecoder(nil)
	out := d.Decode(encodeSamples(input...), nil)

	if len(out) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(out))
	}
	for i := range input {
		if out[i] != input[i] {
			t.Errorf("sample %d: expected %+v, got %+v", i, input[i], out[i])
		}
	}
	if d.Discarded() != 0 {
		t.Errorf("expected no discards, got %d", d.Discarded())
	}
}

func TestDecoder_SplitAcrossBuffers(t *testing.T) {
	data := encodeSamples(
		Sample{Start: true, AngleQ6: 10, DistanceQ2: 100},
		Sample{AngleQ6: 20, DistanceQ2: 200},
	)

	d := NewDecoder(nil)
	var out []Sample
	for i := 0; i < len(data); i += 3 {
		end := i + 3
		if end > len(data) {
			end = len(data)
		}
		out = d.Decode(data[i:end], out)
	}

	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[1].DistanceQ2 != 200 {
		t.Errorf("expected distance 200, got %d", out[1].DistanceQ2)
	}
}

func TestDecoder_ResyncAfterCorruptByte(t *testing.T) {
	s1 := Sample{Quality: 5, Start: true, AngleQ6: 0, DistanceQ2: 1000}
	s2 := Sample{Quality: 6, AngleQ6: 640, DistanceQ2: 1100}
	s3 := Sample{Quality: 7, AngleQ6: 1280, DistanceQ2: 1200}

	for _, junk := range []byte{0x00, 0x03, 0xFC, 0xFF} {
		stats := NewStatistics()
		d := NewDecoder(stats)

		data := encodeSamples(s1)
		data = append(data, junk)
		data = append(data, encodeSamples(s2, s3)...)

		out := d.Decode(data, nil)
		if len(out) != 3 {
			t.Fatalf("junk 0x%02X: expected 3 samples, got %d", junk, len(out))
		}
		if out[1] != s2 || out[2] != s3 {
			t.Errorf("junk 0x%02X: samples after corruption not recovered: %+v", junk, out[1:])
		}
		if d.Discarded() != 1 {
			t.Errorf("junk 0x%02X: expected 1 discarded byte, got %d", junk, d.Discarded())
		}
		if stats.FramingDiscards.Load() != 1 {
			t.Errorf("junk 0x%02X: expected FramingDiscards=1, got %d", junk, stats.FramingDiscards.Load())
		}
	}
}

func TestDecoder_BadCheckBitDropsTwoBytes(t *testing.T) {
	d := NewDecoder(nil)

	// Valid byte 0, then a byte 1 with the check bit clear
	d.DecodeByte(0x02)
	d.DecodeByte(0x00)

	if d.Discarded() != 2 {
		t.Errorf("expected 2 discarded bytes, got %d", d.Discarded())
	}

	out := d.Decode(encodeSamples(Sample{AngleQ6: 77, DistanceQ2: 5}), nil)
	if len(out) != 1 || out[0].AngleQ6 != 77 {
		t.Errorf("decoder did not restart at byte 0: %+v", out)
	}
}

func TestDecoder_Reset(t *testing.T) {
	d := NewDecoder(nil)
	data := encodeSamples(Sample{AngleQ6: 42, DistanceQ2: 9})

	d.Decode(data[:3], nil)
	d.Reset()

	out := d.Decode(data, nil)
	if len(out) != 1 || out[0].AngleQ6 != 42 {
		t.Errorf("expected a clean sample after reset, got %+v", out)
	}
}

func TestDecoder_CountsSamples(t *testing.T) {
	stats := NewStatistics()
	d := NewDecoder(stats)
	d.Decode(encodeSamples(Sample{Start: true}, Sample{}, Sample{}), nil)

	if n := stats.SamplesDecoded.Load(); n != 3 {
		t.Errorf("expected SamplesDecoded=3, got %d", n)
	}
}
