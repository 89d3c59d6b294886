// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

// Sample is a single measurement from the scan stream.
//
// Angle and distance are kept in the device's fixed-point units: AngleQ6 is
// degrees*64 and DistanceQ2 is millimeters*4.
type Sample struct {
	Quality    uint8 // 6-bit reflectivity
	Start      bool  // first sample of a new rotation
	AngleQ6    uint16
	DistanceQ2 uint16
}

// Angle returns the sample angle in degrees
func (s Sample) Angle() float64 {
	return float64(s.AngleQ6) / 64.0
}

// Distance returns the sample distance in millimeters (0 means no return)
func (s Sample) Distance() float64 {
	return float64(s.DistanceQ2) / 4.0
}

// HasReturn reports whether the laser measured a distance
func (s Sample) HasReturn() bool {
	return s.DistanceQ2 != 0
}

// DecodeSample converts 5 raw bytes into a Sample.
// It does not check the framing bits; see Decoder for that.
func DecodeSample(b [SampleSize]byte) Sample {
	return Sample{
		Quality:    b[0] >> 2,
		Start:      b[0]&startFlagMask == startFlagMask,
		AngleQ6:    uint16(b[1]>>1) + uint16(b[2])<<7,
		DistanceQ2: uint16(b[3]) + uint16(b[4])<<8,
	}
}

// EncodeSample is the inverse of DecodeSample. The result always satisfies
// the framing bits, so it passes through a Decoder unchanged.
// Quality is truncated to 6 bits and AngleQ6 to 15 bits.
func EncodeSample(s Sample) [SampleSize]byte {
	var b [SampleSize]byte
	b[0] = (s.Quality & 0x3F) << 2
	if s.Start {
		b[0] |= startFlagMask
	} else {
		b[0] |= invStartFlagMask
	}
	b[1] = byte(s.AngleQ6&0x7F)<<1 | checkBitMask
	b[2] = byte(s.AngleQ6 >> 7)
	b[3] = byte(s.DistanceQ2)
	b[4] = byte(s.DistanceQ2 >> 8)
	return b
}

// validStartByte reports whether the start flag and its inverse disagree
func validStartByte(b byte) bool {
	return (b&invStartFlagMask)>>1 != b&startFlagMask
}

// validCheckByte reports whether the check bit is set
func validCheckByte(b byte) bool {
	return b&checkBitMask == checkBitMask
}
