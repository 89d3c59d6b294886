// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rplidar

import (
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

func randomSample(rng *rand.Rand) Sample {
	return Sample{
		Quality:    uint8(rng.Intn(64)),
		Start:      rng.Intn(8) == 0,
		AngleQ6:    uint16(rng.Intn(1 << 15)),
		DistanceQ2: uint16(rng.Intn(1 << 16)),
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder
// and verifies it never produces more samples than the input can hold
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		stats := NewStatistics()
		d := NewDecoder(stats)

		length := rng.Intn(512) + 1
		data := make([]byte, length)
		rng.Read(data)

		out := d.Decode(data, nil)
		if len(out)*SampleSize+int(d.Discarded()) > length {
			t.Errorf("Round %d: %d samples and %d discards from %d bytes", i, len(out), d.Discarded(), length)
		}
		if stats.SamplesDecoded.Load() != uint64(len(out)) {
			t.Errorf("Round %d: SamplesDecoded=%d, returned %d", i, stats.SamplesDecoded.Load(), len(out))
		}
	}
}

// TestFuzzDecoder_ValidStreams encodes random samples and checks that a
// clean stream decodes exactly, whatever the read boundaries
func TestFuzzDecoder_ValidStreams(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder(nil)

		input := make([]Sample, rng.Intn(64)+1)
		for j := range input {
			input[j] = randomSample(rng)
		}
		data := encodeSamples(input...)

		var out []Sample
		for pos := 0; pos < len(data); {
			end := pos + rng.Intn(16) + 1
			if end > len(data) {
				end = len(data)
			}
			out = d.Decode(data[pos:end], out)
			pos = end
		}

		if len(out) != len(input) {
			t.Errorf("Round %d: expected %d samples, got %d", i, len(input), len(out))
			continue
		}
		for j := range input {
			if out[j] != input[j] {
				t.Errorf("Round %d sample %d: expected %+v, got %+v", i, j, input[j], out[j])
			}
		}
	}
}

// TestFuzzDecoder_CorruptedStreams inserts random bytes into valid streams
// and checks that the decoder keeps producing samples afterwards
func TestFuzzDecoder_CorruptedStreams(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		d := NewDecoder(nil)

		input := make([]Sample, 100)
		for j := range input {
			input[j] = randomSample(rng)
		}
		data := encodeSamples(input...)

		idx := rng.Intn(len(data))
		junk := make([]byte, rng.Intn(4)+1)
		rng.Read(junk)
		corrupted := append(append(append([]byte(nil), data[:idx]...), junk...), data[idx:]...)

		out := d.Decode(corrupted, nil)
		if len(out) < len(input)/2 {
			t.Errorf("Round %d: decoder did not recover, %d of %d samples", i, len(out), len(input))
		}
	}
}

// ============================================================
// Assembler Fuzz Tests
// ============================================================

// TestFuzzAssembler_Invariants checks ordering and bounds of every rotation
// assembled from random samples
func TestFuzzAssembler_Invariants(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		a := NewAssembler(Continuous, nil)

		input := make([]Sample, rng.Intn(256)+1)
		starts := 0
		for j := range input {
			input[j] = randomSample(rng)
			if input[j].Start {
				starts++
			}
		}

		rotations := a.AddAll(input, nil)
		if starts > 0 && len(rotations) != starts-1 {
			t.Errorf("Round %d: %d start flags should close %d rotations, got %d", i, starts, starts-1, len(rotations))
		}

		for _, r := range rotations {
			if r.Len() == 0 || r.Len() > MaxRotationSamples {
				t.Errorf("Round %d: rotation size %d out of bounds", i, r.Len())
			}
			for j := 1; j < r.Len(); j++ {
				if r.Samples[j].AngleQ6 < r.Samples[j-1].AngleQ6 {
					t.Errorf("Round %d: rotation not sorted at %d", i, j)
					break
				}
			}
		}
	}
}
