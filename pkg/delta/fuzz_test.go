// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package delta

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

// maxValue returns the largest value a reply of n payload bytes can carry
func maxValue(n int) uint32 {
	if n >= 4 {
		return 0xFFFFFFFF
	}
	return 1<<(8*uint(n)) - 1
}

// ============================================================
// Round Trip Fuzz Tests
// ============================================================

// TestFuzzReply_RoundTrip encodes random values for random catalog entries
// and verifies the validator decodes exactly what was encoded
func TestFuzzReply_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	cat := ExtendedCatalog()
	enc := NewReplyEncoder()
	v := NewValidator()

	for i := 0; i < rounds; i++ {
		cmd := cat[rng.Intn(len(cat))]
		value := rng.Uint32() & maxValue(cmd.ReplyLength)

		reply, err := v.Validate(enc.EncodeReply(cmd, value), cmd)
		if err != nil {
			t.Fatalf("round %d: %s value %d: %v", i, cmd, value, err)
		}
		if reply.Value != value {
			t.Fatalf("round %d: %s: Value = %d, want %d", i, cmd, reply.Value, value)
		}
	}
}

// TestFuzzReply_SingleByteCorruption flips one byte of a valid reply and
// verifies the validator never accepts it
func TestFuzzReply_SingleByteCorruption(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	cat := DefaultCatalog()
	enc := NewReplyEncoder()
	v := NewValidator()

	for i := 0; i < rounds; i++ {
		cmd := cat[rng.Intn(len(cat))]
		frame := enc.EncodeReply(cmd, rng.Uint32())
		pos := rng.Intn(len(frame))
		frame[pos] ^= byte(rng.Intn(255) + 1)

		if _, err := v.Validate(frame, cmd); err == nil {
			t.Fatalf("round %d: corrupted byte %d accepted: %s", i, pos, FormatHex(frame))
		}
	}
}

// ============================================================
// Scanner Fuzz Tests
// ============================================================

// TestFuzzScanner_RandomBytes feeds random bytes to the scanner and
// verifies it never panics and never returns an oversized frame
func TestFuzzScanner_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)

	for i := 0; i < rounds; i++ {
		s := NewScanner()
		data := make([]byte, rng.Intn(256))
		rng.Read(data)

		frames, _ := s.Decode(data)
		for _, f := range frames {
			if len(f.Raw) > MaxFrameSize {
				t.Fatalf("round %d: frame of %d bytes exceeds %d", i, len(f.Raw), MaxFrameSize)
			}
			if Checksum(f.Raw[:len(f.Raw)-3]) != f.CRC {
				t.Fatalf("round %d: frame with bad CRC returned", i)
			}
		}
	}
}

// TestFuzzScanner_Traffic interleaves valid request/reply pairs with noise
// between frames and verifies every pair is recovered
func TestFuzzScanner_Traffic(t *testing.T) {
	rounds := getFuzzRounds() / 10
	if rounds == 0 {
		rounds = 1
	}
	rng := newFuzzRng(t)
	cat := DefaultCatalog()
	req := NewEncoder()
	rep := NewReplyEncoder()

	for i := 0; i < rounds; i++ {
		var stream []byte
		pairs := 1 + rng.Intn(10)
		for j := 0; j < pairs; j++ {
			// Noise never contains STX so the scanner stays idle.
			for k := rng.Intn(4); k > 0; k-- {
				b := byte(rng.Intn(256))
				if b == STX {
					b = 0
				}
				stream = append(stream, b)
			}
			cmd := cat[rng.Intn(len(cat))]
			stream = append(stream, req.Encode(cmd)...)
			stream = append(stream, rep.EncodeReply(cmd, rng.Uint32())...)
		}

		frames, errs := NewScanner().Decode(stream)
		if len(errs) != 0 {
			t.Fatalf("round %d: errors %v", i, errs)
		}
		if len(frames) != 2*pairs {
			t.Fatalf("round %d: frames = %d, want %d", i, len(frames), 2*pairs)
		}
	}
}
