package core

import (
	"fmt"
	"math"
	"testing"
)

func TestTweakedHashInRange(t *testing.T) {
	keys := []string{"alice", "bob", "", "a-very-long-tenant-key-0123456789", "租户"}
	ranges := []uint32{1, 2, 17, 100, 1000}

	for _, key := range keys {
		for _, r := range ranges {
			for _, tweak := range []int32{0, 1, -1, math.MaxInt32, math.MinInt32} {
				h := tweakedHash(key, tweak, r)
				if h >= r {
					t.Fatalf("tweakedHash(%q, %d, %d) = %d, want < %d", key, tweak, r, h, r)
				}
			}
		}
	}
}

func TestTweakedHashDeterministic(t *testing.T) {
	a := tweakedHash("tenant-42", 7, 17)
	b := tweakedHash("tenant-42", 7, 17)
	if a != b {
		t.Fatalf("tweakedHash is not pure: got %d then %d for identical inputs", a, b)
	}
}

func TestTweakedHashRotationReshuffles(t *testing.T) {
	const buckets = 17
	before := tweakedHash("tenant-42", 1, buckets)
	changed := false
	for tweak := int32(2); tweak < 200; tweak++ {
		if tweakedHash("tenant-42", tweak, buckets) != before {
			changed = true
			break
		}
	}
	if !changed {
		t.Fatal("expected at least one tweak value to move the key to a different bucket")
	}
}

func TestTweakedHashUniformity(t *testing.T) {
	const (
		buckets = 100
		samples = 10000
	)
	counts := make([]int, buckets)
	for i := 0; i < samples; i++ {
		key := fmt.Sprintf("key-%d", i)
		h := tweakedHash(key, 0, buckets)
		counts[h]++
	}

	expected := float64(samples) / float64(buckets)
	chiSq := 0.0
	for _, c := range counts {
		diff := float64(c) - expected
		chiSq += diff * diff / expected
	}

	// 100 buckets -> 99 degrees of freedom; the 1/10000 quantile is
	// roughly 160, per the spec's own testable property.
	if chiSq >= 160 {
		t.Fatalf("chi-squared statistic %.2f exceeds 160 threshold for %d buckets", chiSq, buckets)
	}
}

func TestGenerateNHashesInRange(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for _, r := range []uint32{1, 3, 17, 33} {
			hashes := generateNHashes("tenant-key", 99, n, r)
			if len(hashes) != n {
				t.Fatalf("generateNHashes returned %d values, want %d", len(hashes), n)
			}
			for _, h := range hashes {
				if h >= r {
					t.Fatalf("generateNHashes value %d out of range [0, %d)", h, r)
				}
			}
		}
	}
}

func TestGenerateNHashesDeterministic(t *testing.T) {
	a := generateNHashes("tenant-key", 5, 3, 30)
	b := generateNHashes("tenant-key", 5, 3, 30)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("generateNHashes is not pure at index %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestGenerateNHashesUniformity(t *testing.T) {
	const (
		buckets = 33
		samples = 10000
	)
	counts := make([]int, buckets)
	hashes := generateNHashes("a-single-fixed-key", 0, samples, buckets)
	for _, h := range hashes {
		counts[h]++
	}

	expected := float64(samples) / float64(buckets)
	chiSq := 0.0
	for _, c := range counts {
		diff := float64(c) - expected
		chiSq += diff * diff / expected
	}

	// 33 buckets -> 32 degrees of freedom; the 1/10000 quantile is
	// roughly 70, per the spec's own testable property.
	if chiSq >= 70 {
		t.Fatalf("chi-squared statistic %.2f exceeds 70 threshold for %d buckets", chiSq, buckets)
	}
}

func TestGenerateNHashesTripleCollisionFrequency(t *testing.T) {
	const (
		n       = 3
		r       = 30
		nKeys   = 1000
		maxSeen = 5
	)
	seen := make(map[[n]uint32]int)
	for i := 0; i < nKeys; i++ {
		key := fmt.Sprintf("tenant-%d", i)
		hashes := generateNHashes(key, 42, n, r)
		var tuple [n]uint32
		copy(tuple[:], hashes)
		seen[tuple]++
		if seen[tuple] > maxSeen {
			t.Fatalf("3-tuple %v seen %d times, want <= %d", tuple, seen[tuple], maxSeen)
		}
	}
}
