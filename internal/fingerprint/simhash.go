package fingerprint

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"strconv"
)

// simHashBits is the width of the locality-sensitive fingerprint.
const simHashBits = 64

// SimHash computes a 64-bit locality-sensitive fingerprint of text: each
// token votes its FNV-1a hash bits up or down, and the sign of each bit's
// tally becomes that bit of the result. Small edits change few tokens and so
// flip few bits, which keeps the Hamming distance between near-duplicates
// small.
func SimHash(text string) uint64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var weights [simHashBits]int
	for _, token := range tokens {
		h := hashToken(token)
		for bit := 0; bit < simHashBits; bit++ {
			if h&(uint64(1)<<bit) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var result uint64
	for bit := 0; bit < simHashBits; bit++ {
		if weights[bit] > 0 {
			result |= uint64(1) << bit
		}
	}
	return result
}

func hashToken(token string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return h.Sum64()
}

// HammingDistance counts differing bits between two fingerprints.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// SimHashSimilarity converts Hamming distance to a [0,1] similarity score.
func SimHashSimilarity(a, b uint64) float64 {
	return 1.0 - float64(HammingDistance(a, b))/float64(simHashBits)
}

// FormatSimHash renders a fingerprint as a fixed-width hex string, the form
// persisted in the registry.
func FormatSimHash(v uint64) string {
	return fmt.Sprintf("%016x", v)
}

// ParseSimHash parses the hex form produced by FormatSimHash.
func ParseSimHash(s string) (uint64, error) {
	return strconv.ParseUint(s, 16, 64)
}

// BandKeys splits a fingerprint into four 16-bit bands, each tagged with its
// position. Two documents within Hamming distance 3 of each other are
// guaranteed to agree on at least one band, so bucketing by band keys bounds
// fuzzy candidate generation on large corpora without losing close pairs.
func BandKeys(v uint64) [4]string {
	var keys [4]string
	for i := 0; i < 4; i++ {
		band := uint16(v >> (uint(i) * 16))
		keys[i] = fmt.Sprintf("%d:%04x", i, band)
	}
	return keys
}
