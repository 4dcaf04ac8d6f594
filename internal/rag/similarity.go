package rag

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"slices"
)

// Cosine returns the cosine similarity of a and b, clamped to [-1, 1].
// It returns 0 when either vector has zero norm or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clampSimilarity(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// clampSimilarity bounds a backend-reported similarity to [-1, 1]. NaN, which
// pgvector reports for zero-norm operands, becomes 0.
func clampSimilarity(sim float64) float64 {
	if math.IsNaN(sim) {
		return 0
	}
	return max(-1, min(1, sim))
}

// zeroNorm reports whether every component of v is zero.
func zeroNorm(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

// encodeVector packs v as little-endian float32 values.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("rag: embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// sortResults orders results by similarity descending, then ID ascending.
func sortResults(results []SearchResult) {
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// topK sorts results and truncates them to k entries.
func topK(results []SearchResult, k int) []SearchResult {
	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}
