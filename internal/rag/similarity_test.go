package rag

import (
	"math"
	"testing"
)

func Test_Cosine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tc := range cases {
		got := Cosine(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Cosine = %f, want %f", tc.name, got, tc.want)
		}
	}
}

func Test_DecodeVector(t *testing.T) {
	t.Parallel()
	v := []float32{0.25, -1.5, 3e-7}
	got, err := decodeVector(encodeVector(v))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("element %d = %v, want %v", i, got[i], v[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("want error for truncated blob")
	}
}

func Test_TopK_Deterministic(t *testing.T) {
	t.Parallel()
	in := []SearchResult{
		{ID: 4, Similarity: 0.5},
		{ID: 2, Similarity: 0.9},
		{ID: 3, Similarity: 0.5},
		{ID: 1, Similarity: 0.5},
	}
	got := topK(in, 3)
	wantIDs := []int64{2, 1, 3}
	if len(got) != len(wantIDs) {
		t.Fatalf("want %d results, got %d", len(wantIDs), len(got))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("result[%d].ID = %d, want %d", i, got[i].ID, id)
		}
	}
}

func Test_ClampSimilarity(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   float64
		want float64
	}{
		{"in range", 0.42, 0.42},
		{"above one", 1.0000001, 1},
		{"below minus one", -1.5, -1},
		{"nan from zero norm", math.NaN(), 0},
	}
	for _, tc := range cases {
		if got := clampSimilarity(tc.in); got != tc.want {
			t.Errorf("%s: clampSimilarity(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

func Test_ZeroNormResultsSortByID(t *testing.T) {
	t.Parallel()
	results := []SearchResult{
		{ID: 9, Similarity: clampSimilarity(math.NaN())},
		{ID: 2, Similarity: 0.3},
		{ID: 4, Similarity: clampSimilarity(math.NaN())},
	}
	got := topK(results, 3)
	for i, want := range []int64{2, 4, 9} {
		if got[i].ID != want {
			t.Errorf("result[%d].ID = %d, want %d", i, got[i].ID, want)
		}
	}
}

func Test_ZeroNorm(t *testing.T) {
	t.Parallel()
	if !zeroNorm([]float32{0, 0, 0}) || !zeroNorm(nil) {
		t.Error("zero vectors should report zero norm")
	}
	if zeroNorm([]float32{0, 1e-9, 0}) {
		t.Error("non-zero vector reported zero norm")
	}
}
