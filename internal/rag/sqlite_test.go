package rag

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:", 0)
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustInsert(t *testing.T, s VectorStore, text string, vec []float32, typ ChunkType) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), text, vec, Metadata{Source: "test", Type: typ})
	if err != nil {
		t.Fatalf("insert %q: %v", text, err)
	}
	return id
}

func Test_SQLiteStore_InsertCountClear(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		mustInsert(t, s, "chunk", []float32{float32(i), 1, 0}, TypeDocumentation)
	}
	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("count after clear = %d, want 0", n)
	}
}

func Test_SQLiteStore_IDsIncrease(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	first := mustInsert(t, s, "a", []float32{1, 0}, TypeReadme)
	second := mustInsert(t, s, "b", []float32{0, 1}, TypeReadme)
	if second <= first {
		t.Errorf("ids not increasing: %d then %d", first, second)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	third := mustInsert(t, s, "c", []float32{1, 1}, TypeReadme)
	if third <= second {
		t.Errorf("id after clear = %d, want > %d", third, second)
	}
}

func Test_SQLiteStore_SearchIdenticalVector(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	mustInsert(t, s, "x axis", []float32{1, 0, 0}, TypeDocumentation)
	mustInsert(t, s, "y axis", []float32{0, 1, 0}, TypeDocumentation)
	target := mustInsert(t, s, "diagonal", []float32{0.3, 0.4, 0.5}, TypeCodeExample)

	got, err := s.Search(context.Background(), []float32{0.3, 0.4, 0.5}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 results, got %d", len(got))
	}
	if got[0].ID != target {
		t.Errorf("top result id = %d, want %d", got[0].ID, target)
	}
	if math.Abs(got[0].Similarity-1) > 1e-6 {
		t.Errorf("identical vector similarity = %f, want ~1", got[0].Similarity)
	}
	if got[0].Metadata.Type != TypeCodeExample || got[0].Metadata.Source != "test" {
		t.Errorf("metadata = %+v", got[0].Metadata)
	}
}

func Test_SQLiteStore_SearchOrderingAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	vecs := [][]float32{{1, 0}, {-1, 0}, {0.7, 0.7}, {0, 1}, {0.9, 0.1}, {-0.5, -0.5}}
	for _, v := range vecs {
		mustInsert(t, s, "v", v, TypeDocumentation)
	}

	for _, k := range []int{0, 1, 3, 6, 10} {
		got, err := s.Search(context.Background(), []float32{1, 0.2}, k)
		if err != nil {
			t.Fatalf("search k=%d: %v", k, err)
		}
		if len(got) > k {
			t.Errorf("k=%d: got %d results", k, len(got))
		}
		for i, r := range got {
			if r.Similarity < -1 || r.Similarity > 1 {
				t.Errorf("k=%d: similarity %f out of range", k, r.Similarity)
			}
			if i > 0 && got[i-1].Similarity < r.Similarity {
				t.Errorf("k=%d: results not sorted at %d", k, i)
			}
		}
	}
}

func Test_SQLiteStore_TiesOrderedByID(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	var ids []int64
	for range 4 {
		ids = append(ids, mustInsert(t, s, "same", []float32{0.5, 0.5}, TypeDocumentation))
	}

	got, err := s.Search(context.Background(), []float32{1, 1}, 4)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for i, r := range got {
		if r.ID != ids[i] {
			t.Errorf("result[%d].ID = %d, want %d", i, r.ID, ids[i])
		}
	}
}

func Test_SQLiteStore_DimensionEnforced(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, "three", []float32{1, 2, 3}, TypeDocumentation)

	if _, err := s.Insert(ctx, "two", []float32{1, 2}, Metadata{}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("insert wrong dimension: err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := s.Search(ctx, []float32{1, 2, 3, 4}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("search wrong dimension: err = %v, want ErrDimensionMismatch", err)
	}
	if _, err := s.Insert(ctx, "empty", nil, Metadata{}); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("insert empty vector: err = %v, want ErrEmptyVector", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("count = %d, rejected inserts must not be stored", n)
	}
}

func Test_SQLiteStore_SearchEmptyStore(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	got, err := s.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("want no results, got %d", len(got))
	}
}

func Test_SQLiteStore_ConcurrentInserts(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				if _, err := s.Insert(ctx, "c", []float32{float32(w), float32(i), 1}, Metadata{Type: TypeDocumentation}); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent insert: %v", err)
	}

	if n, _ := s.Count(ctx); n != workers*perWorker {
		t.Errorf("count = %d, want %d", n, workers*perWorker)
	}
}

func Test_SQLiteStore_ReopenLearnsDimension(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "vectors.db")

	s, err := OpenSQLite(path, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustInsert(t, s, "persisted", []float32{1, 2, 3}, TypeReadme)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenSQLite(path, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if d := s.Dimension(); d != 3 {
		t.Errorf("dimension after reopen = %d, want 3", d)
	}
	if n, _ := s.Count(context.Background()); n != 1 {
		t.Errorf("count after reopen = %d, want 1", n)
	}
	_ = s.Close()

	if _, err := OpenSQLite(path, 4); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("reopen with dimension 4: err = %v, want ErrDimensionMismatch", err)
	}
}
