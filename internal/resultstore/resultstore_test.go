package resultstore

import (
	"sync"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	s := New()
	id := s.Put(&Result{TotalFiles: 3})

	got, ok := s.Get(id)
	if !ok {
		t.Fatalf("expected result %q to be found", id)
	}
	if got.TotalFiles != 3 {
		t.Errorf("expected TotalFiles=3, got %d", got.TotalFiles)
	}
	if got.ID != id {
		t.Errorf("expected stored result's ID to be set to %q, got %q", id, got.ID)
	}
}

func TestGetUnknownID(t *testing.T) {
	s := New()
	if _, ok := s.Get("does-not-exist"); ok {
		t.Error("expected lookup of an unknown id to fail")
	}
}

func TestDeleteRemovesResult(t *testing.T) {
	s := New()
	id := s.Put(&Result{})
	s.Delete(id)
	if _, ok := s.Get(id); ok {
		t.Error("expected result to be gone after Delete")
	}
}

func TestLenTracksInsertions(t *testing.T) {
	s := New()
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got len %d", s.Len())
	}
	s.Put(&Result{})
	s.Put(&Result{})
	if s.Len() != 2 {
		t.Errorf("expected len 2, got %d", s.Len())
	}
}

func TestConcurrentPutGet(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := 0; i < 50; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i] = s.Put(&Result{TotalFiles: i})
		}()
	}
	wg.Wait()

	for i, id := range ids {
		r, ok := s.Get(id)
		if !ok {
			t.Fatalf("result %d (%q) missing after concurrent insert", i, id)
		}
		_ = r
	}
	if s.Len() != 50 {
		t.Errorf("expected 50 stored results, got %d", s.Len())
	}
}
