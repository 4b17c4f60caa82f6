package ident

import (
	"math/rand"
	"regexp"
	"testing"
)

func TestSequentialFormat(t *testing.T) {
	s := NewSequential()

	want := []string{"A0001", "A0002", "A0003"}
	for i, w := range want {
		got := s.Next()
		if got != w {
			t.Errorf("Next() call %d = %q, want %q", i+1, got, w)
		}
	}
}

func TestSequentialWidthOverflow(t *testing.T) {
	s := NewSequential()
	s.n = 9999
	if got := s.Next(); got != "A10000" {
		t.Errorf("Next() after 9999 = %q, want %q", got, "A10000")
	}
}

func TestRandomUniqueAndWellFormed(t *testing.T) {
	r := NewRandom(rand.New(rand.NewSource(1)))
	pattern := regexp.MustCompile(`^A[1-9]\d{3}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 500; i++ {
		id := r.Next()
		if !pattern.MatchString(id) {
			t.Fatalf("Next() = %q, want match for %s", id, pattern)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("Next() returned duplicate identifier %q", id)
		}
		seen[id] = struct{}{}
	}
}
