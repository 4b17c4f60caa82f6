// Package ident produces collision-free record identifiers.
package ident

import (
	"fmt"
	"math/rand"
)

// Allocator hands out record identifiers. Implementations are process-local;
// no external uniqueness check is performed.
type Allocator interface {
	Next() string
}

// Sequential allocates fixed-width tokens with an alphabetic prefix in
// monotonically increasing order: A0001, A0002, ...
type Sequential struct {
	prefix string
	width  int
	n      int
}

// NewSequential returns the default sequential allocator (prefix "A",
// width 4, starting at 1).
func NewSequential() *Sequential {
	return &Sequential{prefix: "A", width: 4}
}

// Next returns the next identifier in sequence.
func (s *Sequential) Next() string {
	s.n++
	return fmt.Sprintf("%s%0*d", s.prefix, s.width, s.n)
}

// Random allocates tokens of the form A1000-A9999 by rejection sampling
// against the set of tokens it has already handed out. This is the scheme the
// long-lived registry tools use; it is selectable here so registries built by
// either allocator share a shape. Sequential and random identifiers from
// separate runs are not reconciled against each other.
type Random struct {
	rand *rand.Rand
	used map[string]struct{}
}

// NewRandom returns a random allocator backed by the given source.
func NewRandom(r *rand.Rand) *Random {
	return &Random{rand: r, used: make(map[string]struct{})}
}

// Next draws random tokens until one is unused. With 9000 possible tokens the
// draw loop is effectively bounded for realistic batch sizes.
func (r *Random) Next() string {
	for {
		id := fmt.Sprintf("A%d", 1000+r.rand.Intn(9000))
		if _, taken := r.used[id]; taken {
			continue
		}
		r.used[id] = struct{}{}
		return id
	}
}
