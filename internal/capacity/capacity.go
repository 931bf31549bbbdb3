// Package capacity decides whether a department has room for another item.
package capacity

import "github.com/erazemk/hramba/internal/model"

// Unbounded marks a department without a ceiling.
const Unbounded = 0

// DefaultLimits returns the stock ceilings: documents and photos hold at
// most 100 stored items each, other is unbounded.
func DefaultLimits() map[model.Department]int {
	return map[model.Department]int{
		model.DepartmentDocuments: 100,
		model.DepartmentPhotos:    100,
		model.DepartmentOther:     Unbounded,
	}
}

// Policy holds the per-department ceiling on concurrently stored items.
// A limit of zero or less, or a department missing from the map, is unbounded.
type Policy struct {
	limits map[model.Department]int
}

// NewPolicy returns a policy with the given limits. The map is copied.
func NewPolicy(limits map[model.Department]int) *Policy {
	p := &Policy{limits: make(map[model.Department]int, len(limits))}
	for d, n := range limits {
		p.limits[d] = n
	}
	return p
}

// Limit returns the ceiling for d and whether d is bounded at all.
func (p *Policy) Limit(d model.Department) (int, bool) {
	n, ok := p.limits[d]
	if !ok || n <= Unbounded {
		return 0, false
	}
	return n, true
}

// CanAccept reports whether d may take one more item given the number of
// items currently stored there. Returned items must not be counted.
func (p *Policy) CanAccept(d model.Department, stored int) bool {
	limit, bounded := p.Limit(d)
	return !bounded || stored < limit
}
