// Package steps holds the onboarding wizard's step catalog and the pure
// navigation functions over it. Nothing here performs I/O; every function is a
// function of (index, form snapshot).
package steps

import (
	"fmt"
	"math"
	"slices"

	"careon/internal/enrollment/models"
)

// Predicate evaluates a form snapshot.
type Predicate func(f models.FormData) bool

// Definition describes one wizard step.
type Definition struct {
	ID    string
	Order int
	Title string
	// Validate gates leaving the step forward. Nil accepts any input.
	Validate Predicate
	// Applicable decides whether the step is shown. Nil means always.
	Applicable Predicate
	// Collects names the form keys gathered on this step.
	Collects []string
	// DependsOn names the form keys Applicable reads. Each must be collected
	// by an earlier step.
	DependsOn []string
}

func (d Definition) isApplicable(f models.FormData) bool {
	return d.Applicable == nil || d.Applicable(f)
}

func (d Definition) isValid(f models.FormData) bool {
	return d.Validate == nil || d.Validate(f)
}

// Catalog is an immutable, ordered set of step definitions.
type Catalog struct {
	version string
	steps   []Definition
}

// NewCatalog sorts defs by Order and checks catalog invariants: unique ids,
// unique orders, and no inclusion predicate reading a field that is only
// collected at or after its own step.
func NewCatalog(version string, defs ...Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog %s: no steps", version)
	}
	sorted := slices.Clone(defs)
	slices.SortStableFunc(sorted, func(a, b Definition) int { return a.Order - b.Order })

	ids := make(map[string]struct{}, len(sorted))
	collected := make(map[string]struct{})
	for i, d := range sorted {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog %s: step at order %d has no id", version, d.Order)
		}
		if _, dup := ids[d.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate step id %q", version, d.ID)
		}
		ids[d.ID] = struct{}{}
		if i > 0 && sorted[i-1].Order == d.Order {
			return nil, fmt.Errorf("catalog %s: steps %q and %q share order %d", version, sorted[i-1].ID, d.ID, d.Order)
		}
		for _, key := range d.DependsOn {
			if _, ok := collected[key]; !ok {
				return nil, fmt.Errorf("catalog %s: step %q depends on %q before it is collected", version, d.ID, key)
			}
		}
		for _, key := range d.Collects {
			collected[key] = struct{}{}
		}
	}
	return &Catalog{version: version, steps: sorted}, nil
}

// MustCatalog is NewCatalog for static catalogs built at init time.
func MustCatalog(version string, defs ...Definition) *Catalog {
	c, err := NewCatalog(version, defs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Version() string { return c.version }

// Len is the number of steps regardless of applicability.
func (c *Catalog) Len() int { return len(c.steps) }

// Steps returns the definitions in order.
func (c *Catalog) Steps() []Definition { return slices.Clone(c.steps) }

// Step returns the definition at index.
func (c *Catalog) Step(index int) (Definition, bool) {
	if index < 0 || index >= len(c.steps) {
		return Definition{}, false
	}
	return c.steps[index], true
}

// IndexOf returns the index of the step with id, or -1.
func (c *Catalog) IndexOf(stepID string) int {
	return slices.IndexFunc(c.steps, func(d Definition) bool { return d.ID == stepID })
}

// Next returns the first applicable step after current, or current when none
// remains.
func (c *Catalog) Next(current int, f models.FormData) int {
	for i := max(current+1, 0); i < len(c.steps); i++ {
		if c.steps[i].isApplicable(f) {
			return i
		}
	}
	return current
}

// Previous returns the nearest applicable step before current, or current when
// none exists.
func (c *Catalog) Previous(current int, f models.FormData) int {
	for i := min(current-1, len(c.steps)-1); i >= 0; i-- {
		if c.steps[i].isApplicable(f) {
			return i
		}
	}
	return current
}

// First returns the first applicable step, or -1 when nothing applies.
func (c *Catalog) First(f models.FormData) int {
	return c.Next(-1, f)
}

// Total counts the steps applicable to f.
func (c *Catalog) Total(f models.FormData) int {
	n := 0
	for _, d := range c.steps {
		if d.isApplicable(f) {
			n++
		}
	}
	return n
}

// Progress is the rounded percentage of applicable steps at or before current.
func (c *Catalog) Progress(current int, f models.FormData) int {
	total := c.Total(f)
	if total == 0 {
		return 0
	}
	ordinal := 0
	for i := 0; i <= current && i < len(c.steps); i++ {
		if c.steps[i].isApplicable(f) {
			ordinal++
		}
	}
	return int(math.Round(float64(ordinal) / float64(total) * 100))
}

// CanAdvance reports whether the step at current accepts f. Out-of-range
// indexes never advance.
func (c *Catalog) CanAdvance(current int, f models.FormData) bool {
	d, ok := c.Step(current)
	if !ok {
		return false
	}
	return d.isValid(f)
}
