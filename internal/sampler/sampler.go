/*

The sampler package expands sweep axes into the full cartesian grid of pool
variants. Axis order is contractual: the leftmost axis varies slowest, so
variant indexes are stable across runs and a sweep can resume from any index.

All axis names are validated against the base pool's setters before the first
variant is produced; a bad axis fails the whole sweep up front rather than
partway through.

*/

package sampler

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/curveforge/poolsim/internal/logger"
	"github.com/curveforge/poolsim/internal/pool"
)

// Axis is one swept parameter and its ordered values.
type Axis struct {
	Name   string
	Values []sdkmath.Int
}

// Variant is one point of the grid: a cloned pool with the axis values
// applied, plus the values themselves for reporting.
type Variant struct {
	Index  int
	Params map[string]sdkmath.Int
	Pool   pool.SimPool
}

// Grid holds a validated sweep over a base pool. The base pool is never
// mutated; every variant is built on its own clone.
type Grid struct {
	base pool.SimPool
	axes []Axis
	size int
}

func NewGrid(base pool.SimPool, axes []Axis) (*Grid, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: nil base pool", pool.ErrUnsupportedParameter)
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("%w: no sweep axes", pool.ErrUnsupportedParameter)
	}

	setters := base.Setters()
	size := 1
	seen := make(map[string]bool, len(axes))
	for _, ax := range axes {
		if seen[ax.Name] {
			return nil, fmt.Errorf("%w: duplicate axis %q", pool.ErrUnsupportedParameter, ax.Name)
		}
		seen[ax.Name] = true
		if len(ax.Values) == 0 {
			return nil, fmt.Errorf("%w: axis %q has no values", pool.ErrUnsupportedParameter, ax.Name)
		}
		found := false
		for _, s := range setters {
			if s == ax.Name {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: axis %q has no setter on this pool (have %v)",
				pool.ErrUnsupportedParameter, ax.Name, setters)
		}
		size *= len(ax.Values)
	}

	log := logger.GetForComponent("sampler")
	log.Debug().Int("axes", len(axes)).Int("variants", size).Msg("Sweep grid validated")

	dup := make([]Axis, len(axes))
	for i, ax := range axes {
		dup[i] = Axis{Name: ax.Name, Values: append([]sdkmath.Int(nil), ax.Values...)}
	}
	return &Grid{base: base, axes: dup, size: size}, nil
}

// Size returns the number of variants in the grid.
func (g *Grid) Size() int { return g.size }

// Axes returns the axis names in sweep order.
func (g *Grid) Axes() []string {
	names := make([]string, len(g.axes))
	for i, ax := range g.axes {
		names[i] = ax.Name
	}
	return names
}

// Variant materializes the grid point at idx. Parameter application errors
// (an unsafe amplification for the pool's balances, say) surface here, scoped
// to the single variant.
func (g *Grid) Variant(idx int) (*Variant, error) {
	if idx < 0 || idx >= g.size {
		return nil, fmt.Errorf("variant index %d outside grid of %d", idx, g.size)
	}

	params := make(map[string]sdkmath.Int, len(g.axes))
	rem := idx
	// Mixed-radix decode, rightmost axis fastest.
	for i := len(g.axes) - 1; i >= 0; i-- {
		ax := g.axes[i]
		params[ax.Name] = ax.Values[rem%len(ax.Values)]
		rem /= len(ax.Values)
	}

	p := g.base.Clone()
	for _, ax := range g.axes {
		if err := p.SetParameter(ax.Name, params[ax.Name]); err != nil {
			return nil, fmt.Errorf("variant %d, axis %q: %w", idx, ax.Name, err)
		}
	}
	return &Variant{Index: idx, Params: params, Pool: p}, nil
}

// Iterator walks the grid in index order. Restartable: Iterate(k) resumes at
// variant k.
type Iterator struct {
	grid *Grid
	next int
}

func (g *Grid) Iterate(start int) *Iterator {
	if start < 0 {
		start = 0
	}
	return &Iterator{grid: g, next: start}
}

// Next returns the next variant. ok is false when the grid is exhausted; an
// error applies to the single variant and does not stop the iterator.
func (it *Iterator) Next() (v *Variant, ok bool, err error) {
	if it.next >= it.grid.size {
		return nil, false, nil
	}
	idx := it.next
	it.next++
	v, err = it.grid.Variant(idx)
	return v, true, err
}
