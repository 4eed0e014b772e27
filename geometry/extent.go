package geometry

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Extent is a bounding box that starts empty. The first point sets a degenerate box
// and every later point widens each bound independently.
type Extent struct {
	bound orb.Bound
	set   bool
}

// IsEmpty reports whether no point has been added.
func (e Extent) IsEmpty() bool {
	return !e.set
}

// Add widens the extent to include x, y.
func (e *Extent) Add(x, y float64) {
	if !e.set {
		e.bound = orb.Bound{Min: orb.Point{x, y}, Max: orb.Point{x, y}}
		e.set = true
		return
	}
	e.bound = e.bound.Extend(orb.Point{x, y})
}

// Union widens the extent to include other.
func (e *Extent) Union(other Extent) {
	if !other.set {
		return
	}
	if !e.set {
		*e = other
		return
	}
	e.bound = e.bound.Union(other.bound)
}

// Bound returns the box. It is the zero bound when the extent is empty.
func (e Extent) Bound() orb.Bound {
	return e.bound
}

// XMin returns the minimum x.
func (e Extent) XMin() float64 { return e.bound.Min[0] }

// YMin returns the minimum y.
func (e Extent) YMin() float64 { return e.bound.Min[1] }

// XMax returns the maximum x.
func (e Extent) XMax() float64 { return e.bound.Max[0] }

// YMax returns the maximum y.
func (e Extent) YMax() float64 { return e.bound.Max[1] }

func (e Extent) String() string {
	if !e.set {
		return "EMPTY"
	}
	return fmt.Sprintf("%s,%s : %s,%s",
		formatNumber(e.XMin()), formatNumber(e.YMin()), formatNumber(e.XMax()), formatNumber(e.YMax()))
}
