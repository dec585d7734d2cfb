// Package evalctx defines the ambient evaluation context threaded through
// node evaluation, plus the declared-subset masking that keeps result caching
// precise: a node's cache key covers only the context fields the node's
// implementation declared it reads.
package evalctx

import (
	"github.com/protograph/protograph/internal/value"
)

// Mask is a bitset of context fields an implementation declares it reads.
type Mask uint8

const (
	// ReadsNothing marks an implementation as context independent; its
	// results are reusable across any context change.
	ReadsNothing Mask = 0

	// ReadsTime marks an implementation as reading the animation time.
	ReadsTime Mask = 1 << iota
	// ReadsViewport marks an implementation as reading the viewport
	// footprint.
	ReadsViewport
	// ReadsScale marks an implementation as reading the display scale.
	ReadsScale
)

// Footprint is the axis-aligned viewport region being evaluated.
type Footprint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Context carries the ambient evaluation parameters. It is an immutable
// value: pass it by value, never mutate a stored one.
type Context struct {
	Time     float64   `json:"time"`
	Viewport Footprint `json:"viewport"`
	Scale    float64   `json:"scale"`
}

// Subset returns the context reduced to the masked fields as a value.Map,
// the form used for canonical hashing.
func (c Context) Subset(mask Mask) value.Map {
	subset := value.Map{}
	if mask&ReadsTime != 0 {
		subset["time"] = value.Float(c.Time)
	}
	if mask&ReadsViewport != 0 {
		subset["viewport"] = value.List{
			value.Float(c.Viewport.X),
			value.Float(c.Viewport.Y),
			value.Float(c.Viewport.Width),
			value.Float(c.Viewport.Height),
		}
	}
	if mask&ReadsScale != 0 {
		subset["scale"] = value.Float(c.Scale)
	}
	return subset
}

// Hash computes the content hash of the masked subset. Implementations with
// ReadsNothing always hash to the same key, so their cached results survive
// every context change.
func (c Context) Hash(mask Mask) (string, error) {
	return value.HashValue(value.DomainContext, c.Subset(mask))
}
