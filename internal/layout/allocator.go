// Package layout places posts on the wall.
package layout

import (
	"freedomwall/internal/models"
	"math/rand/v2"
	"sync"
)

const (
	Columns     = 3
	ColumnWidth = 33.33
	RowHeight   = 180.0
	JitterX     = 15.0
	JitterY     = 10.0
	MaxRotation = 3.0
)

// RandomSource supplies the cosmetic scatter. *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

type AllocatorInterface interface {
	ComputePlacement(index int) models.Placement
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

type Allocator struct {
	mu  sync.Mutex
	rnd RandomSource
}

// NewAllocator uses the process-wide generator when rnd is nil.
func NewAllocator(rnd RandomSource) *Allocator {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Allocator{rnd: rnd}
}

// ComputePlacement derives the placement of the post appended at index.
// Column and row depend only on index; offsets, rotation and color are
// random.
func (a *Allocator) ComputePlacement(index int) models.Placement {
	if index < 0 {
		index = 0
	}
	column := index % Columns
	row := index / Columns

	a.mu.Lock()
	defer a.mu.Unlock()
	return models.Placement{
		Column:           column,
		Row:              row,
		HorizontalOffset: float64(column)*ColumnWidth + a.uniform(JitterX),
		VerticalOffset:   float64(row)*RowHeight + a.uniform(JitterY),
		RotationDegrees:  a.uniform(MaxRotation),
		ColorIndex:       a.rnd.IntN(models.PaletteSize),
	}
}

// uniform draws from [-spread, +spread].
func (a *Allocator) uniform(spread float64) float64 {
	return a.rnd.Float64()*2*spread - spread
}
