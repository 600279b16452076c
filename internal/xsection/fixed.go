package xsection

import (
	"math/rand"

	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/samber/lo"
)

// Fixed is a table where every material interacts after the same distance with
// the same process. It makes traversals deterministic.
type Fixed struct {
	names    []string
	distance float64
	process  uint8
}

var _ navigator.CrossSections = (*Fixed)(nil)

func NewFixed(names []string, distance float64, process uint8) *Fixed {
	return &Fixed{names: names, distance: distance, process: process}
}

func (f *Fixed) MaterialIndex(name string) (int, bool) {
	i := lo.IndexOf(f.names, name)
	return i, i >= 0
}

func (f *Fixed) NumberOfMaterials() int { return len(f.names) }

func (f *Fixed) EnergyBin(float64) int { return 0 }

func (f *Fixed) SampleInteraction(int32, float64, *rand.Rand) (float64, uint8) {
	return f.distance, f.process
}
