// Package xsection builds the energy binned attenuation tables the navigator
// samples interaction distances from, and applies photon processes.
package xsection

import (
	"math"
	"math/rand"
	"sort"

	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Photon processes.
const (
	Photoelectric uint8 = iota
	Compton
	Rayleigh
	NumProcesses
)

var processNames = [NumProcesses]string{"photoelectric", "compton", "rayleigh"}

// Energy limits of the table, MeV.
const (
	MinEnergyLimit = 990e-6
	MaxEnergyLimit = 250.0
)

// ProcessName returns the configuration name of a process.
func ProcessName(process uint8) string {
	if process < NumProcesses {
		return processNames[process]
	}
	return "none"
}

// ProcessByName is the inverse of ProcessName.
func ProcessByName(name string) (uint8, bool) {
	i := lo.IndexOf(processNames[:], name)
	return uint8(i), i >= 0
}

// Node is one tabulated mass attenuation coefficient.
type Node struct {
	Energy float64 // MeV
	MuRho  float64 // cm2/g
}

// Material is the input of the table for one material.
type Material struct {
	Name    string
	Density float64 // g/cm3
	Nodes   [NumProcesses][]Node
}

// Params bound and sample the energy grid.
type Params struct {
	Bins      int
	MinEnergy float64 // MeV
	MaxEnergy float64 // MeV
	Processes []string
}

// Table holds, per material and process, linear attenuation coefficients
// (1/mm) on a log spaced energy grid. It is read only once built.
type Table struct {
	energies []float64
	logMin   float64
	logStep  float64

	names  []string
	index  map[string]int
	active [NumProcesses]bool
	mu     [][NumProcesses][]float64 // [material][process][bin]
	total  [][]float64               // [material][bin]
}

var _ navigator.CrossSections = (*Table)(nil)

// NewTable validates params and materials and fills the table.
func NewTable(params Params, materials []Material, log *zap.Logger) (*Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if params.Bins < 2 {
		return nil, navigator.ConfigError("CrossSections", "Initialize", "at least 2 bins are needed, got %d", params.Bins)
	}
	if params.MinEnergy < MinEnergyLimit || params.MaxEnergy > MaxEnergyLimit || params.MinEnergy >= params.MaxEnergy {
		return nil, navigator.ConfigError("CrossSections", "Initialize", "energy range [%g, %g] MeV outside [%g, %g] MeV",
			params.MinEnergy, params.MaxEnergy, MinEnergyLimit, MaxEnergyLimit)
	}
	if len(materials) == 0 {
		return nil, navigator.ConfigError("CrossSections", "Initialize", "no material")
	}
	t := &Table{
		energies: make([]float64, params.Bins),
		logMin:   math.Log(params.MinEnergy),
		logStep:  (math.Log(params.MaxEnergy) - math.Log(params.MinEnergy)) / float64(params.Bins-1),
		index:    make(map[string]int, len(materials)),
	}
	for b := range t.energies {
		t.energies[b] = math.Exp(t.logMin + float64(b)*t.logStep)
	}
	t.energies[0], t.energies[params.Bins-1] = params.MinEnergy, params.MaxEnergy

	processes := params.Processes
	if len(processes) == 0 {
		processes = processNames[:]
	}
	for _, name := range processes {
		pr, ok := ProcessByName(name)
		if !ok {
			return nil, navigator.ConfigError("CrossSections", "Initialize", "unknown process %q", name)
		}
		t.active[pr] = true
	}

	for _, m := range materials {
		if _, dup := t.index[m.Name]; dup || m.Name == "" {
			return nil, navigator.ConfigError("CrossSections", "Initialize", "material name %q empty or duplicated", m.Name)
		}
		if !(m.Density > 0) {
			return nil, navigator.ConfigError("CrossSections", "Initialize", "material %q: density must be positive", m.Name)
		}
		var mu [NumProcesses][]float64
		total := make([]float64, params.Bins)
		for pr := uint8(0); pr < NumProcesses; pr++ {
			mu[pr] = make([]float64, params.Bins)
			if !t.active[pr] || len(m.Nodes[pr]) == 0 {
				continue
			}
			nodes, err := checkNodes(m.Name, pr, m.Nodes[pr])
			if err != nil {
				return nil, err
			}
			for b, e := range t.energies {
				// cm2/g * g/cm3 = 1/cm
				mu[pr][b] = logLog(nodes, e) * m.Density / 10
				total[b] += mu[pr][b]
			}
		}
		t.index[m.Name] = len(t.names)
		t.names = append(t.names, m.Name)
		t.mu = append(t.mu, mu)
		t.total = append(t.total, total)
	}
	log.Named("xsection").Debug("cross section table built",
		zap.Int("bins", params.Bins),
		zap.Float64("min_energy", params.MinEnergy),
		zap.Float64("max_energy", params.MaxEnergy),
		zap.Strings("materials", t.names),
		zap.Strings("processes", processes))
	return t, nil
}

func checkNodes(material string, pr uint8, nodes []Node) ([]Node, error) {
	for _, n := range nodes {
		if !(n.Energy > 0) || !(n.MuRho > 0) {
			return nil, navigator.ConfigError("CrossSections", "Initialize", "material %q, %s: node %v must be positive",
				material, ProcessName(pr), n)
		}
	}
	sorted := append([]Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Energy < sorted[j].Energy })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Energy == sorted[i-1].Energy {
			return nil, navigator.ConfigError("CrossSections", "Initialize", "material %q, %s: duplicated node at %g MeV",
				material, ProcessName(pr), sorted[i].Energy)
		}
	}
	return sorted, nil
}

// logLog interpolates sorted nodes in log-log space, extrapolating the end
// segments.
func logLog(nodes []Node, e float64) float64 {
	if len(nodes) == 1 {
		return nodes[0].MuRho
	}
	k := sort.Search(len(nodes), func(i int) bool { return nodes[i].Energy >= e })
	switch {
	case k == 0:
		k = 1
	case k == len(nodes):
		k = len(nodes) - 1
	}
	a, b := nodes[k-1], nodes[k]
	s := (math.Log(b.MuRho) - math.Log(a.MuRho)) / (math.Log(b.Energy) - math.Log(a.Energy))
	return math.Exp(math.Log(a.MuRho) + s*(math.Log(e)-math.Log(a.Energy)))
}

// MaterialIndex returns the table row of a material.
func (t *Table) MaterialIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) NumberOfMaterials() int { return len(t.names) }
func (t *Table) Materials() []string    { return t.names }
func (t *Table) Energies() []float64    { return t.energies }

// EnergyBin returns the grid bin at or below e, clamped to the grid.
func (t *Table) EnergyBin(e float64) int {
	if !(e > t.energies[0]) {
		return 0
	}
	b := int((math.Log(e) - t.logMin) / t.logStep)
	if b >= len(t.energies)-1 {
		return len(t.energies) - 1
	}
	// rounding of the log can land one bin off
	if t.energies[b] > e {
		b--
	} else if t.energies[b+1] <= e {
		b++
	}
	return b
}

func (t *Table) interp(values []float64, e float64) float64 {
	b := t.EnergyBin(e)
	if b == len(t.energies)-1 || e <= t.energies[0] {
		return values[b]
	}
	e0, e1 := t.energies[b], t.energies[b+1]
	return values[b] + (values[b+1]-values[b])*(e-e0)/(e1-e0)
}

// Attenuation returns the linear attenuation of one process at e, 1/mm.
func (t *Table) Attenuation(material int32, process uint8, e float64) float64 {
	if process >= NumProcesses {
		return 0
	}
	return t.interp(t.mu[material][process], e)
}

// TotalAttenuation sums every active process at e, 1/mm.
func (t *Table) TotalAttenuation(material int32, e float64) float64 {
	return t.interp(t.total[material], e)
}

// SampleInteraction draws the free path to the next interaction and picks the
// process in proportion to its attenuation. Without attenuation the distance
// is infinite and the process is navigator.NoProcess.
func (t *Table) SampleInteraction(material int32, e float64, rng *rand.Rand) (float64, uint8) {
	mu := t.TotalAttenuation(material, e)
	if !(mu > 0) {
		return math.Inf(1), navigator.NoProcess
	}
	// 1-u keeps the argument of the log in (0, 1]
	dist := -math.Log(1-rng.Float64()) / mu

	r := rng.Float64() * mu
	last := navigator.NoProcess
	for pr := uint8(0); pr < NumProcesses; pr++ {
		m := t.Attenuation(material, pr, e)
		if m <= 0 {
			continue
		}
		last = pr
		if r < m {
			return dist, pr
		}
		r -= m
	}
	return dist, last
}
