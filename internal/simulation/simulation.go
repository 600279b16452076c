// Package simulation wires the configured services together and runs the
// particle batches.
package simulation

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/lukaszgryglicki/ggemsgo/internal/compute"
	"github.com/lukaszgryglicki/ggemsgo/internal/config"
	"github.com/lukaszgryglicki/ggemsgo/internal/geomio"
	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/lukaszgryglicki/ggemsgo/internal/source"
	"github.com/lukaszgryglicki/ggemsgo/internal/xsection"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Simulation owns every service of one run.
type Simulation struct {
	cfg   *config.Config
	log   *zap.Logger
	runID string

	dev     *compute.Device
	table   *xsection.Table
	nav     *navigator.Navigator
	src     *source.XRaySource
	outputs []dosimetry
}

// dosimetry is a solid whose accumulator is written at the end of the run.
type dosimetry struct {
	solid navigator.Solid
	dims  [3]int
}

// Summary reports a finished run.
type Summary struct {
	RunID     string
	Particles int
	Batches   int
	Stats     map[string]uint64
	Edep      float64 // MeV, summed over dosimetry solids
	Files     []string
	Elapsed   time.Duration
}

func deg(v config.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{mgl64.DegToRad(v[0]), mgl64.DegToRad(v[1]), mgl64.DegToRad(v[2])}
}

// New validates cfg and builds the device, cross sections, solids, navigator
// and source. log may be nil.
func New(cfg *config.Config, log *zap.Logger) (*Simulation, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	log = log.With(zap.String("run", runID))
	s := &Simulation{cfg: cfg, log: log, runID: runID}

	s.dev = compute.NewDevice(compute.Options{
		Workers:     cfg.Compute.Workers,
		MemoryLimit: int64(cfg.Compute.MemoryLimitMB) << 20,
	}, log)

	var err error
	s.table, err = xsection.NewTable(xsection.Params{
		Bins:      cfg.Physics.Bins,
		MinEnergy: cfg.Physics.MinEnergy,
		MaxEnergy: cfg.Physics.MaxEnergy,
		Processes: cfg.Physics.Processes,
	}, lo.Map(cfg.Physics.Materials, func(m config.MaterialConfig, _ int) xsection.Material {
		return material(m)
	}), log)
	if err != nil {
		return nil, err
	}

	s.nav, err = navigator.New(s.dev, s.table, xsection.NewPhysics(s.table), navigator.Params{
		GeometryTolerance: cfg.Navigation.GeometryTolerance,
		MaxSteps:          cfg.Navigation.MaxSteps,
		MaxRounds:         cfg.Navigation.MaxRounds,
		EnergyCutoff:      cfg.Navigation.EnergyCutoff,
		Seed:              cfg.Compute.Seed,
	}, log)
	if err != nil {
		return nil, err
	}

	for _, vc := range cfg.Voxelized {
		solid, err := s.voxelized(vc)
		if err != nil {
			return nil, errors.Wrapf(err, "voxelized %s", vc.Name)
		}
		if err := s.register(solid, vc.Position, vc.RotationDeg, vc.Dosimetry, solid.Dimensions()); err != nil {
			return nil, err
		}
	}
	for _, mc := range cfg.Meshed {
		solid, err := s.meshed(mc)
		if err != nil {
			return nil, errors.Wrapf(err, "meshed %s", mc.Name)
		}
		if err := s.register(solid, mc.Position, mc.RotationDeg, mc.Dosimetry, [3]int{2, 1, 1}); err != nil {
			return nil, err
		}
	}
	if err := s.nav.Initialize(); err != nil {
		return nil, err
	}

	srcSeed := cfg.Compute.Seed
	if srcSeed != 0 {
		srcSeed++
	}
	sc := cfg.Source
	s.src, err = source.New(source.Options{
		Name:      sc.Name,
		Kind:      navigator.KindPhoton,
		Position:  mgl64.Vec3(sc.Position),
		Rotation:  deg(sc.RotationDeg),
		LocalAxis: [3]mgl64.Vec3{mgl64.Vec3(sc.LocalAxis[0]), mgl64.Vec3(sc.LocalAxis[1]), mgl64.Vec3(sc.LocalAxis[2])},
		Aperture:  mgl64.DegToRad(sc.ApertureDeg),
		FocalSpot: mgl64.Vec3(sc.FocalSpot),
		Energy:    sc.Energy,
		Spectrum:  sc.Spectrum,
	}, s.dev, srcSeed, log)
	if err != nil {
		return nil, err
	}
	for _, id := range s.nav.SolidsAt(s.src.Position()) {
		solid, _ := s.nav.Solid(id)
		s.log.Warn("source inside solid", zap.String("source", sc.Name), zap.String("solid", solid.Name()))
	}
	return s, nil
}

func material(m config.MaterialConfig) xsection.Material {
	nodes := func(in [][2]float64) []xsection.Node {
		return lo.Map(in, func(n [2]float64, _ int) xsection.Node {
			return xsection.Node{Energy: n[0], MuRho: n[1]}
		})
	}
	out := xsection.Material{Name: m.Name, Density: m.Density}
	out.Nodes[xsection.Photoelectric] = nodes(m.Photoelectric)
	out.Nodes[xsection.Compton] = nodes(m.Compton)
	out.Nodes[xsection.Rayleigh] = nodes(m.Rayleigh)
	return out
}

func shape(sc config.ShapeConfig) geomio.Shape {
	return geomio.Shape{
		Kind:   geomio.ShapeKind(sc.Kind),
		Center: mgl64.Vec3(sc.Center),
		Size:   mgl64.Vec3(sc.Size),
		Radius: sc.Radius,
		Height: sc.Height,
	}
}

func (s *Simulation) voxelized(vc config.VoxelizedConfig) (*navigator.VoxelizedSolid, error) {
	pc, err := geomio.NewPhantomCreator(vc.Dimensions, mgl64.Vec3(vc.VoxelSize), vc.Background, s.log)
	if err != nil {
		return nil, err
	}
	for _, sh := range vc.Shapes {
		mat := sh.Material
		if mat == "" {
			mat = vc.Background
		}
		if _, err := pc.Add(shape(sh), mat); err != nil {
			return nil, err
		}
	}
	return pc.Build(s.dev, vc.Name)
}

func (s *Simulation) meshed(mc config.MeshedConfig) (*navigator.MeshedSolid, error) {
	var (
		tris []navigator.Triangle
		err  error
	)
	if mc.STL != "" {
		tris, _, _, err = geomio.ReadSTL(mc.STL)
	} else {
		tris, err = geomio.AnalyticMesh(shape(*mc.Shape), mc.Cells)
	}
	if err != nil {
		return nil, err
	}
	solid, err := navigator.NewMeshedSolid(s.dev, mc.Name, tris, mc.Material, mc.Envelope)
	if err != nil {
		return nil, err
	}
	if s.log.Core().Enabled(zap.DebugLevel) {
		navigator.DumpMeshBVH(s.log, solid)
	}
	return solid, nil
}

type dosimetrySolid interface {
	navigator.Solid
	EnableDosimetry() error
}

func (s *Simulation) register(solid dosimetrySolid, pos, rotDeg config.Vec3, dose bool, dims [3]int) error {
	solid.SetPosition(mgl64.Vec3(pos))
	solid.SetRotation(deg(rotDeg))
	if dose {
		if err := solid.EnableDosimetry(); err != nil {
			return err
		}
		s.outputs = append(s.outputs, dosimetry{solid: solid, dims: dims})
	}
	_, err := s.nav.RegisterSolid(solid)
	return err
}

func (s *Simulation) RunID() string                   { return s.runID }
func (s *Simulation) Navigator() *navigator.Navigator { return s.nav }
func (s *Simulation) Device() *compute.Device         { return s.dev }

// Run emits the configured particles batch by batch. A cancelled context
// aborts the whole run and nothing is written.
func (s *Simulation) Run(ctx context.Context) (*Summary, error) {
	total := s.cfg.Source.Particles
	capacity := s.cfg.Compute.BatchSize
	if capacity > total {
		capacity = total
	}
	p, err := navigator.NewParticles(s.dev, capacity)
	if err != nil {
		return nil, err
	}
	defer p.Release()

	start := time.Now()
	sum := &Summary{RunID: s.runID}
	s.log.Info("run started",
		zap.Int("particles", total),
		zap.Int("batch", capacity),
		zap.Int("workers", s.dev.Workers()),
		zap.Int("solids", len(s.nav.Solids())))

	for done := 0; done < total; {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "run aborted after %d particles", done)
		}
		n := capacity
		if rest := total - done; rest < n {
			n = rest
		}
		if err := s.src.Generate(p, n); err != nil {
			return nil, err
		}
		if err := s.nav.Run(ctx, p); err != nil {
			return nil, err
		}
		done += n
		sum.Batches++
		s.log.Debug("batch done", zap.Int("batch", sum.Batches), zap.Int("emitted", done))
	}
	sum.Particles = total
	sum.Stats = s.nav.Stats().Summary()
	s.nav.Stats().Log(s.log, "tracking summary")
	s.dev.LogTimers()

	files, edep, err := s.writeDosimetry()
	if err != nil {
		return nil, err
	}
	sum.Files, sum.Edep = files, edep
	sum.Elapsed = time.Since(start)
	s.log.Info("run finished",
		zap.Duration("elapsed", sum.Elapsed),
		zap.Float64("edep_mev", sum.Edep),
		zap.Strings("files", sum.Files))
	return sum, nil
}

// writeDosimetry saves, per dosimetry solid, the deposited energy, its square
// and the hit counts as raw voxel maps.
func (s *Simulation) writeDosimetry() ([]string, float64, error) {
	var (
		files []string
		edep  float64
	)
	for _, out := range s.outputs {
		dose := out.solid.Accumulator().Snapshot()
		edep += dose.Total()
		maps := []struct {
			suffix string
			values []float64
		}{
			{"edep", dose.Edep},
			{"edep_squared", dose.EdepSquared},
			{"hits", lo.Map(dose.Hits, func(h uint64, _ int) float64 { return float64(h) })},
		}
		for _, m := range maps {
			path := filepath.Join(s.cfg.Output.Dir, out.solid.Name()+"_"+m.suffix+".raw")
			if err := geomio.WriteRawEdep(path, out.dims, m.values); err != nil {
				return nil, 0, err
			}
			files = append(files, path)
		}
		s.log.Info("dosimetry",
			zap.String("solid", out.solid.Name()),
			zap.Float64("edep_mev", dose.Total()),
			zap.Float64("max_voxel_mev", lo.Max(dose.Edep)),
			zap.Float64("deposit_relative_uncertainty", depositUncertainty(dose)))
	}
	return files, edep, nil
}

// depositUncertainty is the relative uncertainty of the total deposit when
// single deposits are counted as independent events: sqrt(sum e^2) / sum e.
// EdepSquared holds squares of single deposits, not of per history totals,
// so correlations within one history are not included.
func depositUncertainty(d navigator.Dose) float64 {
	sum := d.Total()
	if sum <= 0 {
		return 0
	}
	return math.Sqrt(lo.Sum(d.EdepSquared)) / sum
}

// Close releases the device memory held by the solids.
func (s *Simulation) Close() {
	for _, solid := range s.nav.Solids() {
		if r, ok := solid.(compute.Releaser); ok {
			r.Release()
		}
	}
}
