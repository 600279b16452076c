package config

import (
	"math"

	"github.com/lukaszgryglicki/ggemsgo/internal/navigator"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrInvalid marks a configuration that failed validation. It wraps
// navigator.ErrConfig so callers can test either.
var ErrInvalid = errors.WithMessage(navigator.ErrConfig, "invalid configuration")

// KnownProcesses lists the photon processes the cross-section table can build.
var KnownProcesses = []string{"photoelectric", "compton", "rayleigh"}

var knownShapes = []string{"box", "tube", "sphere"}

func invalid(section, format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, section+": "+format, args...)
}

// Validate checks the configuration for values that cannot produce a run.
func (c *Config) Validate() error {
	if c.Compute.BatchSize <= 0 {
		return invalid("compute", "batch_size must be positive, got %d", c.Compute.BatchSize)
	}
	if c.Compute.Workers < 0 || c.Compute.MemoryLimitMB < 0 {
		return invalid("compute", "workers and memory_limit_mb must not be negative")
	}
	n := c.Navigation
	if !(n.GeometryTolerance > 0) || math.IsInf(n.GeometryTolerance, 0) {
		return invalid("navigation", "geometry_tolerance must be positive and finite, got %g", n.GeometryTolerance)
	}
	if n.MaxSteps <= 0 || n.MaxRounds <= 0 {
		return invalid("navigation", "max_steps and max_rounds must be positive")
	}
	if n.EnergyCutoff < 0 {
		return invalid("navigation", "energy_cutoff must not be negative")
	}
	if err := c.validatePhysics(); err != nil {
		return err
	}
	materials := lo.Map(c.Physics.Materials, func(m MaterialConfig, _ int) string { return m.Name })
	names := make([]string, 0, len(c.Voxelized)+len(c.Meshed))
	for _, v := range c.Voxelized {
		if err := v.validate(materials); err != nil {
			return err
		}
		names = append(names, v.Name)
	}
	for _, m := range c.Meshed {
		if err := m.validate(materials); err != nil {
			return err
		}
		names = append(names, m.Name)
	}
	if len(names) == 0 {
		return invalid("phantoms", "no solid declared")
	}
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return invalid("phantoms", "duplicated solid names %v", dup)
	}
	return c.Source.validate()
}

func (c *Config) validatePhysics() error {
	p := c.Physics
	if p.Bins < 2 {
		return invalid("physics", "bins must be at least 2, got %d", p.Bins)
	}
	if p.MinEnergy < 0.00099 || p.MaxEnergy > 250.0 || p.MinEnergy >= p.MaxEnergy {
		return invalid("physics", "energy range [%g, %g] MeV outside [0.00099, 250]", p.MinEnergy, p.MaxEnergy)
	}
	if len(p.Processes) == 0 {
		return invalid("physics", "no process activated")
	}
	if unknown := lo.Without(p.Processes, KnownProcesses...); len(unknown) > 0 {
		return invalid("physics", "unknown processes %v", unknown)
	}
	if len(p.Materials) == 0 {
		return invalid("physics", "no material declared")
	}
	names := lo.Map(p.Materials, func(m MaterialConfig, _ int) string { return m.Name })
	if dup := lo.FindDuplicates(names); len(dup) > 0 {
		return invalid("physics", "duplicated materials %v", dup)
	}
	for _, m := range p.Materials {
		if m.Density <= 0 {
			return invalid("physics", "material %s: density must be positive", m.Name)
		}
	}
	return nil
}

func (v VoxelizedConfig) validate(materials []string) error {
	section := "voxelized " + v.Name
	if v.Name == "" {
		return invalid("voxelized", "solid without a name")
	}
	for a := 0; a < 3; a++ {
		if v.Dimensions[a] <= 0 {
			return invalid(section, "dimensions must be positive, got %v", v.Dimensions)
		}
		if !(v.VoxelSize[a] > 0) {
			return invalid(section, "voxel size must be positive, got %v", v.VoxelSize)
		}
	}
	if !lo.Contains(materials, v.Background) {
		return invalid(section, "unknown background material %q", v.Background)
	}
	for _, s := range v.Shapes {
		if err := s.validate(section, materials); err != nil {
			return err
		}
	}
	return nil
}

func (m MeshedConfig) validate(materials []string) error {
	section := "meshed " + m.Name
	if m.Name == "" {
		return invalid("meshed", "solid without a name")
	}
	if (m.STL == "") == (m.Shape == nil) {
		return invalid(section, "exactly one of stl and shape must be set")
	}
	if m.Shape != nil {
		if err := m.Shape.validate(section, materials); err != nil {
			return err
		}
	}
	if !lo.Contains(materials, m.Material) {
		return invalid(section, "unknown material %q", m.Material)
	}
	if !lo.Contains(materials, m.Envelope) {
		return invalid(section, "unknown envelope material %q", m.Envelope)
	}
	return nil
}

func (s ShapeConfig) validate(section string, materials []string) error {
	if !lo.Contains(knownShapes, s.Kind) {
		return invalid(section, "unknown shape kind %q", s.Kind)
	}
	switch s.Kind {
	case "box":
		if !(s.Size[0] > 0 && s.Size[1] > 0 && s.Size[2] > 0) {
			return invalid(section, "box size must be positive, got %v", s.Size)
		}
	case "tube":
		if !(s.Radius > 0 && s.Height > 0) {
			return invalid(section, "tube radius and height must be positive")
		}
	case "sphere":
		if !(s.Radius > 0) {
			return invalid(section, "sphere radius must be positive")
		}
	}
	if s.Material != "" && !lo.Contains(materials, s.Material) {
		return invalid(section, "unknown shape material %q", s.Material)
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.Particles <= 0 {
		return invalid("source", "particles must be positive, got %d", s.Particles)
	}
	if s.Particle != "gamma" && s.Particle != "photon" {
		return invalid("source", "unsupported particle %q", s.Particle)
	}
	if s.ApertureDeg < 0 || s.ApertureDeg > 180 {
		return invalid("source", "aperture must be in [0, 180] degrees, got %g", s.ApertureDeg)
	}
	if s.FocalSpot[0] < 0 || s.FocalSpot[1] < 0 || s.FocalSpot[2] < 0 {
		return invalid("source", "focal spot size must not be negative")
	}
	if len(s.Spectrum) == 0 && !(s.Energy > 0) {
		return invalid("source", "energy must be positive in monoenergetic mode")
	}
	for _, bin := range s.Spectrum {
		if !(bin[0] > 0) || bin[1] < 0 {
			return invalid("source", "bad spectrum bin %v", bin)
		}
	}
	return nil
}
