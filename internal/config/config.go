// Package config handles simulation configuration loading and validation.
package config

import (
	"runtime"
)

// Vec3 is a 3-component vector written as a YAML sequence [x, y, z].
type Vec3 [3]float64

// Config holds all simulation settings. Lengths are in mm, energies in MeV,
// angles in degrees.
type Config struct {
	Logging    LoggingConfig     `yaml:"logging"`
	Compute    ComputeConfig     `yaml:"compute"`
	Navigation NavigationConfig  `yaml:"navigation"`
	Physics    PhysicsConfig     `yaml:"physics"`
	Voxelized  []VoxelizedConfig `yaml:"voxelized"`
	Meshed     []MeshedConfig    `yaml:"meshed"`
	Source     SourceConfig      `yaml:"source"`
	Output     OutputConfig      `yaml:"output"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// ComputeConfig sizes the parallel compute device.
type ComputeConfig struct {
	Workers       int   `yaml:"workers"`         // 0 means runtime.NumCPU()
	MemoryLimitMB int   `yaml:"memory_limit_mb"` // 0 means unlimited
	BatchSize     int   `yaml:"batch_size"`
	Seed          int64 `yaml:"seed"` // 0 means seeded from the clock
}

// NavigationConfig holds the tracking tolerances and livelock guards.
type NavigationConfig struct {
	GeometryTolerance float64 `yaml:"geometry_tolerance"` // epsilon bias and minimum step, mm
	MaxSteps          int     `yaml:"max_steps"`          // per particle per track-through
	MaxRounds         int     `yaml:"max_rounds"`         // distance/project/track rounds per batch
	EnergyCutoff      float64 `yaml:"energy_cutoff"`      // particles below are frozen
}

// PhysicsConfig describes the cross-section table.
type PhysicsConfig struct {
	Bins      int              `yaml:"bins"`
	MinEnergy float64          `yaml:"min_energy"`
	MaxEnergy float64          `yaml:"max_energy"`
	Processes []string         `yaml:"processes"`
	Materials []MaterialConfig `yaml:"materials"`
}

// MaterialConfig holds one material's density and mass attenuation nodes.
// Each node is [energy MeV, mu/rho cm2/g].
type MaterialConfig struct {
	Name          string       `yaml:"name"`
	Density       float64      `yaml:"density"` // g/cm3
	Photoelectric [][2]float64 `yaml:"photoelectric"`
	Compton       [][2]float64 `yaml:"compton"`
	Rayleigh      [][2]float64 `yaml:"rayleigh"`
}

// ShapeConfig is an analytic volume used by the phantom creator and meshers.
type ShapeConfig struct {
	Kind     string  `yaml:"kind"` // box, tube, sphere
	Center   Vec3    `yaml:"center"`
	Size     Vec3    `yaml:"size"` // box full lengths
	Radius   float64 `yaml:"radius"`
	Height   float64 `yaml:"height"` // tube length along z
	Material string  `yaml:"material"`
}

// VoxelizedConfig describes a voxelized phantom built by the phantom creator.
type VoxelizedConfig struct {
	Name        string        `yaml:"name"`
	Dimensions  [3]int        `yaml:"dimensions"`
	VoxelSize   Vec3          `yaml:"voxel_size"`
	Background  string        `yaml:"background"`
	Shapes      []ShapeConfig `yaml:"shapes"`
	Position    Vec3          `yaml:"position"`
	RotationDeg Vec3          `yaml:"rotation"`
	Dosimetry   bool          `yaml:"dosimetry"`
}

// MeshedConfig describes a meshed solid loaded from STL or meshed from an analytic shape.
type MeshedConfig struct {
	Name        string       `yaml:"name"`
	STL         string       `yaml:"stl"`
	Shape       *ShapeConfig `yaml:"shape"`
	Cells       int          `yaml:"cells"`
	Material    string       `yaml:"material"`
	Envelope    string       `yaml:"envelope"`
	Position    Vec3         `yaml:"position"`
	RotationDeg Vec3         `yaml:"rotation"`
	Dosimetry   bool         `yaml:"dosimetry"`
}

// SourceConfig describes the X-ray cone beam source.
type SourceConfig struct {
	Name        string       `yaml:"name"`
	Particle    string       `yaml:"particle"`
	Particles   int          `yaml:"particles"`
	Position    Vec3         `yaml:"position"`
	RotationDeg Vec3         `yaml:"rotation"`
	LocalAxis   [3]Vec3      `yaml:"local_axis"` // rows
	ApertureDeg float64      `yaml:"aperture"`
	FocalSpot   Vec3         `yaml:"focal_spot"`
	Energy      float64      `yaml:"energy"`   // monoenergetic mode
	Spectrum    [][2]float64 `yaml:"spectrum"` // [energy MeV, weight], polyenergetic mode
}

// OutputConfig controls where dosimetry results go.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		Compute: ComputeConfig{
			Workers:       runtime.NumCPU(),
			MemoryLimitMB: 2048,
			BatchSize:     100_000,
			Seed:          0,
		},
		Navigation: NavigationConfig{
			GeometryTolerance: 1e-6,
			MaxSteps:          10_000,
			MaxRounds:         64,
			EnergyCutoff:      0.001,
		},
		Physics: PhysicsConfig{
			Bins:      220,
			MinEnergy: 0.00099,
			MaxEnergy: 250.0,
			Processes: []string{"photoelectric", "compton", "rayleigh"},
			Materials: []MaterialConfig{water(), air()},
		},
		Voxelized: []VoxelizedConfig{
			{
				Name:       "phantom",
				Dimensions: [3]int{32, 32, 32},
				VoxelSize:  Vec3{1, 1, 1},
				Background: "Air",
				Shapes: []ShapeConfig{
					{Kind: "tube", Radius: 12, Height: 32, Material: "Water"},
				},
				Dosimetry: true,
			},
		},
		Source: SourceConfig{
			Name:        "xray",
			Particle:    "gamma",
			Particles:   1_000_000,
			Position:    Vec3{-200, 0, 0},
			LocalAxis:   [3]Vec3{{0, 0, 1}, {0, 1, 0}, {-1, 0, 0}},
			ApertureDeg: 5,
			FocalSpot:   Vec3{0.6, 1.2, 0},
			Energy:      0.06,
		},
		Output: OutputConfig{
			Dir: "output",
		},
	}
}

// Mass attenuation nodes are rounded XCOM values.
func water() MaterialConfig {
	return MaterialConfig{
		Name:    "Water",
		Density: 1.0,
		Photoelectric: [][2]float64{
			{0.01, 4.944}, {0.02, 0.5503}, {0.03, 0.1557}, {0.05, 0.0311},
			{0.1, 0.00276}, {0.2, 0.000288}, {0.5, 0.0000229}, {1.0, 0.0000037}, {10, 0.00000002},
		},
		Compton: [][2]float64{
			{0.01, 0.1550}, {0.02, 0.1774}, {0.03, 0.1833}, {0.05, 0.1813},
			{0.1, 0.1626}, {0.2, 0.1356}, {0.5, 0.0966}, {1.0, 0.0707}, {10, 0.0222},
		},
		Rayleigh: [][2]float64{
			{0.01, 0.2018}, {0.02, 0.0758}, {0.03, 0.0401}, {0.05, 0.0160},
			{0.1, 0.00426}, {0.2, 0.00110}, {0.5, 0.000178}, {1.0, 0.0000449}, {10, 0.00000045},
		},
	}
}

func air() MaterialConfig {
	return MaterialConfig{
		Name:    "Air",
		Density: 0.001205,
		Photoelectric: [][2]float64{
			{0.01, 4.742}, {0.02, 0.5389}, {0.03, 0.1480}, {0.05, 0.0291},
			{0.1, 0.00259}, {0.2, 0.000268}, {0.5, 0.0000211}, {1.0, 0.0000034}, {10, 0.00000002},
		},
		Compton: [][2]float64{
			{0.01, 0.1355}, {0.02, 0.1589}, {0.03, 0.1658}, {0.05, 0.1684},
			{0.1, 0.1514}, {0.2, 0.1262}, {0.5, 0.0892}, {1.0, 0.0653}, {10, 0.0205},
		},
		Rayleigh: [][2]float64{
			{0.01, 0.2270}, {0.02, 0.0849}, {0.03, 0.0446}, {0.05, 0.0178},
			{0.1, 0.00479}, {0.2, 0.00124}, {0.5, 0.000200}, {1.0, 0.0000501}, {10, 0.0000005},
		},
	}
}
