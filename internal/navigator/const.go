package navigator

import "math"

const (
	NoSolid    int32 = -1 // particle is in the world, outside every solid
	NoMaterial int32 = -1 // material cache empty, forces a new interaction sample
	NoProcess  uint8 = 0xff

	// OutOfWorld is the distance written when a ray misses a solid.
	OutOfWorld = math.MaxFloat64

	// SpeedOfLight in mm/ns, used for time of flight.
	SpeedOfLight = 299.792458
)

// Particle status.
const (
	StatusAlive uint8 = iota
	StatusDead
	StatusFreeze
)

// Particle kinds.
const (
	KindPhoton uint8 = iota
	KindElectron
	KindPositron
)

// Particle flags, set alongside a terminal status.
const (
	FlagEscaped uint8 = 1 << iota
	FlagAbsorbed
	FlagRunaway
	FlagFrozen
)

const (
	DefaultGeometryTolerance = 1e-6 // mm
	DefaultMaxSteps          = 10_000
	DefaultMaxRounds         = 64
	DefaultEnergyCutoff      = 0.001 // MeV

	parallelEps        = 1e-18
	meshBVHMaxLeafSize = 4
	maxRunawayReports  = 8
)
