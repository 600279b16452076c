package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagParticles = flag.Int("particles", 0, "Number of primary particles")
	flagBatch     = flag.Int("batch", 0, "Particles per batch")
	flagWorkers   = flag.Int("workers", 0, "Number of compute workers")
	flagSeed      = flag.Int64("seed", 0, "Random seed")
	flagOut       = flag.String("out", "", "Output directory")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the config path given via -config, or the first positional argument.
func ConfigPath() string {
	if *flagConfig != "" {
		return *flagConfig
	}
	return flag.Arg(0)
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagParticles > 0 {
		cfg.Source.Particles = *flagParticles
	}
	if *flagBatch > 0 {
		cfg.Compute.BatchSize = *flagBatch
	}
	if *flagWorkers > 0 {
		cfg.Compute.Workers = *flagWorkers
	}
	if *flagSeed != 0 {
		cfg.Compute.Seed = *flagSeed
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
}
