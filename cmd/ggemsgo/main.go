package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/lukaszgryglicki/ggemsgo/internal/config"
	"github.com/lukaszgryglicki/ggemsgo/internal/logger"
	"github.com/lukaszgryglicki/ggemsgo/internal/simulation"
	"go.uber.org/zap"
)

func main() {
	config.ParseFlags()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if os.Getenv("PROFILE") != "" {
		f, err := os.Create("cpu.out")
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}()
	}

	cfg, err := config.LoadWithFlags()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	sim, err := simulation.New(cfg, log)
	if err != nil {
		log.Error("setup failed", zap.Error(err))
		return err
	}
	defer sim.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	sum, err := sim.Run(ctx)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}
	fmt.Printf("run %s: %d particles in %s, %.6g MeV deposited\n", sum.RunID, sum.Particles, sum.Elapsed, sum.Edep)
	return nil
}
