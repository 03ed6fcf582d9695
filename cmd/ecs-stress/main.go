package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"time"

	"github.com/plus3/aerosim/ecs"
	"github.com/plus3/aerosim/internal/cli"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "The total duration the test should run for.")
	entityCount := flag.Int("entities", 10000, "The initial number of entities to create.")
	churn := flag.Int("churn", 100, "Entities destroyed and respawned per tick.")
	seed := flag.Int64("seed", 1, "Random seed for entity composition and churn.")
	gcPauseMetrics := flag.Bool("gc-pause-metrics", false, "Enable detailed GC pause metrics in the report.")
	profileMode := flag.String("profile", "", "Write a pprof profile: cpu, mem or allocs.")
	flag.Parse()

	stopProfile, err := cli.StartProfile(*profileMode)
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Starting ECS stress test...")
	rng := rand.New(rand.NewSource(*seed))

	// 1. Setup World and Dispatcher
	world := ecs.NewWorld()
	dispatcher := ecs.NewDispatcher()
	for _, k := range componentKinds {
		k.register(world)
		dispatcher.Register(k.system())
	}
	churner := &churnSystem{rng: rng, perTick: *churn}
	dispatcher.Register(churner)

	// 2. Populate the world with initial entities
	log.Printf("Populating world with %d entities...\n", *entityCount)
	for i := 0; i < *entityCount; i++ {
		// Spawn an entity with 1 to 5 random components
		if _, err := world.Spawn(randomComponents(rng, rng.Intn(5)+1)...); err != nil {
			log.Fatalf("Failed to spawn entity %d: %v", i, err)
		}
	}
	log.Println("Population complete.")

	// 3. Run the simulation loop
	report := &Report{
		Duration:       *duration,
		Entities:       *entityCount,
		Components:     len(componentKinds),
		Systems:        dispatcher.Len(),
		Churn:          *churn,
		GCPauseMetrics: *gcPauseMetrics,
		UpdateTime: Stats{
			Samples: make([]time.Duration, 0),
		},
	}

	runtime.ReadMemStats(&report.MemStatsStart)

	log.Printf("Running simulation for %s...\n", *duration)
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	startTime := time.Now()
	var totalUpdates int64
	lastFrameTime := time.Now()

Loop:
	for {
		select {
		case <-ctx.Done():
			break Loop
		default:
			deltaTime := time.Since(lastFrameTime)
			lastFrameTime = time.Now()

			updateStart := time.Now()
			if err := dispatcher.RunTick(world, deltaTime.Seconds()); err != nil {
				log.Fatalf("Tick %d failed: %v", dispatcher.Ticks(), err)
			}
			updateDuration := time.Since(updateStart)

			report.UpdateTime.Samples = append(report.UpdateTime.Samples, updateDuration)
			totalUpdates++
		}
	}

	report.TotalTime = time.Since(startTime)
	report.TotalUpdates = totalUpdates
	report.Churned = churner.queued
	report.UpdateTime.Finalize()
	report.World = world.CollectStats()
	report.SlowestSystems = slowestSystems(dispatcher.Stats(), 5)
	runtime.ReadMemStats(&report.MemStatsEnd)

	if err := dispatcher.Close(world); err != nil {
		log.Printf("Cleanup failed: %v", err)
	}
	stopProfile()

	log.Println("Simulation finished.")

	// 4. Generate Report to Console
	fmt.Println("\n\n--- Stress Test Report ---")
	if err := report.Generate(os.Stdout); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	fmt.Println("--- End of Report ---")

	log.Println("Stress test complete.")
}
