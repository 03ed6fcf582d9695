package main

import (
	"bytes"
	"math/rand"
	"testing"
	"time"

	"github.com/plus3/aerosim/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsFinalize(t *testing.T) {
	s := Stats{Samples: []time.Duration{3, 1, 2, 10}}
	s.Finalize()
	assert.Equal(t, time.Duration(1), s.Min)
	assert.Equal(t, time.Duration(10), s.Max)
	assert.Equal(t, time.Duration(4), s.Avg)
	assert.Equal(t, time.Duration(3), s.P99)

	var empty Stats
	empty.Finalize()
	assert.Zero(t, empty.Max)
}

func TestChurnKeepsPopulation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	w := ecs.NewWorld()
	d := ecs.NewDispatcher()
	for _, k := range componentKinds {
		k.register(w)
		d.Register(k.system())
	}
	d.Register(&churnSystem{rng: rng, perTick: 1})

	for range 50 {
		_, err := w.Spawn(randomComponents(rng, 3)...)
		require.NoError(t, err)
	}
	for range 20 {
		require.NoError(t, d.RunTick(w, 0.1))
	}
	assert.Equal(t, 50, w.EntityCount())

	stats := w.CollectStats()
	assert.Equal(t, len(componentKinds), len(stats.StoreBreakdown))
}

func TestReportGenerate(t *testing.T) {
	d := ecs.NewDispatcher()
	d.Register(componentKinds[0].system())
	w := ecs.NewWorld()
	componentKinds[0].register(w)
	require.NoError(t, d.RunTick(w, 0.1))

	report := &Report{
		Duration:       time.Second,
		Entities:       1,
		Components:     len(componentKinds),
		World:          w.CollectStats(),
		SlowestSystems: slowestSystems(d.Stats(), 5),
		GCPauseMetrics: true,
	}

	var out bytes.Buffer
	require.NoError(t, report.Generate(&out))
	assert.Contains(t, out.String(), "| decay-c00 | 1 |")
	assert.Contains(t, out.String(), "## GC Pause Durations")
}
