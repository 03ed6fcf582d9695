package ecs

import "sort"

// WorldStats is a point-in-time summary of a World.
type WorldStats struct {
	EntityCount    int
	SlotCount      int
	ComponentCount int
	StoreBreakdown []StoreStats
	SingletonCount int
	SingletonTypes []string
}

// StoreStats describes one component store.
type StoreStats struct {
	Type  string
	Count int
}

// CollectStats gathers entity, store and singleton counts.
func (w *World) CollectStats() WorldStats {
	stats := WorldStats{
		EntityCount:    w.entities.Len(),
		SlotCount:      w.entities.Cap(),
		StoreBreakdown: make([]StoreStats, 0, len(w.order)),
		SingletonCount: len(w.singletons),
		SingletonTypes: make([]string, 0, len(w.singletons)),
	}

	for _, store := range w.order {
		stats.StoreBreakdown = append(stats.StoreBreakdown, StoreStats{
			Type:  store.Type().String(),
			Count: store.Len(),
		})
		stats.ComponentCount += store.Len()
	}

	for typ := range w.singletons {
		stats.SingletonTypes = append(stats.SingletonTypes, typ.String())
	}
	sort.Strings(stats.SingletonTypes)

	return stats
}
