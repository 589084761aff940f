package ecs

// PoolStats describes one component pool.
type PoolStats struct {
	Name string
	Id   ComponentId
	Live int
}

// StorageStats is a point-in-time summary of a Storage.
type StorageStats struct {
	EntityCount    int
	FreeSlots      int
	DirtyCount     int
	ScriptCount    int
	SingletonCount int
	ComponentTypes int
	Pools          []PoolStats
}

// CollectStats walks the storage's bookkeeping. It allocates and is meant for
// tooling, not for the tick loop.
func (s *Storage) CollectStats() StorageStats {
	stats := StorageStats{
		EntityCount:    s.live,
		FreeSlots:      len(s.freeList),
		DirtyCount:     len(s.dirtyList),
		ScriptCount:    s.scripts.Len(),
		SingletonCount: len(s.singletons),
		ComponentTypes: s.registry.Len(),
	}
	for id, pool := range s.pools {
		if pool == nil {
			continue
		}
		stats.Pools = append(stats.Pools, PoolStats{
			Name: pool.Type().String(),
			Id:   ComponentId(id),
			Live: pool.Len(),
		})
	}
	return stats
}
